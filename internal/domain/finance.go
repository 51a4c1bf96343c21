package domain

import "time"

// TransactionType separates money in from money out.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Transaction is owned by the expense CRUD layer; this pipeline only reads it.
type Transaction struct {
	ID         string          `json:"id" db:"id"`
	UserID     string          `json:"userId" db:"user_id"`
	Type       TransactionType `json:"type" db:"type"`
	Amount     float64         `json:"amount" db:"amount"`
	Date       time.Time       `json:"date" db:"date"`
	CategoryID string          `json:"categoryId" db:"category_id"`
	Category   string          `json:"category" db:"category_name"`
	Notes      string          `json:"notes,omitempty" db:"notes"`
	Tags       []string        `json:"tags,omitempty" db:"tags"`
}

// IsExpense reports whether the transaction is money out.
func (t Transaction) IsExpense() bool { return t.Type == TransactionExpense }

// Category is a user's spending bucket. BudgetLimit of zero means no budget.
type Category struct {
	ID          string  `json:"id" db:"id"`
	UserID      string  `json:"userId" db:"user_id"`
	Name        string  `json:"name" db:"name"`
	BudgetLimit float64 `json:"budgetLimit,omitempty" db:"budget_limit"`
}

// HasBudget reports whether a positive budget limit is set.
func (c Category) HasBudget() bool { return c.BudgetLimit > 0 }

// User is the slice of the account record this pipeline needs.
type User struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Email    string `json:"email" db:"email"`
	IsActive bool   `json:"isActive" db:"is_active"`
}
