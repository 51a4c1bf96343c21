package domain

import "time"

// CategoryTotal accumulates spend for one category inside a report window.
type CategoryTotal struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Count  int     `json:"count"`
}

// WeeklyReport summarises expenses over one ISO week. Never persisted.
type WeeklyReport struct {
	WeekStart        time.Time       `json:"weekStart"`
	WeekEnd          time.Time       `json:"weekEnd"`
	TotalExpenses    float64         `json:"totalExpenses"`
	TransactionCount int             `json:"transactionCount"`
	TopCategories    []CategoryTotal `json:"topCategories"`
	DailyAverage     float64         `json:"dailyAverage"`
}

// MonthlyReport summarises all activity over one calendar month. Never persisted.
type MonthlyReport struct {
	Month              time.Month      `json:"month"`
	Year               int             `json:"year"`
	TotalExpenses      float64         `json:"totalExpenses"`
	TotalIncome        float64         `json:"totalIncome"`
	NetIncome          float64         `json:"netIncome"`
	TransactionCount   int             `json:"transactionCount"`
	Categories         []CategoryTotal `json:"categories"`
	TopExpenseCategory *CategoryTotal  `json:"topExpenseCategory,omitempty"`
}

// BudgetStatus is the context for a budget alert email.
type BudgetStatus struct {
	Category   string          `json:"category"`
	Limit      float64         `json:"limit"`
	Spent      float64         `json:"spent"`
	Remaining  float64         `json:"remaining"`
	Overspent  float64         `json:"overspent"`
	Percentage float64         `json:"percentage"`
	AlertType  BudgetAlertKind `json:"alertType"`
}

// Tip is one entry of a personalized newsletter.
type Tip struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Link    string `json:"link,omitempty"`
}

// PendingNotification is a transaction waiting for a daily or weekly digest.
type PendingNotification struct {
	TransactionID string          `json:"transactionId"`
	Type          TransactionType `json:"type"`
	Amount        float64         `json:"amount"`
	Category      string          `json:"category"`
	Date          time.Time       `json:"date"`
	Notes         string          `json:"notes,omitempty"`
	QueuedAt      time.Time       `json:"queuedAt"`
}
