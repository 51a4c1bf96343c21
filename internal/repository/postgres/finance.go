package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/extrace/notify/internal/domain"
	"github.com/extrace/notify/internal/notification"
)

// FinanceRepo reads the users, categories, and transactions owned by the
// expense-tracking application. It never writes.
type FinanceRepo struct{ db *sql.DB }

// NewFinanceRepo creates a read-only finance repository.
func NewFinanceRepo(db *sql.DB) *FinanceRepo { return &FinanceRepo{db: db} }

const transactionColumns = `t.id, t.user_id, t.type, t.amount, t.date,
	COALESCE(t.category_id::text, ''), COALESCE(c.name, ''), COALESCE(t.notes, ''), t.tags`

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		tx   domain.Transaction
		tags pq.StringArray
	)
	if err := row.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Amount, &tx.Date,
		&tx.CategoryID, &tx.Category, &tx.Notes, &tags); err != nil {
		return nil, err
	}
	tx.Tags = []string(tags)
	return &tx, nil
}

func (r *FinanceRepo) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.id = $1
	`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, notification.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

// ListTransactions returns a user's transactions with from <= date <= to,
// newest first.
func (r *FinanceRepo) ListTransactions(ctx context.Context, userID string, from, to time.Time) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1 AND t.date >= $2 AND t.date <= $3
		ORDER BY t.date DESC
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}

func (r *FinanceRepo) GetCategoryByName(ctx context.Context, userID, name string) (*domain.Category, error) {
	var c domain.Category
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, COALESCE(budget_limit, 0)
		FROM categories
		WHERE user_id = $1 AND name = $2
	`, userID, name).Scan(&c.ID, &c.UserID, &c.Name, &c.BudgetLimit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %q: %w", name, notification.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &c, nil
}

// ListBudgetedCategories returns a user's categories with a positive budget.
func (r *FinanceRepo) ListBudgetedCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, budget_limit
		FROM categories
		WHERE user_id = $1 AND budget_limit > 0
		ORDER BY name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.BudgetLimit); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *FinanceRepo) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, is_active FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, notification.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *FinanceRepo) ListActiveUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, is_active FROM users WHERE is_active = true ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.IsActive); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
