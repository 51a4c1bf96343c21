package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/extrace/notify/internal/domain"
	"github.com/extrace/notify/internal/service/preferences"
)

// PreferencesRepo implements preferences.Repository against PostgreSQL.
// Each settings group lives in its own JSONB column; delivery status is
// spread over plain columns so SaveDeliveryStatus can update it alone.
type PreferencesRepo struct{ db *sql.DB }

// NewPreferencesRepo creates a Postgres-backed preference repository.
func NewPreferencesRepo(db *sql.DB) *PreferencesRepo { return &PreferencesRepo{db: db} }

const preferenceColumns = `id, user_id, transaction_notifications, budget_alerts, reports,
	account_emails, marketing, email_format, timezone, unsubscribe_token,
	last_email_sent, failed_deliveries, last_failure, is_blacklisted,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPreferences(row rowScanner) (*domain.Preferences, error) {
	var (
		p                                  domain.Preferences
		txn, budget, reports, account, mkt []byte
		lastSent, lastFailure              sql.NullTime
	)
	err := row.Scan(&p.ID, &p.UserID, &txn, &budget, &reports, &account, &mkt,
		&p.EmailFormat, &p.Timezone, &p.UnsubscribeToken,
		&lastSent, &p.DeliveryStatus.FailedDeliveries, &lastFailure, &p.DeliveryStatus.IsBlacklisted,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	groups := []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"transaction_notifications", txn, &p.TransactionNotifications},
		{"budget_alerts", budget, &p.BudgetAlerts},
		{"reports", reports, &p.Reports},
		{"account_emails", account, &p.AccountEmails},
		{"marketing", mkt, &p.Marketing},
	}
	for _, g := range groups {
		if len(g.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(g.raw, g.dst); err != nil {
			return nil, fmt.Errorf("decode %s: %w", g.name, err)
		}
	}
	if p.TransactionNotifications.Categories == nil {
		p.TransactionNotifications.Categories = []string{}
	}
	if lastSent.Valid {
		t := lastSent.Time
		p.DeliveryStatus.LastEmailSent = &t
	}
	if lastFailure.Valid {
		t := lastFailure.Time
		p.DeliveryStatus.LastFailure = &t
	}
	return &p, nil
}

// encodeGroups marshals the five JSONB settings groups in column order.
func encodeGroups(p *domain.Preferences) ([]any, error) {
	out := make([]any, 0, 5)
	for _, g := range []any{p.TransactionNotifications, p.BudgetAlerts, p.Reports, p.AccountEmails, p.Marketing} {
		b, err := json.Marshal(g)
		if err != nil {
			return nil, fmt.Errorf("encode preferences: %w", err)
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *PreferencesRepo) getOne(ctx context.Context, where string, arg any) (*domain.Preferences, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+preferenceColumns+` FROM email_preferences WHERE `+where+` = $1`, arg)
	p, err := scanPreferences(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, preferences.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return p, nil
}

func (r *PreferencesRepo) GetByUserID(ctx context.Context, userID string) (*domain.Preferences, error) {
	return r.getOne(ctx, "user_id", userID)
}

func (r *PreferencesRepo) GetByUnsubscribeToken(ctx context.Context, token string) (*domain.Preferences, error) {
	return r.getOne(ctx, "unsubscribe_token", token)
}

func (r *PreferencesRepo) Create(ctx context.Context, p *domain.Preferences) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	groups, err := encodeGroups(p)
	if err != nil {
		return err
	}
	args := append([]any{p.ID, p.UserID}, groups...)
	args = append(args, p.EmailFormat, p.Timezone, p.UnsubscribeToken, p.CreatedAt, p.UpdatedAt)

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO email_preferences (id, user_id, transaction_notifications, budget_alerts,
			reports, account_emails, marketing, email_format, timezone, unsubscribe_token,
			failed_deliveries, is_blacklisted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, false, $11, $12)
		ON CONFLICT (user_id) DO NOTHING
	`, args...)
	if err != nil {
		return fmt.Errorf("insert preferences: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return preferences.ErrAlreadyExists
	}
	return nil
}

// Save rewrites the settings groups. The unsubscribe token and delivery
// columns are deliberately absent from the statement.
func (r *PreferencesRepo) Save(ctx context.Context, p *domain.Preferences) error {
	groups, err := encodeGroups(p)
	if err != nil {
		return err
	}
	args := append(groups, p.EmailFormat, p.Timezone, p.UpdatedAt, p.UserID)
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_preferences SET
			transaction_notifications = $1, budget_alerts = $2, reports = $3,
			account_emails = $4, marketing = $5, email_format = $6, timezone = $7,
			updated_at = $8
		WHERE user_id = $9
	`, args...)
	if err != nil {
		return fmt.Errorf("update preferences: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return preferences.ErrNotFound
	}
	return nil
}

func (r *PreferencesRepo) SaveDeliveryStatus(ctx context.Context, userID string, st domain.DeliveryStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_preferences SET
			last_email_sent = $1, failed_deliveries = $2, last_failure = $3,
			is_blacklisted = $4, updated_at = NOW()
		WHERE user_id = $5
	`, nullTime(st.LastEmailSent), st.FailedDeliveries, nullTime(st.LastFailure), st.IsBlacklisted, userID)
	if err != nil {
		return fmt.Errorf("update delivery status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return preferences.ErrNotFound
	}
	return nil
}

func (r *PreferencesRepo) List(ctx context.Context, f preferences.ListFilter) ([]domain.Preferences, error) {
	var (
		conds []string
		args  []any
	)
	if f.WeeklyReports {
		conds = append(conds, `(reports->'weekly'->>'enabled')::boolean`)
	}
	if f.MonthlyReports {
		conds = append(conds, `(reports->'monthly'->>'enabled')::boolean`)
	}
	if f.Newsletter {
		conds = append(conds, `(marketing->>'newsletter')::boolean`)
	}
	if f.DigestFrequency != "" {
		args = append(args, string(f.DigestFrequency))
		conds = append(conds, fmt.Sprintf(
			`(transaction_notifications->>'enabled')::boolean AND transaction_notifications->>'frequency' = $%d`, len(args)))
	}
	query := `SELECT ` + preferenceColumns + ` FROM email_preferences`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	defer rows.Close()

	var out []domain.Preferences
	for rows.Next() {
		p, err := scanPreferences(rows)
		if err != nil {
			return nil, fmt.Errorf("scan preferences: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
