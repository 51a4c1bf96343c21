package preferences

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/extrace/notify/internal/domain"
)

// Class names an opt-out group reachable through an unsubscribe link.
type Class string

const (
	ClassTransactions Class = "transactions"
	ClassBudgets      Class = "budgets"
	ClassReports      Class = "reports"
	ClassNewsletter   Class = "newsletter"
	ClassTips         Class = "tips"
)

// Service implements preference business logic. It is safe for concurrent use.
type Service struct {
	repo     Repository
	now      func() time.Time
	newToken func() (string, error)
}

// NewService creates a preference service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{
		repo:     repo,
		now:      func() time.Time { return time.Now().UTC() },
		newToken: generateToken,
	}
}

// generateToken returns 32 random bytes hex encoded.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate unsubscribe token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Get returns a user's record or ErrNotFound.
func (s *Service) Get(ctx context.Context, userID string) (*domain.Preferences, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// GetOrCreate returns the user's record, persisting the defaults with a fresh
// unsubscribe token on first access.
func (s *Service) GetOrCreate(ctx context.Context, userID string) (*domain.Preferences, error) {
	p, err := s.repo.GetByUserID(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get preferences: %w", err)
	}

	token, err := s.newToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	p = domain.DefaultPreferences(userID)
	p.ID = uuid.New().String()
	p.UnsubscribeToken = token
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.repo.Create(ctx, p); err != nil {
		// Lost a race with a concurrent first access; the stored record wins.
		if errors.Is(err, ErrAlreadyExists) {
			return s.repo.GetByUserID(ctx, userID)
		}
		return nil, fmt.Errorf("create preferences: %w", err)
	}
	return p, nil
}

// Update merges the provided groups into the user's record and persists it.
// The unsubscribe token and delivery status are never changed here.
func (s *Service) Update(ctx context.Context, userID string, u Update) (*domain.Preferences, error) {
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	merged := *p
	merged.TransactionNotifications.Categories = append([]string(nil), p.TransactionNotifications.Categories...)
	u.apply(&merged)
	if err := validate(&merged); err != nil {
		return nil, err
	}
	merged.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, &merged); err != nil {
		return nil, fmt.Errorf("save preferences: %w", err)
	}
	return &merged, nil
}

// FindByUnsubscribeToken resolves an opt-out token to its record.
func (s *Service) FindByUnsubscribeToken(ctx context.Context, token string) (*domain.Preferences, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return s.repo.GetByUnsubscribeToken(ctx, token)
}

// UnsubscribeAll turns off every optional mail class for the token's owner.
// Account mail stays enabled.
func (s *Service) UnsubscribeAll(ctx context.Context, token string) (*domain.Preferences, error) {
	p, err := s.FindByUnsubscribeToken(ctx, token)
	if err != nil {
		return nil, err
	}
	p.TransactionNotifications.Enabled = false
	p.BudgetAlerts.Enabled = false
	p.Reports.Weekly.Enabled = false
	p.Reports.Monthly.Enabled = false
	p.Marketing = domain.Marketing{}
	p.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save preferences: %w", err)
	}
	return p, nil
}

// UnsubscribeClass turns off a single class for the token's owner.
func (s *Service) UnsubscribeClass(ctx context.Context, token string, class Class) (*domain.Preferences, error) {
	switch class {
	case ClassTransactions, ClassBudgets, ClassReports, ClassNewsletter, ClassTips:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}
	p, err := s.FindByUnsubscribeToken(ctx, token)
	if err != nil {
		return nil, err
	}
	switch class {
	case ClassTransactions:
		p.TransactionNotifications.Enabled = false
	case ClassBudgets:
		p.BudgetAlerts.Enabled = false
	case ClassReports:
		p.Reports.Weekly.Enabled = false
		p.Reports.Monthly.Enabled = false
	case ClassNewsletter:
		p.Marketing.Newsletter = false
	case ClassTips:
		p.Marketing.FinancialTips = false
		p.Marketing.PersonalizedInsights = false
	}
	p.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save preferences: %w", err)
	}
	return p, nil
}

// DeliveryStats returns the user's delivery status, zero valued when the
// user has no record yet.
func (s *Service) DeliveryStats(ctx context.Context, userID string) (domain.DeliveryStatus, error) {
	p, err := s.repo.GetByUserID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return domain.DeliveryStatus{}, nil
	}
	if err != nil {
		return domain.DeliveryStatus{}, err
	}
	return p.DeliveryStatus, nil
}

// RecordDeliveryOutcome applies a send outcome to the user's delivery
// status. Users without a record are ignored.
func (s *Service) RecordDeliveryOutcome(ctx context.Context, userID string, success bool) error {
	p, err := s.repo.GetByUserID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	status := p.DeliveryStatus
	if success {
		status.RecordSuccess(s.now())
	} else {
		status.RecordFailure(s.now())
	}
	if err := s.repo.SaveDeliveryStatus(ctx, userID, status); err != nil {
		return fmt.Errorf("save delivery status: %w", err)
	}
	return nil
}

// ResetBlacklist clears the blacklist flag, the failure counter, and the
// last failure timestamp.
func (s *Service) ResetBlacklist(ctx context.Context, userID string) (domain.DeliveryStatus, error) {
	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return domain.DeliveryStatus{}, err
	}
	status := p.DeliveryStatus
	status.ResetBlacklist()
	if err := s.repo.SaveDeliveryStatus(ctx, userID, status); err != nil {
		return domain.DeliveryStatus{}, fmt.Errorf("save delivery status: %w", err)
	}
	return status, nil
}

func (s *Service) ListWeeklyReportRecipients(ctx context.Context) ([]domain.Preferences, error) {
	return s.repo.List(ctx, ListFilter{WeeklyReports: true})
}

func (s *Service) ListMonthlyReportRecipients(ctx context.Context) ([]domain.Preferences, error) {
	return s.repo.List(ctx, ListFilter{MonthlyReports: true})
}

func (s *Service) ListNewsletterRecipients(ctx context.Context) ([]domain.Preferences, error) {
	return s.repo.List(ctx, ListFilter{Newsletter: true})
}

// ListDigestRecipients returns users whose transaction notifications are
// enabled and batched at freq.
func (s *Service) ListDigestRecipients(ctx context.Context, freq domain.Frequency) ([]domain.Preferences, error) {
	if freq != domain.FrequencyDaily && freq != domain.FrequencyWeekly {
		return nil, fmt.Errorf("%w: digest frequency %q", ErrInvalid, freq)
	}
	return s.repo.List(ctx, ListFilter{DigestFrequency: freq})
}
