package preferences

import (
	"context"

	"github.com/extrace/notify/internal/domain"
)

// Repository defines the data access contract for notification preferences.
type Repository interface {
	// GetByUserID returns the record for a user or ErrNotFound.
	GetByUserID(ctx context.Context, userID string) (*domain.Preferences, error)

	// GetByUnsubscribeToken returns the record owning token or ErrNotFound.
	GetByUnsubscribeToken(ctx context.Context, token string) (*domain.Preferences, error)

	// Create inserts a new record. Returns ErrAlreadyExists if the user
	// already has one.
	Create(ctx context.Context, p *domain.Preferences) error

	// Save writes every settings group of an existing record. It never
	// touches the unsubscribe token or the delivery status.
	Save(ctx context.Context, p *domain.Preferences) error

	// SaveDeliveryStatus writes only the delivery status of a user's record.
	SaveDeliveryStatus(ctx context.Context, userID string, status domain.DeliveryStatus) error

	// List returns every record matching the filter.
	List(ctx context.Context, filter ListFilter) ([]domain.Preferences, error)
}

// ListFilter selects recipients for scheduled jobs. Set fields are ANDed.
type ListFilter struct {
	WeeklyReports   bool
	MonthlyReports  bool
	Newsletter      bool
	DigestFrequency domain.Frequency
}
