package notification

import (
	"context"
	"errors"
	"time"

	"github.com/extrace/notify/internal/domain"
)

// ErrNotFound is returned by readers when a user, category, or transaction
// does not exist.
var ErrNotFound = errors.New("record not found")

// TransactionReader reads transactions owned by the expense CRUD layer.
type TransactionReader interface {
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	// ListTransactions returns a user's transactions with from <= date <= to.
	ListTransactions(ctx context.Context, userID string, from, to time.Time) ([]domain.Transaction, error)
}

// CategoryReader reads a user's spending categories.
type CategoryReader interface {
	GetCategoryByName(ctx context.Context, userID, name string) (*domain.Category, error)
	ListBudgetedCategories(ctx context.Context, userID string) ([]domain.Category, error)
}

// UserReader reads account records.
type UserReader interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	ListActiveUsers(ctx context.Context) ([]domain.User, error)
}

// PreferenceStore is the slice of the preference service the engine uses.
type PreferenceStore interface {
	GetOrCreate(ctx context.Context, userID string) (*domain.Preferences, error)
	RecordDeliveryOutcome(ctx context.Context, userID string, success bool) error
}

// DigestBuffer holds transactions waiting for a daily or weekly digest.
type DigestBuffer interface {
	Push(ctx context.Context, userID string, freq domain.Frequency, n domain.PendingNotification) error
	// Drain removes and returns every pending entry, oldest first.
	Drain(ctx context.Context, userID string, freq domain.Frequency) ([]domain.PendingNotification, error)
}

// Headline is one product update shown in the newsletter.
type Headline struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// FeedSource supplies product-update headlines.
type FeedSource interface {
	Headlines(ctx context.Context, max int) ([]Headline, error)
}
