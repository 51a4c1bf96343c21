package domain

import "time"

// Frequency controls how transaction notifications are delivered.
type Frequency string

const (
	FrequencyImmediate Frequency = "immediate"
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyNever     Frequency = "never"
)

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyImmediate, FrequencyDaily, FrequencyWeekly, FrequencyNever:
		return true
	}
	return false
}

// EmailFormat is the body format a user prefers.
type EmailFormat string

const (
	FormatHTML EmailFormat = "html"
	FormatText EmailFormat = "text"
)

// MaxFailedDeliveries is the consecutive failure count at which a user is
// blacklisted from further sends.
const MaxFailedDeliveries = 5

// TransactionNotifications gates per-transaction emails.
type TransactionNotifications struct {
	Enabled   bool      `json:"enabled"`
	Frequency Frequency `json:"frequency"`
	MinAmount float64   `json:"minAmount"`
	// Categories restricts notifications to these category names. Empty means all.
	Categories []string `json:"categories"`
}

// BudgetThresholds are percentages of a category budget.
type BudgetThresholds struct {
	Warning  float64 `json:"warning"`
	Critical float64 `json:"critical"`
	Exceeded bool    `json:"exceeded"`
}

type BudgetAlerts struct {
	Enabled    bool             `json:"enabled"`
	Thresholds BudgetThresholds `json:"thresholds"`
}

// WeeklySchedule picks the ISO weekday (1 = Monday) a weekly report goes out.
type WeeklySchedule struct {
	Enabled   bool   `json:"enabled"`
	DayOfWeek int    `json:"dayOfWeek"`
	Time      string `json:"time"`
}

type MonthlySchedule struct {
	Enabled    bool   `json:"enabled"`
	DayOfMonth int    `json:"dayOfMonth"`
	Time       string `json:"time"`
}

type Reports struct {
	Weekly  WeeklySchedule  `json:"weekly"`
	Monthly MonthlySchedule `json:"monthly"`
}

// AccountEmails gates transactional account mail.
type AccountEmails struct {
	Welcome           bool `json:"welcome"`
	Security          bool `json:"security"`
	PasswordReset     bool `json:"passwordReset"`
	EmailVerification bool `json:"emailVerification"`
}

// Marketing gates promotional mail.
type Marketing struct {
	Newsletter           bool `json:"newsletter"`
	FinancialTips        bool `json:"financialTips"`
	ProductUpdates       bool `json:"productUpdates"`
	PersonalizedInsights bool `json:"personalizedInsights"`
}

// DeliveryStatus tracks transport outcomes for a user's mail.
type DeliveryStatus struct {
	LastEmailSent    *time.Time `json:"lastEmailSent,omitempty"`
	FailedDeliveries int        `json:"failedDeliveries"`
	LastFailure      *time.Time `json:"lastFailure,omitempty"`
	IsBlacklisted    bool       `json:"isBlacklisted"`
}

// RecordSuccess clears the failure counter. A blacklisted user stays
// blacklisted until ResetBlacklist is called.
func (d *DeliveryStatus) RecordSuccess(at time.Time) {
	d.FailedDeliveries = 0
	d.LastEmailSent = &at
}

// RecordFailure bumps the failure counter and blacklists at MaxFailedDeliveries.
func (d *DeliveryStatus) RecordFailure(at time.Time) {
	d.FailedDeliveries++
	d.LastFailure = &at
	if d.FailedDeliveries >= MaxFailedDeliveries {
		d.IsBlacklisted = true
	}
}

// ResetBlacklist clears the blacklist flag, counter, and last failure.
func (d *DeliveryStatus) ResetBlacklist() {
	d.IsBlacklisted = false
	d.FailedDeliveries = 0
	d.LastFailure = nil
}

// Preferences is the per-user notification settings record.
type Preferences struct {
	ID                       string                   `json:"id" db:"id"`
	UserID                   string                   `json:"userId" db:"user_id"`
	TransactionNotifications TransactionNotifications `json:"transactionNotifications" db:"transaction_notifications"`
	BudgetAlerts             BudgetAlerts             `json:"budgetAlerts" db:"budget_alerts"`
	Reports                  Reports                  `json:"reports" db:"reports"`
	AccountEmails            AccountEmails            `json:"accountEmails" db:"account_emails"`
	Marketing                Marketing                `json:"marketing" db:"marketing"`
	EmailFormat              EmailFormat              `json:"emailFormat" db:"email_format"`
	Timezone                 string                   `json:"timezone" db:"timezone"`
	UnsubscribeToken         string                   `json:"-" db:"unsubscribe_token"`
	DeliveryStatus           DeliveryStatus           `json:"deliveryStatus" db:"delivery_status"`
	CreatedAt                time.Time                `json:"createdAt" db:"created_at"`
	UpdatedAt                time.Time                `json:"updatedAt" db:"updated_at"`
}

// DefaultPreferences returns the documented defaults for a new user. The ID
// and unsubscribe token are assigned by the preference store.
func DefaultPreferences(userID string) *Preferences {
	return &Preferences{
		UserID: userID,
		TransactionNotifications: TransactionNotifications{
			Enabled:    true,
			Frequency:  FrequencyImmediate,
			MinAmount:  0,
			Categories: []string{},
		},
		BudgetAlerts: BudgetAlerts{
			Enabled: true,
			Thresholds: BudgetThresholds{
				Warning:  75,
				Critical: 90,
				Exceeded: true,
			},
		},
		Reports: Reports{
			Weekly:  WeeklySchedule{Enabled: true, DayOfWeek: 1, Time: "09:00"},
			Monthly: MonthlySchedule{Enabled: true, DayOfMonth: 1, Time: "09:00"},
		},
		AccountEmails: AccountEmails{
			Welcome:           true,
			Security:          true,
			PasswordReset:     true,
			EmailVerification: true,
		},
		Marketing: Marketing{
			Newsletter:           true,
			FinancialTips:        true,
			ProductUpdates:       true,
			PersonalizedInsights: true,
		},
		EmailFormat: FormatHTML,
		Timezone:    "UTC",
	}
}

// BudgetAlertKind is the severity of a budget alert.
type BudgetAlertKind string

const (
	AlertNone     BudgetAlertKind = "none"
	AlertWarning  BudgetAlertKind = "warning"
	AlertCritical BudgetAlertKind = "critical"
	AlertExceeded BudgetAlertKind = "exceeded"
)

// BudgetAlertDecision is the outcome of evaluating a spend percentage
// against a user's thresholds.
type BudgetAlertDecision struct {
	Kind BudgetAlertKind `json:"type"`
	Send bool            `json:"send"`
}
