package preferences

import (
	"fmt"
	"regexp"
	"time"

	"github.com/extrace/notify/internal/domain"
)

// Update is a partial settings change. Nil groups are left untouched, and
// inside a group only non-nil fields are applied.
type Update struct {
	TransactionNotifications *TransactionNotificationsPatch `json:"transactionNotifications,omitempty"`
	BudgetAlerts             *BudgetAlertsPatch             `json:"budgetAlerts,omitempty"`
	Reports                  *ReportsPatch                  `json:"reports,omitempty"`
	AccountEmails            *AccountEmailsPatch            `json:"accountEmails,omitempty"`
	Marketing                *MarketingPatch                `json:"marketing,omitempty"`
	EmailFormat              *domain.EmailFormat            `json:"emailFormat,omitempty"`
	Timezone                 *string                        `json:"timezone,omitempty"`
}

type TransactionNotificationsPatch struct {
	Enabled    *bool             `json:"enabled,omitempty"`
	Frequency  *domain.Frequency `json:"frequency,omitempty"`
	MinAmount  *float64          `json:"minAmount,omitempty"`
	Categories *[]string         `json:"categories,omitempty"`
}

type ThresholdsPatch struct {
	Warning  *float64 `json:"warning,omitempty"`
	Critical *float64 `json:"critical,omitempty"`
	Exceeded *bool    `json:"exceeded,omitempty"`
}

type BudgetAlertsPatch struct {
	Enabled    *bool            `json:"enabled,omitempty"`
	Thresholds *ThresholdsPatch `json:"thresholds,omitempty"`
}

type WeeklySchedulePatch struct {
	Enabled   *bool   `json:"enabled,omitempty"`
	DayOfWeek *int    `json:"dayOfWeek,omitempty"`
	Time      *string `json:"time,omitempty"`
}

type MonthlySchedulePatch struct {
	Enabled    *bool   `json:"enabled,omitempty"`
	DayOfMonth *int    `json:"dayOfMonth,omitempty"`
	Time       *string `json:"time,omitempty"`
}

type ReportsPatch struct {
	Weekly  *WeeklySchedulePatch  `json:"weekly,omitempty"`
	Monthly *MonthlySchedulePatch `json:"monthly,omitempty"`
}

type AccountEmailsPatch struct {
	Welcome           *bool `json:"welcome,omitempty"`
	Security          *bool `json:"security,omitempty"`
	PasswordReset     *bool `json:"passwordReset,omitempty"`
	EmailVerification *bool `json:"emailVerification,omitempty"`
}

type MarketingPatch struct {
	Newsletter           *bool `json:"newsletter,omitempty"`
	FinancialTips        *bool `json:"financialTips,omitempty"`
	ProductUpdates       *bool `json:"productUpdates,omitempty"`
	PersonalizedInsights *bool `json:"personalizedInsights,omitempty"`
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// apply merges u into p in place.
func (u Update) apply(p *domain.Preferences) {
	if tn := u.TransactionNotifications; tn != nil {
		set(&p.TransactionNotifications.Enabled, tn.Enabled)
		set(&p.TransactionNotifications.Frequency, tn.Frequency)
		set(&p.TransactionNotifications.MinAmount, tn.MinAmount)
		set(&p.TransactionNotifications.Categories, tn.Categories)
	}
	if ba := u.BudgetAlerts; ba != nil {
		set(&p.BudgetAlerts.Enabled, ba.Enabled)
		if th := ba.Thresholds; th != nil {
			set(&p.BudgetAlerts.Thresholds.Warning, th.Warning)
			set(&p.BudgetAlerts.Thresholds.Critical, th.Critical)
			set(&p.BudgetAlerts.Thresholds.Exceeded, th.Exceeded)
		}
	}
	if r := u.Reports; r != nil {
		if w := r.Weekly; w != nil {
			set(&p.Reports.Weekly.Enabled, w.Enabled)
			set(&p.Reports.Weekly.DayOfWeek, w.DayOfWeek)
			set(&p.Reports.Weekly.Time, w.Time)
		}
		if m := r.Monthly; m != nil {
			set(&p.Reports.Monthly.Enabled, m.Enabled)
			set(&p.Reports.Monthly.DayOfMonth, m.DayOfMonth)
			set(&p.Reports.Monthly.Time, m.Time)
		}
	}
	if a := u.AccountEmails; a != nil {
		set(&p.AccountEmails.Welcome, a.Welcome)
		set(&p.AccountEmails.Security, a.Security)
		set(&p.AccountEmails.PasswordReset, a.PasswordReset)
		set(&p.AccountEmails.EmailVerification, a.EmailVerification)
	}
	if m := u.Marketing; m != nil {
		set(&p.Marketing.Newsletter, m.Newsletter)
		set(&p.Marketing.FinancialTips, m.FinancialTips)
		set(&p.Marketing.ProductUpdates, m.ProductUpdates)
		set(&p.Marketing.PersonalizedInsights, m.PersonalizedInsights)
	}
	set(&p.EmailFormat, u.EmailFormat)
	set(&p.Timezone, u.Timezone)
	if p.TransactionNotifications.Categories == nil {
		p.TransactionNotifications.Categories = []string{}
	}
}

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// validate checks the merged record and wraps every problem in ErrInvalid.
func validate(p *domain.Preferences) error {
	tn := p.TransactionNotifications
	if !tn.Frequency.Valid() {
		return fmt.Errorf("%w: frequency %q", ErrInvalid, tn.Frequency)
	}
	if tn.MinAmount < 0 {
		return fmt.Errorf("%w: minAmount must be >= 0", ErrInvalid)
	}
	th := p.BudgetAlerts.Thresholds
	if th.Warning < 0 || th.Critical < 0 {
		return fmt.Errorf("%w: thresholds must be >= 0", ErrInvalid)
	}
	if th.Warning > th.Critical {
		return fmt.Errorf("%w: warning threshold %.0f above critical %.0f", ErrInvalid, th.Warning, th.Critical)
	}
	if d := p.Reports.Weekly.DayOfWeek; d < 1 || d > 7 {
		return fmt.Errorf("%w: dayOfWeek %d not in 1-7", ErrInvalid, d)
	}
	if d := p.Reports.Monthly.DayOfMonth; d < 1 || d > 31 {
		return fmt.Errorf("%w: dayOfMonth %d not in 1-31", ErrInvalid, d)
	}
	if !clockPattern.MatchString(p.Reports.Weekly.Time) || !clockPattern.MatchString(p.Reports.Monthly.Time) {
		return fmt.Errorf("%w: report time must be HH:MM", ErrInvalid)
	}
	if p.EmailFormat != domain.FormatHTML && p.EmailFormat != domain.FormatText {
		return fmt.Errorf("%w: emailFormat %q", ErrInvalid, p.EmailFormat)
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return fmt.Errorf("%w: timezone %q", ErrInvalid, p.Timezone)
	}
	return nil
}
