package preferences

import (
	"slices"

	"github.com/extrace/notify/internal/domain"
)

// ShouldSendTransactionNotification decides whether tx is worth an email
// for the owner of p.
func ShouldSendTransactionNotification(p *domain.Preferences, tx *domain.Transaction) bool {
	tn := p.TransactionNotifications
	if !tn.Enabled {
		return false
	}
	if tx.Amount < tn.MinAmount {
		return false
	}
	if len(tn.Categories) > 0 && !slices.Contains(tn.Categories, tx.Category) {
		return false
	}
	return true
}

// ShouldSendBudgetAlert maps a spend percentage to exactly one alert kind,
// checked from the most severe down.
func ShouldSendBudgetAlert(p *domain.Preferences, percentage float64) domain.BudgetAlertDecision {
	if !p.BudgetAlerts.Enabled {
		return domain.BudgetAlertDecision{Kind: domain.AlertNone}
	}
	th := p.BudgetAlerts.Thresholds
	switch {
	case percentage >= 100 && th.Exceeded:
		return domain.BudgetAlertDecision{Kind: domain.AlertExceeded, Send: true}
	case percentage >= th.Critical:
		return domain.BudgetAlertDecision{Kind: domain.AlertCritical, Send: true}
	case percentage >= th.Warning:
		return domain.BudgetAlertDecision{Kind: domain.AlertWarning, Send: true}
	}
	return domain.BudgetAlertDecision{Kind: domain.AlertNone}
}
