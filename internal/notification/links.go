package notification

import (
	"net/url"
	"strings"
)

// Links are the frontend URLs embedded in emails.
type Links struct {
	Dashboard   string
	Budgets     string
	Reports     string
	Preferences string
	base        string
}

// NewLinks derives every link from the frontend base URL.
func NewLinks(frontendURL string) Links {
	base := strings.TrimRight(frontendURL, "/")
	return Links{
		Dashboard:   base + "/dashboard",
		Budgets:     base + "/dashboard/budgets",
		Reports:     base + "/dashboard/reports",
		Preferences: base + "/dashboard/settings",
		base:        base,
	}
}

func (l Links) Unsubscribe(token string) string {
	return l.base + "/unsubscribe?token=" + url.QueryEscape(token)
}

func (l Links) ResetPassword(token string) string {
	return l.base + "/auth/reset-password?token=" + url.QueryEscape(token)
}

func (l Links) VerifyEmail(token string) string {
	return l.base + "/auth/verify-email?token=" + url.QueryEscape(token)
}
