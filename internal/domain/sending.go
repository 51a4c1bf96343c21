package domain

import "time"

// EmailType names a class of outbound mail. Each type renders the template
// of the same name.
type EmailType string

const (
	EmailWelcome                 EmailType = "welcome"
	EmailTransactionNotification EmailType = "transaction-notification"
	EmailTransactionDigest       EmailType = "transaction-digest"
	EmailBudgetAlert             EmailType = "budget-alert"
	EmailWeeklyReport            EmailType = "weekly-report"
	EmailMonthlyReport           EmailType = "monthly-report"
	EmailPasswordReset           EmailType = "password-reset"
	EmailVerification            EmailType = "email-verification"
	EmailNewsletter              EmailType = "newsletter"
)

// AllEmailTypes is the fixed template set loaded at process start.
var AllEmailTypes = []EmailType{
	EmailWelcome,
	EmailTransactionNotification,
	EmailTransactionDigest,
	EmailBudgetAlert,
	EmailWeeklyReport,
	EmailMonthlyReport,
	EmailPasswordReset,
	EmailVerification,
	EmailNewsletter,
}

// EmailMessage is the fully rendered message handed to a transport.
type EmailMessage struct {
	To          string            `json:"to"`
	FromName    string            `json:"from_name"`
	FromEmail   string            `json:"from_email"`
	ReplyTo     string            `json:"reply_to,omitempty"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"html_content,omitempty"`
	TextContent string            `json:"text_content"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// FailureKind separates caller/configuration mistakes from transport
// rejections so callers can decide what counts against a user.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureConfig    FailureKind = "config"
	FailureTransport FailureKind = "transport"
)

// SendResult is returned by the delivery gateway after attempting delivery.
type SendResult struct {
	Success   bool        `json:"success"`
	MessageID string      `json:"messageId,omitempty"`
	Transport string      `json:"transport,omitempty"`
	SentAt    time.Time   `json:"sentAt,omitempty"`
	Error     string      `json:"error,omitempty"`
	Kind      FailureKind `json:"kind,omitempty"`
}
