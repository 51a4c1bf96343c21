// Package events consumes domain events published by the expense tracker
// over AMQP and turns them into notification engine calls.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types.
const (
	TransactionCreated    = "transaction.created"
	UserRegistered        = "user.registered"
	PasswordResetRequest  = "user.password_reset_requested"
	VerificationRequested = "user.verification_requested"
	BudgetUpdated         = "budget.updated"
)

// Message is the envelope every event shares. Only the fields relevant to
// Type are set.
type Message struct {
	Type          string    `json:"type"`
	UserID        string    `json:"userId,omitempty"`
	TransactionID string    `json:"transactionId,omitempty"`
	Category      string    `json:"category,omitempty"`
	Token         string    `json:"token,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Decode parses and validates a message body.
func Decode(body []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch m.Type {
	case TransactionCreated:
		if m.TransactionID == "" {
			return nil, fmt.Errorf("%w: %s without transactionId", ErrMalformed, m.Type)
		}
	case UserRegistered:
		if m.UserID == "" {
			return nil, fmt.Errorf("%w: %s without userId", ErrMalformed, m.Type)
		}
	case PasswordResetRequest, VerificationRequested:
		if m.UserID == "" || m.Token == "" {
			return nil, fmt.Errorf("%w: %s needs userId and token", ErrMalformed, m.Type)
		}
	case BudgetUpdated:
		if m.UserID == "" || m.Category == "" {
			return nil, fmt.Errorf("%w: %s needs userId and category", ErrMalformed, m.Type)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
	return &m, nil
}
