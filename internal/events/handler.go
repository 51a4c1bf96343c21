package events

import (
	"context"
	"errors"

	"github.com/rabbitmq/amqp091-go"

	"github.com/extrace/notify/internal/pkg/logger"
)

// Notifier is the notification engine surface driven by events.
type Notifier interface {
	OnTransactionCreated(ctx context.Context, transactionID string) error
	CheckBudgetAlert(ctx context.Context, userID, categoryName string) error
	SendWelcomeEmail(ctx context.Context, userID string) error
	SendPasswordResetEmail(ctx context.Context, userID, token string) error
	SendEmailVerification(ctx context.Context, userID, token string) error
}

// Handler routes decoded events to the engine.
type Handler struct {
	notifier Notifier
	log      *logger.Logger
}

func NewHandler(n Notifier) *Handler {
	return &Handler{notifier: n, log: logger.Default().With("component", "events")}
}

// Handle runs the engine call for m.
func (h *Handler) Handle(ctx context.Context, m *Message) error {
	switch m.Type {
	case TransactionCreated:
		return h.notifier.OnTransactionCreated(ctx, m.TransactionID)
	case UserRegistered:
		return h.notifier.SendWelcomeEmail(ctx, m.UserID)
	case PasswordResetRequest:
		return h.notifier.SendPasswordResetEmail(ctx, m.UserID, m.Token)
	case VerificationRequested:
		return h.notifier.SendEmailVerification(ctx, m.UserID, m.Token)
	case BudgetUpdated:
		return h.notifier.CheckBudgetAlert(ctx, m.UserID, m.Category)
	}
	return ErrUnknownType
}

// Process settles one delivery. Bad bodies are dropped; a failed handler is
// requeued once and dropped on redelivery.
func (h *Handler) Process(ctx context.Context, d amqp091.Delivery) {
	m, err := Decode(d.Body)
	if err != nil {
		h.log.Warn("dropping event", "message_id", d.MessageId, "error", err.Error())
		if errors.Is(err, ErrUnknownType) {
			d.Ack(false)
			return
		}
		d.Nack(false, false)
		return
	}

	if err := h.Handle(ctx, m); err != nil {
		requeue := !d.Redelivered
		h.log.Error("event handler failed",
			"type", m.Type, "message_id", d.MessageId, "requeue", requeue, "error", err.Error())
		d.Nack(false, requeue)
		return
	}
	d.Ack(false)
	h.log.Debug("event processed", "type", m.Type, "message_id", d.MessageId)
}
