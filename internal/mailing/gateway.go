// Package mailing is the delivery gateway: it renders the named Liquid
// templates and hands the result to a mail transport. Send reports every
// failure through the returned domain.SendResult and never panics past
// its boundary.
package mailing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/extrace/notify/internal/domain"
	"github.com/extrace/notify/internal/pkg/logger"
)

// Sender is the gateway contract consumed by the notification engine.
type Sender interface {
	Send(ctx context.Context, req Request) domain.SendResult
}

// Request describes one outbound email.
type Request struct {
	To       string
	Subject  string
	Template domain.EmailType
	Data     map[string]any
	// Format selects the body parts. Text sends only the derived plain part.
	Format domain.EmailFormat
	Tags   map[string]string
}

// Options are the sender identity fields stamped on every message.
type Options struct {
	FromName  string
	FromEmail string
	ReplyTo   string
}

// Gateway renders and sends email.
type Gateway struct {
	templates *TemplateEngine
	transport Transport
	opts      Options
	now       func() time.Time
	log       *logger.Logger
}

// NewGateway creates a delivery gateway.
func NewGateway(templates *TemplateEngine, transport Transport, opts Options) *Gateway {
	return &Gateway{
		templates: templates,
		transport: transport,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
		log:       logger.Default().With("component", "gateway", "transport", transport.Name()),
	}
}

// Send renders req.Template and delivers it. Rendering problems and missing
// transport configuration come back with Kind=config; provider rejections
// come back with Kind=transport.
func (g *Gateway) Send(ctx context.Context, req Request) (res domain.SendResult) {
	res.Transport = g.transport.Name()
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("send panicked", "template", string(req.Template), "panic", fmt.Sprint(r))
			res = domain.SendResult{
				Transport: g.transport.Name(),
				Error:     fmt.Sprintf("panic: %v", r),
				Kind:      domain.FailureConfig,
			}
		}
	}()

	if req.To == "" {
		return g.fail(res, domain.FailureConfig, errors.New("recipient is required"), req)
	}

	htmlBody, err := g.templates.Render(req.Template, req.Data)
	if err != nil {
		return g.fail(res, domain.FailureConfig, err, req)
	}
	textBody, err := HTMLToText(htmlBody)
	if err != nil {
		return g.fail(res, domain.FailureConfig, fmt.Errorf("derive text body: %w", err), req)
	}

	msg := &domain.EmailMessage{
		To:          req.To,
		FromName:    g.opts.FromName,
		FromEmail:   g.opts.FromEmail,
		ReplyTo:     g.opts.ReplyTo,
		Subject:     req.Subject,
		TextContent: textBody,
		Tags:        req.Tags,
	}
	if req.Format != domain.FormatText {
		msg.HTMLContent = htmlBody
	}

	id, err := g.transport.Send(ctx, msg)
	if err != nil {
		kind := domain.FailureTransport
		if errors.Is(err, ErrNotConfigured) {
			kind = domain.FailureConfig
		}
		return g.fail(res, kind, err, req)
	}

	g.log.Info("email sent", "template", string(req.Template), "recipient", req.To, "message_id", id)
	res.Success = true
	res.MessageID = id
	res.SentAt = g.now()
	return res
}

func (g *Gateway) fail(res domain.SendResult, kind domain.FailureKind, err error, req Request) domain.SendResult {
	g.log.Warn("email not sent",
		"template", string(req.Template),
		"recipient", req.To,
		"kind", string(kind),
		"error", err.Error(),
	)
	res.Success = false
	res.Error = err.Error()
	res.Kind = kind
	return res
}
