package mailing

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/google/uuid"

	"github.com/extrace/notify/internal/domain"
	"github.com/extrace/notify/internal/pkg/logger"
)

// Transport hands a rendered message to a mail provider and returns the
// provider's message id.
type Transport interface {
	Name() string
	Send(ctx context.Context, msg *domain.EmailMessage) (string, error)
}

// EmailSender is the subset of the SES v2 client used by SESTransport.
type EmailSender interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESTransport sends through AWS SES v2.
type SESTransport struct {
	client  EmailSender
	timeout time.Duration
}

// NewSESTransport creates an SES transport. Without static credentials the
// transport is returned unconfigured and every send fails with
// ErrNotConfigured instead of crashing the process.
func NewSESTransport(ctx context.Context, accessKey, secretKey, region string, timeout time.Duration) *SESTransport {
	if region == "" {
		region = "us-east-1"
	}
	t := &SESTransport{timeout: timeout}
	if accessKey == "" || secretKey == "" {
		logger.Warn("SES credentials missing, sends will fail", "region", region)
		return t
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		logger.Warn("failed to initialize AWS config for SES", "error", err.Error())
		return t
	}
	t.client = sesv2.NewFromConfig(cfg)
	return t
}

// NewSESTransportWithClient wraps an existing client.
func NewSESTransportWithClient(client EmailSender, timeout time.Duration) *SESTransport {
	return &SESTransport{client: client, timeout: timeout}
}

func (s *SESTransport) Name() string { return "ses" }

func (s *SESTransport) Send(ctx context.Context, msg *domain.EmailMessage) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("%w: SES client not initialized, check credentials", ErrNotConfigured)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	body := &types.Body{}
	if msg.HTMLContent != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTMLContent), Charset: aws.String("UTF-8")}
	}
	if msg.TextContent != "" {
		body.Text = &types.Content{Data: aws.String(msg.TextContent), Charset: aws.String("UTF-8")}
	}
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", msg.FromName, msg.FromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body:    body,
			},
		},
	}
	for k, v := range msg.Tags {
		input.EmailTags = append(input.EmailTags, types.MessageTag{Name: aws.String(k), Value: aws.String(v)})
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}

// LogTransport writes messages to the log instead of sending them. Used in
// development.
type LogTransport struct {
	log *logger.Logger
}

func NewLogTransport(log *logger.Logger) *LogTransport {
	if log == nil {
		log = logger.Default()
	}
	return &LogTransport{log: log.With("component", "log-transport")}
}

func (l *LogTransport) Name() string { return "log" }

func (l *LogTransport) Send(_ context.Context, msg *domain.EmailMessage) (string, error) {
	id := "log-" + uuid.New().String()
	l.log.Info("email captured",
		"message_id", id,
		"recipient", msg.To,
		"subject", msg.Subject,
		"html_bytes", len(msg.HTMLContent),
		"text_bytes", len(msg.TextContent),
	)
	return id, nil
}
