package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/extrace/notify/internal/pkg/logger"
)

// Consumer binds a durable queue to a topic exchange and feeds every
// delivery to a Handler, reconnecting with backoff when the broker drops.
type Consumer struct {
	url      string
	exchange string
	queue    string
	handler  *Handler
	log      *logger.Logger

	session func(ctx context.Context, ready func()) error
	wait    func(ctx context.Context, d time.Duration) bool
}

func NewConsumer(url, exchange, queue string, h *Handler) *Consumer {
	c := &Consumer{
		url:      url,
		exchange: exchange,
		queue:    queue,
		handler:  h,
		log:      logger.Default().With("component", "amqp-consumer"),
	}
	c.session = c.consumeOnce
	c.wait = waitFor
	return c
}

// Run consumes until ctx is done. It only returns nil. The reconnect
// backoff starts over each time a session gets as far as consuming.
func (c *Consumer) Run(ctx context.Context) error {
	attempt := 0
	for {
		err := c.session(ctx, func() { attempt = 0 })
		if ctx.Err() != nil {
			return nil
		}
		delay := reconnectDelay(attempt)
		attempt++
		c.log.Warn("amqp connection lost, reconnecting", "error", errString(err), "wait", delay.String())
		if !c.wait(ctx, delay) {
			return nil
		}
	}
}

func waitFor(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consumeOnce(ctx context.Context, ready func()) error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := c.setup(ch); err != nil {
		return err
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(c.queue, "notify", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	c.log.Info("consuming events", "exchange", c.exchange, "queue", c.queue)
	ready()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handler.Process(context.WithoutCancel(ctx), d)
		}
	}
}

func (c *Consumer) setup(ch *amqp091.Channel) error {
	if err := ch.ExchangeDeclare(c.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	for _, key := range []string{"transaction.*", "user.*", "budget.*"} {
		if err := ch.QueueBind(c.queue, key, c.exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// reconnectDelay doubles from 1s and caps at 30s.
func reconnectDelay(attempt int) time.Duration {
	if attempt > 5 {
		return 30 * time.Second
	}
	return min(time.Second<<attempt, 30*time.Second)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
