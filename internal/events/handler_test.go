package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAck struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *fakeAck) Ack(uint64, bool) error { a.acked = true; return nil }
func (a *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}
func (a *fakeAck) Reject(_ uint64, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}

type fakeNotifier struct {
	calls []string
	err   error
}

func (n *fakeNotifier) OnTransactionCreated(_ context.Context, id string) error {
	n.calls = append(n.calls, "tx:"+id)
	return n.err
}

func (n *fakeNotifier) CheckBudgetAlert(_ context.Context, userID, category string) error {
	n.calls = append(n.calls, "budget:"+userID+":"+category)
	return n.err
}

func (n *fakeNotifier) SendWelcomeEmail(_ context.Context, userID string) error {
	n.calls = append(n.calls, "welcome:"+userID)
	return n.err
}

func (n *fakeNotifier) SendPasswordResetEmail(_ context.Context, userID, token string) error {
	n.calls = append(n.calls, "reset:"+userID+":"+token)
	return n.err
}

func (n *fakeNotifier) SendEmailVerification(_ context.Context, userID, token string) error {
	n.calls = append(n.calls, "verify:"+userID+":"+token)
	return n.err
}

func delivery(body string, redelivered bool) (amqp091.Delivery, *fakeAck) {
	ack := &fakeAck{}
	return amqp091.Delivery{Acknowledger: ack, Body: []byte(body), DeliveryTag: 1, Redelivered: redelivered}, ack
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
	}{
		{"transaction", `{"type":"transaction.created","transactionId":"tx-1"}`, nil},
		{"welcome", `{"type":"user.registered","userId":"u1"}`, nil},
		{"reset", `{"type":"user.password_reset_requested","userId":"u1","token":"t"}`, nil},
		{"budget", `{"type":"budget.updated","userId":"u1","category":"Food"}`, nil},
		{"bad json", `{"type":`, ErrMalformed},
		{"missing tx id", `{"type":"transaction.created"}`, ErrMalformed},
		{"reset without token", `{"type":"user.password_reset_requested","userId":"u1"}`, ErrMalformed},
		{"unknown", `{"type":"user.deleted","userId":"u1"}`, ErrUnknownType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.err), err)
		})
	}
}

func TestProcess_RoutesAndAcks(t *testing.T) {
	n := &fakeNotifier{}
	h := NewHandler(n)

	bodies := []string{
		`{"type":"transaction.created","transactionId":"tx-1"}`,
		`{"type":"user.registered","userId":"u1"}`,
		`{"type":"user.password_reset_requested","userId":"u1","token":"r"}`,
		`{"type":"user.verification_requested","userId":"u1","token":"v"}`,
		`{"type":"budget.updated","userId":"u1","category":"Food"}`,
	}
	for _, b := range bodies {
		d, ack := delivery(b, false)
		h.Process(context.Background(), d)
		assert.True(t, ack.acked, b)
	}
	assert.Equal(t, []string{"tx:tx-1", "welcome:u1", "reset:u1:r", "verify:u1:v", "budget:u1:Food"}, n.calls)
}

func TestProcess_MalformedIsDropped(t *testing.T) {
	h := NewHandler(&fakeNotifier{})
	d, ack := delivery(`not json`, false)
	h.Process(context.Background(), d)
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestProcess_UnknownTypeIsAcked(t *testing.T) {
	n := &fakeNotifier{}
	h := NewHandler(n)
	d, ack := delivery(`{"type":"user.deleted","userId":"u1"}`, false)
	h.Process(context.Background(), d)
	assert.True(t, ack.acked)
	assert.Empty(t, n.calls)
}

func TestProcess_FailureRequeuedOnce(t *testing.T) {
	n := &fakeNotifier{err: errors.New("db down")}
	h := NewHandler(n)

	d, ack := delivery(`{"type":"transaction.created","transactionId":"tx-1"}`, false)
	h.Process(context.Background(), d)
	require.True(t, ack.nacked)
	assert.True(t, ack.requeue)

	d, ack = delivery(`{"type":"transaction.created","transactionId":"tx-1"}`, true)
	h.Process(context.Background(), d)
	require.True(t, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestReconnectDelay(t *testing.T) {
	assert.Equal(t, time.Second, reconnectDelay(0))
	assert.Equal(t, 4*time.Second, reconnectDelay(2))
	assert.Equal(t, 30*time.Second, reconnectDelay(5))
	assert.Equal(t, 30*time.Second, reconnectDelay(40))
}

func TestConsumerRun_BackoffResetsAfterConsuming(t *testing.T) {
	c := NewConsumer("amqp://unused", "ex", "q", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// fail, fail, consume then drop, fail, fail
	script := []bool{false, false, true, false, false}
	sessions := 0
	c.session = func(_ context.Context, ready func()) error {
		if script[sessions] {
			ready()
		}
		sessions++
		return errors.New("connection reset")
	}
	var waits []time.Duration
	c.wait = func(_ context.Context, d time.Duration) bool {
		waits = append(waits, d)
		if len(waits) == len(script) {
			cancel()
			return false
		}
		return true
	}

	require.NoError(t, c.Run(ctx))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, time.Second, 2 * time.Second, 4 * time.Second}, waits)
}

func TestConsumerRun_StopsWhenContextDone(t *testing.T) {
	c := NewConsumer("amqp://unused", "ex", "q", nil)
	ctx, cancel := context.WithCancel(context.Background())
	c.session = func(ctx context.Context, ready func()) error {
		ready()
		cancel()
		return ctx.Err()
	}
	c.wait = func(context.Context, time.Duration) bool {
		t.Fatal("waited after cancellation")
		return false
	}
	assert.NoError(t, c.Run(ctx))
}
