package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/extrace/notify/internal/pkg/logger"
)

// FailurePolicy decides what happens to the error or panic of a background
// task. It must not block.
type FailurePolicy func(task, id string, err error)

// LogAndDrop logs the failure and forgets it. No retry is attempted.
func LogAndDrop(task, id string, err error) {
	logger.Error("background task failed", "task", task, "task_id", id, "error", err.Error())
}

// Dispatcher runs event handlers in the background so the request that
// produced the event returns immediately.
type Dispatcher struct {
	timeout time.Duration
	policy  FailurePolicy
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A zero timeout means tasks run
// without a deadline.
func NewDispatcher(timeout time.Duration, policy FailurePolicy) *Dispatcher {
	if policy == nil {
		policy = LogAndDrop
	}
	return &Dispatcher{timeout: timeout, policy: policy}
}

// Go starts fn on its own goroutine with a fresh context detached from the
// caller. It returns the task id.
func (d *Dispatcher) Go(name string, fn func(ctx context.Context) error) string {
	id := uuid.New().String()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.policy(name, id, fmt.Errorf("panic: %v", r))
			}
		}()

		ctx := context.Background()
		if d.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}
		if err := fn(ctx); err != nil {
			d.policy(name, id, err)
		}
	}()
	return id
}

// Wait blocks until every started task has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
