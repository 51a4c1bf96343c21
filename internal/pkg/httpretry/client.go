// Package httpretry wraps an HTTP client with bounded retries, exponential
// backoff and full jitter. It is used for outbound fetches whose upstreams
// throttle or flap, such as the product-update feed.
package httpretry

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/extrace/notify/internal/pkg/logger"
)

// Doer executes HTTP requests. *http.Client and *Client both satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client retries transient failures of an underlying Doer.
type Client struct {
	next       Doer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	minDelay   time.Duration
}

// Option tunes a Client.
type Option func(*Client)

// WithBackoff sets the first retry delay and the cap. The floor between
// attempts is min(base, 100ms).
func WithBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = base
		c.maxDelay = max
		c.minDelay = min(base, 100*time.Millisecond)
	}
}

// New wraps next, or a 30s-timeout http.Client when next is nil.
// maxRetries <= 0 means 3.
func New(next Doer, maxRetries int, opts ...Option) *Client {
	if next == nil {
		next = &http.Client{Timeout: 30 * time.Second}
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	c := &Client{
		next:       next,
		maxRetries: maxRetries,
		baseDelay:  time.Second,
		maxDelay:   30 * time.Second,
		minDelay:   100 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Do sends req, retrying network errors and 429/5xx gateway statuses.
// Client errors and context cancellation are returned at once. The last
// attempt's response is returned as-is so callers can inspect it.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("httpretry: reset body: %w", err)
				}
				req.Body = body
			}
			delay := c.backoff(attempt)
			logger.Warn("httpretry: retrying",
				"attempt", attempt, "max", c.maxRetries,
				"host", req.URL.Host, "path", req.URL.Path,
				"wait", delay.String(), "cause", lastErr.Error())

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, lastErr
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := c.next.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}
		if !Retryable(resp.StatusCode) || attempt == c.maxRetries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: %s returned %d", req.URL.Host, resp.StatusCode)
	}
	return nil, lastErr
}

// backoff is random(0, min(maxDelay, baseDelay*2^(attempt-1))) floored at minDelay.
func (c *Client) backoff(attempt int) time.Duration {
	ceiling := math.Min(float64(c.baseDelay)*math.Pow(2, float64(attempt-1)), float64(c.maxDelay))
	d := time.Duration(rand.Float64() * ceiling)
	if d < c.minDelay {
		d = c.minDelay
	}
	return d
}

// Retryable reports whether status is worth another attempt.
func Retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
