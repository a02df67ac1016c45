package compact

import (
	"context"
	"strings"
	"time"
)

// RetryPolicy retries failed summarization calls with exponential backoff.
// Errors that look like auth or validation failures are returned immediately.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy: 3 attempts, 1s initial delay doubling up to 30s.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2.0,
		MaxDelay:     30 * time.Second,
	}
}

var transientMarkers = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
}

var permanentMarkers = []string{
	"invalid",
	"unauthorized",
	"forbidden",
}

// ShouldRetry reports whether err is worth another attempt. Classification is
// by message substring; errors matching neither list count as transient.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt > p.MaxAttempts {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	for _, m := range permanentMarkers {
		if strings.Contains(msg, m) {
			return false
		}
	}
	return true
}

// Execute runs fn until it succeeds, a permanent error occurs, the attempt
// budget runs out, or ctx is cancelled while backing off.
func (p *RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	delay := p.InitialDelay
	var lastErr error
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !p.ShouldRetry(err, attempt) {
			return err
		}
		if attempt >= p.MaxAttempts {
			return lastErr
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}
