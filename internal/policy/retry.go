// Package policy decides how outbound calls are retried.
package policy

import (
	"context"
	"fmt"
	"time"
)

// Backoff names how the delay grows between attempts
type Backoff string

const (
	BackoffExponential Backoff = "exponential"
	BackoffLinear      Backoff = "linear"
	BackoffConstant    Backoff = "constant"
)

// Retry retries a failed attempt up to MaxRetries times
type Retry struct {
	MaxRetries int
	Backoff    Backoff
	Base       time.Duration
}

// NewRetry creates a retry policy. An unknown backoff is treated as exponential.
func NewRetry(maxRetries int, backoff Backoff, base time.Duration) Retry {
	return Retry{MaxRetries: maxRetries, Backoff: backoff, Base: base}
}

// ShouldRetry reports whether attempt (zero-based) failing with err gets another try.
func (p Retry) ShouldRetry(attempt int, err error) bool {
	return err != nil && attempt < p.MaxRetries
}

// Delay is the wait before retry number attempt; the first try has none.
func (p Retry) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	switch p.Backoff {
	case BackoffLinear:
		return p.Base * time.Duration(attempt)
	case BackoffConstant:
		return p.Base
	default:
		return p.Base << uint(attempt-1)
	}
}

// Do calls fn until it succeeds, the retries run out, or ctx ends. fn gets the
// zero-based attempt number. The last error is returned.
func (p Retry) Do(ctx context.Context, fn func(attempt int) error) error {
	for attempt := 0; ; attempt++ {
		if delay := p.Delay(attempt); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry cancelled after %d attempts: %w", attempt, ctx.Err())
			case <-timer.C:
			}
		}
		err := fn(attempt)
		if !p.ShouldRetry(attempt, err) {
			return err
		}
	}
}
