package utils

import (
	"context"
	"time"
)

// RetryPolicy defines how failed network operations are retried.
// All components that talk to the target share one policy so that
// retry behavior is tuned in a single place.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first
	MaxAttempts int

	// Delay is the base delay between attempts, scaled linearly
	Delay time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       500 * time.Millisecond,
	}
}

// NewRetryPolicy builds a policy from config values, falling back to
// defaults for non-positive inputs
func NewRetryPolicy(maxRetries int, delay time.Duration) RetryPolicy {
	p := DefaultRetryPolicy()
	if maxRetries > 0 {
		p.MaxAttempts = maxRetries
	}
	if delay > 0 {
		p.Delay = delay
	}
	return p
}

// Wait sleeps the backoff for the given zero-based attempt, returning
// early if the context is canceled
func (p RetryPolicy) Wait(ctx context.Context, attempt int) error {
	backoff := time.Duration(attempt+1) * p.Delay

	timer := time.NewTimer(backoff)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ShouldRetry reports whether the classified error type warrants
// another attempt. Canceled contexts and TLS failures never retry.
func (p RetryPolicy) ShouldRetry(errorType string, attempt int) bool {
	if attempt >= p.MaxAttempts-1 {
		return false
	}

	switch errorType {
	case "timeout", "connection_refused", "unknown":
		return true
	default:
		return false
	}
}
