package services

import (
	"context"
	"log"
	"time"
)

type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
}

// WithRetry runs fn until it succeeds, returns a non-retryable error, or the
// attempts are used up. The delay doubles after every failed attempt.
func WithRetry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	delay := policy.BaseDelay
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !IsRetryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		log.Printf("[RETRY] attempt %d/%d failed, retrying in %s: %v", i+1, attempts, delay, err)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
