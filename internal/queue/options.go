package queue

import (
	"time"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
)

type enqueueOptions struct {
	maxAttempts int
	backoff     domain.BackoffPolicy
	delay       time.Duration
}

// Option overrides a per-job default at enqueue time
type Option func(*enqueueOptions)

// WithMaxAttempts caps the number of attempts, including the first
func WithMaxAttempts(n int) Option {
	return func(o *enqueueOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithBackoff sets the retry delay policy
func WithBackoff(policy domain.BackoffPolicy) Option {
	return func(o *enqueueOptions) {
		if policy.Delay > 0 {
			o.backoff = policy
		}
	}
}

// WithDelay postpones the first attempt
func WithDelay(d time.Duration) Option {
	return func(o *enqueueOptions) {
		if d > 0 {
			o.delay = d
		}
	}
}
