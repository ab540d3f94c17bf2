// Package retry wraps external calls in a bounded exponential backoff using cenkalti/backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy is a bounded exponential backoff: InitialInterval, then multiplied by Multiplier after each retry.
// MaxRetries counts retries after the first attempt, so a call runs at most MaxRetries+1 times.
type Policy struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxRetries      uint
	// Notify, if set, is called before each retry with the error and the delay about to be slept.
	Notify func(err error, delay time.Duration)
}

// Default returns the policy used for guild mutations: 1s, 2s, 4s between four attempts.
func Default() Policy {
	return Policy{
		InitialInterval: time.Second,
		Multiplier:      2,
		MaxRetries:      3,
	}
}

// Attempts is the total number of times Do runs an operation before giving up.
func (p Policy) Attempts() uint {
	return p.MaxRetries + 1
}

// BackOff returns a fresh, jitter-free backoff for the policy.
func (p Policy) BackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.MaxInterval = p.InitialInterval << p.MaxRetries
	b.Reset()
	return b
}

// Do runs op until it succeeds, the attempts are used up, or ctx is done.
// On exhaustion the error from the last attempt is returned unchanged.
func Do[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.BackOff()),
		backoff.WithMaxTries(p.Attempts()),
	}
	if p.Notify != nil {
		opts = append(opts, backoff.WithNotify(p.Notify))
	}
	return backoff.Retry(ctx, op, opts...)
}

// DoErr is Do for operations with no result.
func DoErr(ctx context.Context, p Policy, op func() error) error {
	_, err := Do(ctx, p, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}
