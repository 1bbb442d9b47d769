/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package retry runs operations again according to a backoff policy.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// IsRetryable tells if error is retryable as opposed to persistent.
type IsRetryable func(error) bool

// RetryableFunc does some work and can be potentially retried.
type RetryableFunc func(ctx context.Context) error

// Notify is called before every retry with the error and the backoff delay.
type Notify = backoff.Notify

// Policy defines backoff strategy.
type Policy interface {
	NewBackOff() backoff.BackOff
}

// DoWithRetry executes fn with retry according to policy p and with respect to context ctx.
// isRetryable defines which errors lead to retry attempt (nil means any error).
// notify receives a notification on every retry (may be nil).
// The last error of fn is returned as is, so errors.Is/As keep working for the caller.
func DoWithRetry(ctx context.Context, p Policy, isRetryable IsRetryable, notify Notify, fn RetryableFunc) error {
	bctx := backoff.WithContext(p.NewBackOff(), ctx)
	op := func() error {
		err := fn(ctx)
		if err != nil && isRetryable != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotify(op, bctx, notify)
}

// The PolicyFunc type is an adapter to allow the use of ordinary functions as retry.Policy.
type PolicyFunc func() backoff.BackOff

// NewBackOff implements retry.Policy.
func (f PolicyFunc) NewBackOff() backoff.BackOff {
	return f()
}

// NoRetryPolicy never retries.
var NoRetryPolicy Policy = PolicyFunc(func() backoff.BackOff { return &backoff.StopBackOff{} })

// ExponentialBackoffPolicy repeats up to maxAttempts times with exponentially growing delays.
type ExponentialBackoffPolicy struct {
	initialInterval time.Duration
	multiplier      float64
	maxAttempts     int
}

// NewExponentialBackoffPolicy returns an exponential backoff policy (1.5 multiplier)
// with given initial interval and max retry attempt count. Zero maxRetryAttempts means no limit.
func NewExponentialBackoffPolicy(initialInterval time.Duration, maxRetryAttempts int) ExponentialBackoffPolicy {
	return NewExponentialBackoffPolicyWithMultiplier(initialInterval, backoff.DefaultMultiplier, maxRetryAttempts)
}

// NewExponentialBackoffPolicyWithMultiplier is like NewExponentialBackoffPolicy but with a custom multiplier.
func NewExponentialBackoffPolicyWithMultiplier(
	initialInterval time.Duration, multiplier float64, maxRetryAttempts int,
) ExponentialBackoffPolicy {
	return ExponentialBackoffPolicy{initialInterval, multiplier, maxRetryAttempts}
}

// NewBackOff implements retry.Policy.
func (p ExponentialBackoffPolicy) NewBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.initialInterval
	if p.multiplier > 0 {
		eb.Multiplier = p.multiplier
	}
	eb.MaxElapsedTime = 0 // bounded by attempts and by the context
	return withMaxAttempts(eb, p.maxAttempts)
}

// ConstantBackoffPolicy repeats up to maxAttempts times with constant interval delays.
type ConstantBackoffPolicy struct {
	interval    time.Duration
	maxAttempts int
}

// NewConstantBackoffPolicy returns a constant backoff policy with given interval and max retry attempt count.
func NewConstantBackoffPolicy(interval time.Duration, maxRetryAttempts int) ConstantBackoffPolicy {
	return ConstantBackoffPolicy{interval, maxRetryAttempts}
}

// NewBackOff implements retry.Policy.
func (p ConstantBackoffPolicy) NewBackOff() backoff.BackOff {
	return withMaxAttempts(backoff.NewConstantBackOff(p.interval), p.maxAttempts)
}

func withMaxAttempts(bf backoff.BackOff, maxAttempts int) backoff.BackOff {
	if maxAttempts > 0 {
		bf = backoff.WithMaxRetries(bf, uint64(maxAttempts))
	}
	bf.Reset()
	return bf
}
