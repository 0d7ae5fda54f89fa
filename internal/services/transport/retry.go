// File: internal/services/transport/retry.go
package transport

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// AttemptFunc runs one attempt. Returning Stop(err) ends the loop without another try.
type AttemptFunc func(ctx context.Context, attempt int) error

// RetryNotify is called after a failed attempt, before waiting delay.
type RetryNotify func(attempt int, err error, delay time.Duration)

// Retrier runs attempts on a strictly doubling schedule: initial, 2*initial, 4*initial...
type Retrier struct {
	config   RetryConfig
	newTimer func() backoff.Timer
}

type RetrierOption func(*Retrier)

// WithTimer swaps the wall-clock timer, mostly for tests.
func WithTimer(newTimer func() backoff.Timer) RetrierOption {
	return func(r *Retrier) {
		r.newTimer = newTimer
	}
}

func NewRetrier(config RetryConfig, opts ...RetrierOption) *Retrier {
	r := &Retrier{config: config}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Retrier) Config() RetryConfig {
	return r.config
}

// Stop marks err as terminal for the current loop.
func Stop(err error) error {
	return backoff.Permanent(err)
}

// Do calls fn until it succeeds, returns Stop(err), ctx ends, or MaxAttempts is reached.
// It returns the number of attempts made and the error of the last one (unwrapped from Stop).
func (r *Retrier) Do(ctx context.Context, fn AttemptFunc, notify RetryNotify) (int, error) {
	attempts := 0
	var timer backoff.Timer
	if r.newTimer != nil {
		timer = r.newTimer()
	}

	err := backoff.RetryNotifyWithTimer(
		func() error {
			attempts++
			return fn(ctx, attempts)
		},
		r.schedule(ctx),
		func(err error, delay time.Duration) {
			if notify != nil {
				notify(attempts, err, delay)
			}
		},
		timer,
	)
	return attempts, err
}

func (r *Retrier) schedule(ctx context.Context) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(r.config.InitialDelay),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxInterval(time.Duration(math.MaxInt64)),
		backoff.WithMaxElapsedTime(0),
	)
	retries := r.config.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

// Delays returns the waits a fully failing loop would make, in order.
func (r *Retrier) Delays() []time.Duration {
	if r.config.MaxAttempts <= 1 {
		return nil
	}
	delays := make([]time.Duration, 0, r.config.MaxAttempts-1)
	d := r.config.InitialDelay
	for i := 1; i < r.config.MaxAttempts; i++ {
		delays = append(delays, d)
		d *= 2
	}
	return delays
}
