// Package retry runs an operation again when it fails with an error the
// caller considers transient, with exponential backoff and jitter between
// attempts.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryableError marks an error as worth another attempt.
type RetryableError struct {
	Err error
}

// Error returns the wrapped error's text.
func (e *RetryableError) Error() string { return e.Err.Error() }

// Unwrap returns the wrapped error.
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err so the default classifier retries it. nil stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err was wrapped by Retryable.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Backoff computes the pause before retry n (1-based).
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Jitter  float64 // 0 none, 1 up to ±100%
}

// Delay returns the pause after the n-th failed attempt.
func (b Backoff) Delay(n int) time.Duration {
	d := float64(b.Initial)
	for i := 1; i < n && d < float64(b.Max); i++ {
		d *= b.Factor
	}
	if d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		d += d * b.Jitter * (rand.Float64()*2 - 1)
	}
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}

// Retrier runs operations under one retry policy. It is immutable and safe
// to share.
type Retrier struct {
	attempts int
	backoff  Backoff
	retryIf  func(error) bool
	onRetry  func(attempt int, err error, delay time.Duration)
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithMaxAttempts counts the first call too.
func WithMaxAttempts(n int) Option {
	return func(r *Retrier) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithInitialDelay of zero retries immediately.
func WithInitialDelay(d time.Duration) Option {
	return func(r *Retrier) {
		if d >= 0 {
			r.backoff.Initial = d
		}
	}
}

// WithMaxDelay caps the pause between attempts. Non-positive values are
// ignored.
func WithMaxDelay(d time.Duration) Option {
	return func(r *Retrier) {
		if d > 0 {
			r.backoff.Max = d
		}
	}
}

// WithJitter sets the random spread of each pause, 0 to 1. Values outside
// that range are ignored.
func WithJitter(j float64) Option {
	return func(r *Retrier) {
		if j >= 0 && j <= 1 {
			r.backoff.Jitter = j
		}
	}
}

// WithRetryIf replaces the default classifier, which retries only
// RetryableError.
func WithRetryIf(fn func(error) bool) Option {
	return func(r *Retrier) { r.retryIf = fn }
}

// WithOnRetry is called before each pause.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(r *Retrier) { r.onRetry = fn }
}

// New returns a Retrier: 3 attempts, 100ms doubling up to 30s, 10% jitter.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		attempts: 3,
		backoff:  Backoff{Initial: 100 * time.Millisecond, Max: 30 * time.Second, Factor: 2, Jitter: 0.1},
		retryIf:  IsRetryable,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.retryIf == nil {
		r.retryIf = IsRetryable
	}
	return r
}

// Do calls op until it succeeds, returns an error the classifier rejects, or
// attempts run out. The final error is returned without the RetryableError
// wrapper so callers can match it with errors.Is. A cancelled ctx stops the
// loop and returns the last operation error, if any.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var last error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return last
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		last = unwrapRetryable(err)
		if attempt >= r.attempts || !r.retryIf(err) {
			return last
		}

		delay := r.backoff.Delay(attempt)
		if r.onRetry != nil {
			r.onRetry(attempt, err, delay)
		}
		if delay <= 0 {
			continue
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return last
		case <-t.C:
		}
	}
}

func unwrapRetryable(err error) error {
	var re *RetryableError
	if errors.As(err, &re) && re == err {
		return re.Err
	}
	return err
}

// ConflictRetrier re-runs a read-modify-write that lost an optimistic
// version race. retries is the number of extra attempts after the first.
func ConflictRetrier(retries int, isConflict func(error) bool, opts ...Option) *Retrier {
	base := []Option{
		WithMaxAttempts(retries + 1),
		WithInitialDelay(5 * time.Millisecond),
		WithMaxDelay(50 * time.Millisecond),
		WithJitter(0.5),
		WithRetryIf(isConflict),
	}
	return New(append(base, opts...)...)
}

// DatabaseRetrier is used while waiting for the database at startup.
func DatabaseRetrier() *Retrier {
	return New(
		WithMaxAttempts(5),
		WithInitialDelay(200*time.Millisecond),
		WithMaxDelay(3*time.Second),
		WithJitter(0.1),
	)
}
