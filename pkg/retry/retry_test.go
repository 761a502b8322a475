package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func TestDo_RetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := New(WithMaxAttempts(5), WithInitialDelay(0)).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errTransient)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPlainError(t *testing.T) {
	calls := 0
	err := New(WithMaxAttempts(5), WithInitialDelay(0)).Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestDo_UnwrapsRetryableOnExhaustion(t *testing.T) {
	err := New(WithMaxAttempts(2), WithInitialDelay(0)).Do(context.Background(), func(context.Context) error {
		return Retryable(errTransient)
	})

	assert.Equal(t, errTransient, err)
	assert.False(t, IsRetryable(err))
}

func TestDo_ContextCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := New(WithMaxAttempts(5), WithInitialDelay(time.Second)).Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return Retryable(errTransient)
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestConflictRetrier(t *testing.T) {
	conflict := errors.New("stale version")
	isConflict := func(err error) bool { return errors.Is(err, conflict) }

	var retried []int
	r := ConflictRetrier(1, isConflict, WithInitialDelay(0), WithOnRetry(func(attempt int, _ error, _ time.Duration) {
		retried = append(retried, attempt)
	}))

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return conflict
	})

	assert.ErrorIs(t, err, conflict)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []int{1}, retried)
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 5 * time.Second, Factor: 2}
	assert.Equal(t, time.Second, b.Delay(1))
	assert.Equal(t, 2*time.Second, b.Delay(2))
	assert.Equal(t, 4*time.Second, b.Delay(3))
	assert.Equal(t, 5*time.Second, b.Delay(4))
	assert.Equal(t, 5*time.Second, b.Delay(30))
}

func TestBackoff_JitterStaysInBand(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Factor: 2, Jitter: 0.5}
	for i := 0; i < 50; i++ {
		d := b.Delay(1)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestDo_NilClassifierFallsBackToRetryable(t *testing.T) {
	calls := 0
	err := New(WithRetryIf(nil), WithMaxAttempts(3), WithInitialDelay(0)).Do(context.Background(), func(context.Context) error {
		calls++
		return Retryable(errTransient)
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
	require.False(t, IsRetryable(err))
}
