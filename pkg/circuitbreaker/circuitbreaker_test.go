package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("down")

func fail(context.Context) error    { return errDown }
func succeed(context.Context) error { return nil }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)}
}

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	var transitions []State
	b := New(Settings{
		Name: "t", Trip: 2, Cooldown: time.Hour, Clock: newClock().Now,
		OnTransition: func(_ string, _, to State) { transitions = append(transitions, to) },
	})
	ctx := context.Background()

	assert.ErrorIs(t, b.Execute(ctx, fail), errDown)
	assert.Equal(t, StateClosed, b.State())
	assert.ErrorIs(t, b.Execute(ctx, fail), errDown)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, IsRejected(err))
	assert.False(t, called)
	assert.Equal(t, []State{StateOpen}, transitions)

	st := b.Stats()
	assert.EqualValues(t, 2, st.Calls)
	assert.EqualValues(t, 2, st.Failures)
	assert.EqualValues(t, 1, st.Rejected)
}

func TestBreaker_SuccessResetsStreak(t *testing.T) {
	b := New(Settings{Trip: 2, Clock: newClock().Now})
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, succeed)
	_ = b.Execute(ctx, fail)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_ProbeClosesOrReopens(t *testing.T) {
	clock := newClock()
	b := New(Settings{Trip: 1, Recover: 1, Cooldown: time.Minute, Clock: clock.Now})
	ctx := context.Background()

	require.ErrorIs(t, b.Execute(ctx, fail), errDown)
	require.Equal(t, StateOpen, b.State())

	clock.Advance(time.Minute)
	require.ErrorIs(t, b.Execute(ctx, fail), errDown)
	assert.Equal(t, StateOpen, b.State(), "failed probe reopens")
	assert.Equal(t, clock.Now().Add(time.Minute), b.Stats().OpenUntil)

	clock.Advance(30 * time.Second)
	assert.ErrorIs(t, b.Execute(ctx, succeed), ErrCircuitOpen)

	clock.Advance(30 * time.Second)
	require.NoError(t, b.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenLimitsProbes(t *testing.T) {
	clock := newClock()
	b := New(Settings{Trip: 1, Cooldown: time.Second, Probes: 1, Clock: clock.Now})
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	clock.Advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Execute(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.Equal(t, StateHalfOpen, b.State())
	assert.ErrorIs(t, b.Execute(ctx, succeed), ErrProbeInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_FailureFilter(t *testing.T) {
	miss := errors.New("miss")
	b := New(Settings{Trip: 1, Failure: func(err error) bool { return !errors.Is(err, miss) }})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Execute(context.Background(), func(context.Context) error { return miss }), miss)
	}
	assert.Equal(t, StateClosed, b.State())
	assert.EqualValues(t, 0, b.Stats().Failures)
	assert.Equal(t, 3, b.Stats().Streak)
}

func TestCacheBreaker(t *testing.T) {
	b := CacheBreaker(nil, nil)
	assert.Equal(t, "redis-cache", b.Name())
	for i := 0; i < 3; i++ {
		_ = b.Execute(context.Background(), fail)
	}
	assert.Equal(t, StateOpen, b.State())
}
