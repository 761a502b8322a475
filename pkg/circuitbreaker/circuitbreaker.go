// Package circuitbreaker stops calling a failing dependency for a while so
// that requests fall back fast instead of waiting on timeouts.
//
// A breaker starts closed. After Settings.Trip consecutive failures it opens
// and rejects calls for Settings.Cooldown. The first call after the cooldown
// is a probe (half-open): Settings.Recover consecutive successful probes
// close it again, any failed probe reopens it.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of a breaker.
type State int

// Breaker states.
const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the state name used in logs and health output.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned without calling the guarded function.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrProbeInFlight is returned in half-open state once the probe budget is used.
	ErrProbeInFlight = errors.New("circuit breaker probe in flight")
)

// IsRejected reports whether err came from the breaker rather than the call.
func IsRejected(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrProbeInFlight)
}

// Settings configures a Breaker. Zero values fall back to the defaults
// noted on each field.
type Settings struct {
	Name string

	Trip     int           // consecutive failures that open the breaker, default 5
	Recover  int           // consecutive probe successes that close it, default 1
	Cooldown time.Duration // open period before probing, default 30s
	Probes   int           // concurrent calls allowed while half-open, default 1

	// Failure classifies an error. nil counts every non-nil error.
	Failure func(error) bool
	// OnTransition is called with the breaker lock held; keep it short.
	OnTransition func(name string, from, to State)

	// Clock is time.Now unless overridden.
	Clock func() time.Time
}

func (s Settings) normalized() Settings {
	if s.Trip <= 0 {
		s.Trip = 5
	}
	if s.Recover <= 0 {
		s.Recover = 1
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	if s.Probes <= 0 {
		s.Probes = 1
	}
	if s.Clock == nil {
		s.Clock = time.Now
	}
	return s
}

// Stats is a snapshot of a breaker's counters.
type Stats struct {
	State     State
	Calls     int64
	Failures  int64
	Rejected  int64
	Streak    int // consecutive results of the same kind in the current state
	OpenUntil time.Time
}

// Breaker guards calls to one dependency.
type Breaker struct {
	set Settings

	mu         sync.Mutex
	state      State
	generation uint64 // bumped on every transition; late results of an older generation are ignored
	failStreak int
	okStreak   int
	probing    int
	openUntil  time.Time

	calls, failures, rejected int64
}

// New creates a closed breaker.
func New(s Settings) *Breaker {
	return &Breaker{set: s.normalized()}
}

// Execute runs fn unless the breaker rejects the call. The error from fn is
// returned unchanged.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	gen, err := b.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)
	b.settle(gen, err)
	return err
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && !b.set.Clock().Before(b.openUntil) {
		b.transition(StateHalfOpen)
	}

	switch b.state {
	case StateOpen:
		b.rejected++
		return 0, ErrCircuitOpen
	case StateHalfOpen:
		if b.probing >= b.set.Probes {
			b.rejected++
			return 0, ErrProbeInFlight
		}
		b.probing++
	}
	b.calls++
	return b.generation, nil
}

func (b *Breaker) settle(gen uint64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.generation {
		return
	}
	if b.state == StateHalfOpen && b.probing > 0 {
		b.probing--
	}

	failed := err != nil
	if failed && b.set.Failure != nil {
		failed = b.set.Failure(err)
	}

	if failed {
		b.failures++
		b.okStreak = 0
		b.failStreak++
		if b.state == StateHalfOpen || b.failStreak >= b.set.Trip {
			b.transition(StateOpen)
		}
		return
	}

	b.failStreak = 0
	b.okStreak++
	if b.state == StateHalfOpen && b.okStreak >= b.set.Recover {
		b.transition(StateClosed)
	}
}

// transition must be called with mu held.
func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.generation++
	b.failStreak, b.okStreak, b.probing = 0, 0, 0
	if to == StateOpen {
		b.openUntil = b.set.Clock().Add(b.set.Cooldown)
	}
	if b.set.OnTransition != nil {
		b.set.OnTransition(b.set.Name, from, to)
	}
}

// State returns the current state. An open breaker whose cooldown has passed
// still reports open until the next call probes it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a snapshot of the counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	streak := b.okStreak
	if b.failStreak > 0 {
		streak = b.failStreak
	}
	return Stats{
		State:     b.state,
		Calls:     b.calls,
		Failures:  b.failures,
		Rejected:  b.rejected,
		Streak:    streak,
		OpenUntil: b.openUntil,
	}
}

// Name of the guarded dependency.
func (b *Breaker) Name() string { return b.set.Name }

// CacheBreaker guards the optional cache tier. Skipping the cache is cheap,
// so it trips after three failures and probes again after 15s.
func CacheBreaker(onTransition func(name string, from, to State), failure func(error) bool) *Breaker {
	return New(Settings{
		Name:         "redis-cache",
		Trip:         3,
		Recover:      1,
		Cooldown:     15 * time.Second,
		Probes:       1,
		Failure:      failure,
		OnTransition: onTransition,
	})
}
