package redis

import (
	"context"
	"errors"
	"time"

	"github.com/nep-campus/credit-ledger/pkg/circuitbreaker"
	"github.com/nep-campus/credit-ledger/pkg/logger"
)

// GuardedKV puts a circuit breaker in front of a FencedKV. While the breaker is
// open every call fails with circuitbreaker.ErrCircuitOpen without touching
// Redis; callers already treat cache errors as a miss.
type GuardedKV struct {
	next    FencedKV
	breaker *circuitbreaker.Breaker
}

// NewGuardedKV wraps next. Misses do not count as failures.
func NewGuardedKV(next FencedKV, log *logger.Logger) *GuardedKV {
	if log == nil {
		log = logger.Nop()
	}
	onChange := func(name string, from, to circuitbreaker.State) {
		log.Warn("cache circuit state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()))
	}
	isFailure := func(err error) bool { return !errors.Is(err, ErrCacheMiss) }
	return &GuardedKV{next: next, breaker: circuitbreaker.CacheBreaker(onChange, isFailure)}
}

var _ FencedKV = (*GuardedKV)(nil)

// Get implements KV.
func (g *GuardedKV) Get(ctx context.Context, key string, dest any) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.next.Get(ctx, key, dest)
	})
}

// Set implements KV.
func (g *GuardedKV) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.next.Set(ctx, key, value, ttl)
	})
}

// Delete implements KV.
func (g *GuardedKV) Delete(ctx context.Context, keys ...string) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.next.Delete(ctx, keys...)
	})
}

// Generation implements FencedKV.
func (g *GuardedKV) Generation(ctx context.Context, genKey string) (int64, error) {
	var gen int64
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		gen, err = g.next.Generation(ctx, genKey)
		return err
	})
	return gen, err
}

// SetFenced implements FencedKV.
func (g *GuardedKV) SetFenced(ctx context.Context, key string, value any, ttl time.Duration, f Fence) (bool, error) {
	var written bool
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		written, err = g.next.SetFenced(ctx, key, value, ttl, f)
		return err
	})
	return written, err
}

// Bump implements FencedKV.
func (g *GuardedKV) Bump(ctx context.Context, genKey string, keys ...string) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.next.Bump(ctx, genKey, keys...)
	})
}

// State reports the breaker state, for health output.
func (g *GuardedKV) State() circuitbreaker.State {
	return g.breaker.State()
}
