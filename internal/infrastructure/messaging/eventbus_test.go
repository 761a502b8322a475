package messaging

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nep-campus/credit-ledger/internal/domain/shared"
	"github.com/nep-campus/credit-ledger/pkg/logger"
)

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(Config{AsyncMode: false, Logger: logger.Nop()})
}

func TestEventBus_RoutesByType(t *testing.T) {
	bus := syncBus()
	var typed, all int
	require.NoError(t, bus.Subscribe(shared.EventRecordVerified, func(shared.Event) error { typed++; return nil }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { all++; return nil }))

	require.NoError(t, bus.Publish(shared.NewRecordVerifiedEvent("s1", "r1", "admin")))
	require.NoError(t, bus.Publish(shared.NewExitRecordedEvent("s1", "r1", "diploma", 80)))

	assert.Equal(t, 1, typed)
	assert.Equal(t, 2, all)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.Published[shared.EventRecordVerified])
	assert.Equal(t, int64(3), snap.Handled)
}

func TestEventBus_HandlerFailuresAreContained(t *testing.T) {
	bus := syncBus()
	var reached bool
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("bad handler") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { reached = true; return nil }))

	require.NoError(t, bus.Publish(shared.NewRecordVerifiedEvent("s1", "r1", "admin")))
	assert.True(t, reached)
	assert.Equal(t, int64(2), bus.Metrics().Snapshot().Failed)
}

func TestEventBus_AsyncCloseWaits(t *testing.T) {
	bus := NewInMemoryEventBus(Config{AsyncMode: true, WorkerPoolSize: 2, Logger: logger.Nop()})
	var n atomic.Int32
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		time.Sleep(5 * time.Millisecond)
		n.Add(1)
		return nil
	}))

	for i := 0; i < 4; i++ {
		require.NoError(t, bus.Publish(shared.NewRecordVerifiedEvent("s1", "r1", "admin")))
	}
	// Close either runs or skips handlers still waiting for a slot, never leaks them.
	require.NoError(t, bus.Close())
	assert.LessOrEqual(t, n.Load(), int32(4))

	assert.ErrorIs(t, bus.Publish(shared.NewRecordVerifiedEvent("s1", "r1", "admin")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(shared.Event) error { return nil }), ErrEventBusClosed)
	require.NoError(t, bus.Close())
}

func TestEventBus_RejectsNil(t *testing.T) {
	bus := syncBus()
	assert.Error(t, bus.Subscribe(shared.EventRecordVerified, nil))
	assert.Error(t, bus.SubscribeAll(nil))
	assert.Error(t, bus.Publish(nil))
}

func TestAuditLog_Subscribes(t *testing.T) {
	bus := syncBus()
	require.NoError(t, AuditLog(bus, logger.Nop()))
	require.NoError(t, bus.Publish(shared.NewCacheDivergedEvent("s1", 3, 4, true)))
	assert.Equal(t, int64(1), bus.Metrics().Snapshot().Handled)
}
