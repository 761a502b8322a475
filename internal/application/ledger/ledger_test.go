package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nep-campus/credit-ledger/internal/domain/shared"
)

// flakyStore fails the first n units with a version conflict.
type flakyStore struct {
	conflicts int
	calls     int
}

func (s *flakyStore) Atomic(ctx context.Context, _ string, fn func(ctx context.Context, tx Tx) error) error {
	s.calls++
	if err := fn(ctx, nil); err != nil {
		return err
	}
	if s.calls <= s.conflicts {
		return shared.ErrVersionConflict
	}
	return nil
}

func (s *flakyStore) Reader() Tx { return nil }

type capturePublisher struct {
	events []shared.Event
	err    error
}

func (p *capturePublisher) Publish(e shared.Event) error {
	p.events = append(p.events, e)
	return p.err
}

func TestUpdate_RetriesOnceOnVersionConflict(t *testing.T) {
	store := &flakyStore{conflicts: 1}
	pub := &capturePublisher{}
	l := New(store, pub, nil, Config{ConflictRetries: 1})

	err := l.Update(context.Background(), "Test", "s1", func(_ context.Context, u *Unit) error {
		u.Emit(shared.NewRecordVerifiedEvent("s1", "r1", "admin"))
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
	assert.Len(t, pub.events, 1, "events of the failed attempt are discarded")
}

func TestUpdate_ExhaustedConflictIsInconsistent(t *testing.T) {
	store := &flakyStore{conflicts: 5}
	pub := &capturePublisher{}
	l := New(store, pub, nil, Config{ConflictRetries: 1})

	err := l.Update(context.Background(), "Test", "s1", func(_ context.Context, u *Unit) error {
		u.Emit(shared.NewRecordVerifiedEvent("s1", "r1", "admin"))
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInconsistent)
	assert.Equal(t, shared.KindInconsistent, shared.KindOf(err))
	assert.Equal(t, 2, store.calls)
	assert.Empty(t, pub.events)
}

func TestUpdate_DomainErrorsAreNotRetried(t *testing.T) {
	store := &flakyStore{}
	l := New(store, nil, nil, Config{ConflictRetries: 3})

	err := l.Update(context.Background(), "Test", "s1", func(context.Context, *Unit) error {
		return shared.ErrCourseFull
	})

	assert.ErrorIs(t, err, shared.ErrCapacityExceeded)
	assert.Equal(t, 1, store.calls)
}

func TestUpdate_PublishFailureDoesNotFailUnit(t *testing.T) {
	pub := &capturePublisher{err: errors.New("bus down")}
	l := New(&flakyStore{}, pub, nil, Config{})

	err := l.Update(context.Background(), "Test", "s1", func(_ context.Context, u *Unit) error {
		u.Emit(shared.NewRecordVerifiedEvent("s1", "r1", "admin"))
		return nil
	})

	assert.NoError(t, err)
	assert.Len(t, pub.events, 1)
}

// orderLog records evictions and publications in call order.
type orderLog struct {
	calls []string
	err   error
}

func (o *orderLog) Invalidate(ctx context.Context, studentID string) error {
	if ctx.Err() != nil {
		o.calls = append(o.calls, "evict-cancelled:"+studentID)
		return ctx.Err()
	}
	o.calls = append(o.calls, "evict:"+studentID)
	return o.err
}

func (o *orderLog) Publish(e shared.Event) error {
	o.calls = append(o.calls, "publish:"+string(e.EventType()))
	return nil
}

func TestUpdate_EvictsAfterCommitBeforePublish(t *testing.T) {
	o := &orderLog{}
	l := New(&flakyStore{conflicts: 1}, o, nil, Config{ConflictRetries: 1, Evict: o})

	err := l.Update(context.Background(), "Test", "s1", func(_ context.Context, u *Unit) error {
		u.Emit(shared.NewRecordVerifiedEvent("s1", "r1", "admin"))
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"evict:s1", "publish:" + string(shared.EventRecordVerified)}, o.calls)
}

func TestUpdate_NoEvictionWithoutCommit(t *testing.T) {
	o := &orderLog{}
	l := New(&flakyStore{conflicts: 5}, nil, nil, Config{ConflictRetries: 1, Evict: o})

	err := l.Update(context.Background(), "Test", "s1", func(context.Context, *Unit) error { return nil })
	require.ErrorIs(t, err, shared.ErrInconsistent)

	err = l.Update(context.Background(), "Test", "s1", func(context.Context, *Unit) error { return shared.ErrCourseFull })
	require.Error(t, err)
	assert.Empty(t, o.calls)
}

func TestUpdate_EvictionSurvivesCancelledRequest(t *testing.T) {
	o := &orderLog{err: errors.New("redis down")}
	l := New(&flakyStore{}, nil, nil, Config{Evict: o})
	ctx, cancel := context.WithCancel(context.Background())

	err := l.Update(ctx, "Test", "s1", func(context.Context, *Unit) error {
		cancel()
		return nil
	})

	assert.NoError(t, err, "a failed eviction never fails a committed unit")
	assert.Equal(t, []string{"evict:s1"}, o.calls)
}
