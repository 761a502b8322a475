package query

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nep-campus/credit-ledger/internal/application/ledger"
	"github.com/nep-campus/credit-ledger/internal/domain/record"
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
	"github.com/nep-campus/credit-ledger/internal/domain/student"
	"github.com/nep-campus/credit-ledger/internal/infrastructure/persistence/memory"
)

func seed(t *testing.T, s *memory.Store, n int, earned int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("s%02d", i)
		err := s.Atomic(context.Background(), id, func(ctx context.Context, tx ledger.Tx) error {
			st := &student.Student{ID: id, Name: id, Email: id + "@campus.edu", Code: shared.StudentCode(fmt.Sprintf("CS-%03d", i)), PasswordHash: "x"}
			if err := tx.Students().Create(ctx, st); err != nil {
				return err
			}
			rec := record.New("rec-"+id, id, time.Now().UTC())
			rec.TotalCreditsEarned = earned
			if err := tx.Records().Create(ctx, rec); err != nil {
				return err
			}
			return tx.Students().SetCreditsEarned(ctx, id, earned)
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestReconcileCredits_ReportsAndRepairs(t *testing.T) {
	store := memory.NewStore()
	ids := seed(t, store, 5, 8)
	store.ForceCreditsEarned(ids[1], 3)
	store.ForceCreditsEarned(ids[4], 20)

	l := ledger.New(store, nil, nil, ledger.Config{ConflictRetries: 1})
	h := NewReconcileCreditsHandler(l, nil)

	report, err := h.Handle(context.Background(), ReconcileCreditsQuery{PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, report.Scanned)
	require.Len(t, report.Divergences, 2)
	assert.Equal(t, Divergence{StudentID: ids[1], Cached: 3, Ledger: 8}, report.Divergences[0])
	assert.Equal(t, Divergence{StudentID: ids[4], Cached: 20, Ledger: 8}, report.Divergences[1])

	st, err := store.Reader().Students().GetByID(context.Background(), ids[1])
	require.NoError(t, err)
	assert.Equal(t, 3, st.CreditsEarned, "report-only run leaves the cache alone")

	report, err = h.Handle(context.Background(), ReconcileCreditsQuery{Repair: true})
	require.NoError(t, err)
	require.Len(t, report.Divergences, 2)
	assert.True(t, report.Divergences[0].Repaired)

	report, err = h.Handle(context.Background(), ReconcileCreditsQuery{})
	require.NoError(t, err)
	assert.Empty(t, report.Divergences)
}

func TestReconcileCredits_MissingRecord(t *testing.T) {
	store := memory.NewStore()
	err := store.Atomic(context.Background(), "orphan", func(ctx context.Context, tx ledger.Tx) error {
		return tx.Students().Create(ctx, &student.Student{ID: "orphan", Name: "o", Email: "o@campus.edu", Code: "CS-999", PasswordHash: "x"})
	})
	require.NoError(t, err)

	l := ledger.New(store, nil, nil, ledger.Config{})
	report, err := NewReconcileCreditsHandler(l, nil).Handle(context.Background(), ReconcileCreditsQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"orphan"}, report.Missing)
}

type fakeCache struct {
	items  map[string]*record.AcademicRecord
	gen    int64
	getErr error
	sets   int
}

func (c *fakeCache) Get(_ context.Context, id string) (*record.AcademicRecord, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	r, ok := c.items[id]
	return r, ok, nil
}

func (c *fakeCache) Generation(context.Context, string) (int64, error) {
	return c.gen, c.getErr
}

func (c *fakeCache) Set(_ context.Context, r *record.AcademicRecord, gen int64, _ time.Duration) error {
	if gen != c.gen {
		return nil
	}
	c.sets++
	c.items[r.StudentID] = r
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, id string) error {
	c.gen++
	delete(c.items, id)
	return nil
}

func TestGetTranscript_CacheAside(t *testing.T) {
	store := memory.NewStore()
	ids := seed(t, store, 1, 6)
	cache := &fakeCache{items: map[string]*record.AcademicRecord{}}
	h := NewGetTranscriptHandler(store.Reader(), cache, time.Minute, nil)

	rec, err := h.Handle(context.Background(), GetTranscriptQuery{StudentID: ids[0]})
	require.NoError(t, err)
	assert.Equal(t, 6, rec.TotalCreditsEarned)
	assert.Equal(t, 1, cache.sets)

	_, err = h.Handle(context.Background(), GetTranscriptQuery{StudentID: ids[0]})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets, "second read is served from cache")

	cache.getErr = errors.New("redis down")
	rec, err = h.Handle(context.Background(), GetTranscriptQuery{StudentID: ids[0]})
	require.NoError(t, err, "cache failures fall through to the store")
	assert.Equal(t, 6, rec.TotalCreditsEarned)
	assert.Equal(t, 1, cache.sets, "nothing is cached while the cache is failing")
	cache.getErr = nil

	_, err = h.Handle(context.Background(), GetTranscriptQuery{StudentID: "nobody"})
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))

	_, err = h.Handle(context.Background(), GetTranscriptQuery{})
	assert.Equal(t, shared.KindInvalidArgument, shared.KindOf(err))
}

func TestGetTranscript_LedgerCommitEvictsCache(t *testing.T) {
	store := memory.NewStore()
	ids := seed(t, store, 1, 6)
	cache := &fakeCache{items: map[string]*record.AcademicRecord{}}
	h := NewGetTranscriptHandler(store.Reader(), cache, time.Minute, nil)
	l := ledger.New(store, nil, nil, ledger.Config{Evict: cache})

	_, err := h.Handle(context.Background(), GetTranscriptQuery{StudentID: ids[0]})
	require.NoError(t, err)
	require.Contains(t, cache.items, ids[0])

	err = l.Update(context.Background(), "Test", ids[0], func(ctx context.Context, u *ledger.Unit) error {
		rec, err := u.Records().GetByStudent(ctx, ids[0])
		if err != nil {
			return err
		}
		rec.TotalCreditsEarned = 10
		return u.Records().Save(ctx, rec)
	})
	require.NoError(t, err)
	assert.NotContains(t, cache.items, ids[0], "commit evicts before Update returns")

	rec, err := h.Handle(context.Background(), GetTranscriptQuery{StudentID: ids[0]})
	require.NoError(t, err)
	assert.Equal(t, 10, rec.TotalCreditsEarned)
}
