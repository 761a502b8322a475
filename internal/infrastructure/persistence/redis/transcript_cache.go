package redis

import (
	"context"
	"errors"
	"time"

	"github.com/nep-campus/credit-ledger/internal/application/query"
	"github.com/nep-campus/credit-ledger/internal/domain/record"
)

// TranscriptCache caches academic records by student id. Writes are fenced
// by a per-student generation that Invalidate advances.
type TranscriptCache struct {
	kv FencedKV
}

// NewTranscriptCache creates a TranscriptCache.
func NewTranscriptCache(kv FencedKV) *TranscriptCache {
	return &TranscriptCache{kv: kv}
}

var _ query.TranscriptCache = (*TranscriptCache)(nil)

// Get returns the cached record. A miss is (nil, false, nil).
func (c *TranscriptCache) Get(ctx context.Context, studentID string) (*record.AcademicRecord, bool, error) {
	var rec record.AcademicRecord
	err := c.kv.Get(ctx, TranscriptKey(studentID), &rec)
	if errors.Is(err, ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

// Generation returns the current invalidation generation of a student.
func (c *TranscriptCache) Generation(ctx context.Context, studentID string) (int64, error) {
	return c.kv.Generation(ctx, TranscriptGenKey(studentID))
}

// Set caches rec unless the student was invalidated after gen was taken or a
// higher record version is already cached.
func (c *TranscriptCache) Set(ctx context.Context, rec *record.AcademicRecord, gen int64, ttl time.Duration) error {
	if rec == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = TTLTranscript
	}
	_, err := c.kv.SetFenced(ctx, TranscriptKey(rec.StudentID), rec, ttl, Fence{
		GenKey:     TranscriptGenKey(rec.StudentID),
		Generation: gen,
		Version:    rec.Version,
	})
	return err
}

// Invalidate drops the cached record of a student and advances its
// generation.
func (c *TranscriptCache) Invalidate(ctx context.Context, studentID string) error {
	return c.kv.Bump(ctx, TranscriptGenKey(studentID), TranscriptKey(studentID))
}
