package redis

import (
	"context"
	"errors"
	"time"

	"github.com/nep-campus/credit-ledger/internal/domain/course"
	"github.com/nep-campus/credit-ledger/pkg/logger"
)

// CourseCache is a read-through course.Catalog in front of another catalog.
// Cache failures degrade to the underlying catalog.
type CourseCache struct {
	next course.Catalog
	kv   KV
	ttl  time.Duration
	log  *logger.Logger
}

// NewCourseCache wraps next.
func NewCourseCache(next course.Catalog, kv KV, ttl time.Duration, log *logger.Logger) *CourseCache {
	if ttl <= 0 {
		ttl = TTLCourse
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CourseCache{next: next, kv: kv, ttl: ttl, log: log.With(logger.Component("course_cache"))}
}

var _ course.Catalog = (*CourseCache)(nil)

// GetCourse implements course.Provider.
func (c *CourseCache) GetCourse(ctx context.Context, id string) (course.Facts, error) {
	var f course.Facts
	err := c.kv.Get(ctx, CourseKey(id), &f)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.log.Warn("course cache read failed", logger.CourseID(id), logger.Err(err))
	}

	f, err = c.next.GetCourse(ctx, id)
	if err != nil {
		return course.Facts{}, err
	}
	if err := c.kv.Set(ctx, CourseKey(id), f, c.ttl); err != nil {
		c.log.Warn("course cache write failed", logger.CourseID(id), logger.Err(err))
	}
	return f, nil
}

// PutCourse writes through and drops the cached copy.
func (c *CourseCache) PutCourse(ctx context.Context, f course.Facts) error {
	if err := c.next.PutCourse(ctx, f); err != nil {
		return err
	}
	if err := c.kv.Delete(ctx, CourseKey(f.ID)); err != nil {
		c.log.Warn("course cache invalidation failed", logger.CourseID(f.ID), logger.Err(err))
	}
	return nil
}
