package memory

import (
	"context"
	"sync"

	"github.com/nep-campus/credit-ledger/internal/domain/course"
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
)

// Catalog is an in-memory course.Catalog.
type Catalog struct {
	mu      sync.RWMutex
	courses map[string]course.Facts
}

// NewCatalog creates a Catalog seeded with courses.
func NewCatalog(courses ...course.Facts) *Catalog {
	c := &Catalog{courses: make(map[string]course.Facts, len(courses))}
	for _, f := range courses {
		c.courses[f.ID] = f
	}
	return c
}

var _ course.Catalog = (*Catalog)(nil)

// GetCourse implements course.Provider.
func (c *Catalog) GetCourse(_ context.Context, id string) (course.Facts, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.courses[id]
	if !ok {
		return course.Facts{}, shared.ErrCourseNotFound
	}
	f.SkillTags = append([]string(nil), f.SkillTags...)
	return f, nil
}

// PutCourse implements course.Catalog.
func (c *Catalog) PutCourse(_ context.Context, f course.Facts) error {
	if err := f.Validate(); err != nil {
		return err
	}
	f.SkillTags = course.NormalizeTags(f.SkillTags)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.courses[f.ID] = f
	return nil
}
