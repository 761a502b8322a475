package postgres

import (
	"context"
	"fmt"

	"github.com/nep-campus/credit-ledger/internal/domain/course"
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
)

// Catalog implements course.Catalog on the courses table.
type Catalog struct {
	conn *Connection
}

// NewCatalog creates a Catalog.
func NewCatalog(conn *Connection) *Catalog {
	return &Catalog{conn: conn}
}

var _ course.Catalog = (*Catalog)(nil)

// GetCourse implements course.Provider.
func (c *Catalog) GetCourse(ctx context.Context, id string) (course.Facts, error) {
	var f course.Facts
	err := c.conn.QueryRow(ctx, `
		SELECT id, code, name, credits, semester, skill_tags, is_active, max_enrollment
		FROM courses WHERE id = $1
	`, id).Scan(&f.ID, &f.Code, &f.Name, &f.Credits, &f.Semester, &f.SkillTags, &f.IsActive, &f.MaxEnrollment)
	if err != nil {
		return course.Facts{}, translate(err, shared.ErrCourseNotFound)
	}
	f.SkillTags = nonNil(f.SkillTags)
	return f, nil
}

// PutCourse upserts a course and its seat counter.
func (c *Catalog) PutCourse(ctx context.Context, f course.Facts) error {
	if err := f.Validate(); err != nil {
		return err
	}
	f.SkillTags = course.NormalizeTags(f.SkillTags)

	_, err := c.conn.Exec(ctx, `
		WITH upsert AS (
			INSERT INTO courses (id, code, name, credits, semester, skill_tags, is_active, max_enrollment, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
			ON CONFLICT (id) DO UPDATE SET
				code = EXCLUDED.code, name = EXCLUDED.name, credits = EXCLUDED.credits,
				semester = EXCLUDED.semester, skill_tags = EXCLUDED.skill_tags,
				is_active = EXCLUDED.is_active, max_enrollment = EXCLUDED.max_enrollment,
				updated_at = NOW()
			RETURNING id
		)
		INSERT INTO course_seats (course_id) SELECT id FROM upsert ON CONFLICT DO NOTHING
	`, f.ID, f.Code, f.Name, f.Credits, f.Semester, f.SkillTags, f.IsActive, f.MaxEnrollment)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("course", "Put", shared.ErrConflict, "course code already in use")
		}
		return fmt.Errorf("failed to upsert course: %w", err)
	}
	return nil
}
