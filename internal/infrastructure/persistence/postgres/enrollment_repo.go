package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nep-campus/credit-ledger/internal/domain/enrollment"
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

type enrollmentRepo struct{ u *unit }

const enrollmentColumns = `id, student_id, course_id, status, progress, completed_modules, credits_awarded,
	enrolled_at, completed_at, dropped_at, updated_at, version`

// Admit takes a seat and inserts the enrollment in the caller's transaction.
// The seat UPDATE holds the course_seats row lock until commit, so
// concurrent admissions to one course queue behind each other and the
// capacity predicate sees every committed admission.
func (r enrollmentRepo) Admit(ctx context.Context, e *enrollment.Enrollment, capacity int) error {
	if err := r.u.writable(); err != nil {
		return err
	}

	if _, err := r.u.q.Exec(ctx, `INSERT INTO course_seats (course_id) VALUES ($1) ON CONFLICT DO NOTHING`, e.CourseID); err != nil {
		return fmt.Errorf("failed to prepare seat counter: %w", err)
	}
	tag, err := r.u.q.Exec(ctx, `
		UPDATE course_seats SET taken = taken + 1
		WHERE course_id = $1 AND ($2 <= 0 OR taken < $2)
	`, e.CourseID, capacity)
	if err != nil {
		return fmt.Errorf("failed to reserve seat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrCourseFull
	}

	e.Version = 1
	_, err = r.u.q.Exec(ctx, `
		INSERT INTO enrollments (`+enrollmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, e.ID, e.StudentID, e.CourseID, string(e.Status), e.Progress, e.CompletedModules, e.CreditsAwarded,
		e.EnrolledAt, e.CompletedAt, e.DroppedAt, e.UpdatedAt, e.Version)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrEnrollmentExists
		}
		return fmt.Errorf("failed to insert enrollment: %w", err)
	}
	return nil
}

// GetByID returns an enrollment or ErrEnrollmentNotFound.
func (r enrollmentRepo) GetByID(ctx context.Context, id string) (*enrollment.Enrollment, error) {
	row := r.u.q.QueryRow(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id)
	return scanEnrollment(row)
}

// GetByPair returns the enrollment of studentID in courseID.
func (r enrollmentRepo) GetByPair(ctx context.Context, studentID, courseID string) (*enrollment.Enrollment, error) {
	row := r.u.q.QueryRow(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE student_id = $1 AND course_id = $2`, studentID, courseID)
	return scanEnrollment(row)
}

// Update writes e if its version is unchanged and frees the seat when the
// enrollment leaves the active state.
func (r enrollmentRepo) Update(ctx context.Context, e *enrollment.Enrollment) error {
	if err := r.u.writable(); err != nil {
		return err
	}

	var prev string
	err := r.u.q.QueryRow(ctx, `
		UPDATE enrollments AS n SET
			status = $1, progress = $2, completed_modules = $3, credits_awarded = $4,
			completed_at = $5, dropped_at = $6, updated_at = $7, version = n.version + 1
		FROM enrollments AS o
		WHERE n.id = o.id AND n.id = $8 AND n.version = $9
		RETURNING o.status
	`, string(e.Status), e.Progress, e.CompletedModules, e.CreditsAwarded,
		e.CompletedAt, e.DroppedAt, e.UpdatedAt, e.ID, e.Version).Scan(&prev)
	if IsNoRows(err) {
		if _, getErr := r.GetByID(ctx, e.ID); getErr != nil {
			return getErr
		}
		return shared.ErrVersionConflict
	}
	if err != nil {
		return translate(err, nil)
	}
	e.Version++

	if enrollment.Status(prev) == enrollment.StatusActive && !e.IsActive() {
		if _, err := r.u.q.Exec(ctx, `UPDATE course_seats SET taken = taken - 1 WHERE course_id = $1 AND taken > 0`, e.CourseID); err != nil {
			return fmt.Errorf("failed to release seat: %w", err)
		}
	}
	return nil
}

// ListByStudent returns the student's enrollments by enrollment time.
func (r enrollmentRepo) ListByStudent(ctx context.Context, studentID string) ([]*enrollment.Enrollment, error) {
	rows, err := r.u.q.Query(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE student_id = $1 ORDER BY enrolled_at, id`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	out := make([]*enrollment.Enrollment, 0)
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEnrollment(row pgx.Row) (*enrollment.Enrollment, error) {
	var (
		e      enrollment.Enrollment
		status string
	)
	err := row.Scan(&e.ID, &e.StudentID, &e.CourseID, &status, &e.Progress, &e.CompletedModules, &e.CreditsAwarded,
		&e.EnrolledAt, &e.CompletedAt, &e.DroppedAt, &e.UpdatedAt, &e.Version)
	if err != nil {
		return nil, translate(err, shared.ErrEnrollmentNotFound)
	}
	e.Status = enrollment.Status(status)
	if e.CompletedModules == nil {
		e.CompletedModules = []string{}
	}
	return &e, nil
}
