package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nep-campus/credit-ledger/internal/domain/grading"
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

type gradeRepo struct{ u *unit }

const gradeColumns = `id, student_id, course_id, enrollment_id, marks, assessment_type, letter_grade,
	grade_point, graded_by, remarks, created_at, updated_at`

func (r gradeRepo) Create(ctx context.Context, g *grading.Grade) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	_, err := r.u.q.Exec(ctx, `
		INSERT INTO grades (`+gradeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, g.ID, g.StudentID, g.CourseID, g.EnrollmentID, g.Marks, g.AssessmentType, g.LetterGrade,
		g.GradePoint, g.GradedBy, g.Remarks, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert grade: %w", translate(err, nil))
	}
	return nil
}

func (r gradeRepo) GetByID(ctx context.Context, id string) (*grading.Grade, error) {
	return scanGrade(r.u.q.QueryRow(ctx, `SELECT `+gradeColumns+` FROM grades WHERE id = $1`, id))
}

// Update rewrites the mutable fields. Grades have no version column: every
// grade write also saves the academic record, whose version guards the unit.
func (r gradeRepo) Update(ctx context.Context, g *grading.Grade) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	tag, err := r.u.q.Exec(ctx, `
		UPDATE grades SET marks = $1, letter_grade = $2, grade_point = $3, remarks = $4, updated_at = $5
		WHERE id = $6
	`, g.Marks, g.LetterGrade, g.GradePoint, g.Remarks, g.UpdatedAt, g.ID)
	if err != nil {
		return fmt.Errorf("failed to update grade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrGradeNotFound
	}
	return nil
}

func (r gradeRepo) LatestFinal(ctx context.Context, studentID, courseID string) (*grading.Grade, error) {
	return scanGrade(r.u.q.QueryRow(ctx, `
		SELECT `+gradeColumns+` FROM grades
		WHERE student_id = $1 AND course_id = $2 AND assessment_type = $3
		ORDER BY updated_at DESC, id DESC
		LIMIT 1
	`, studentID, courseID, grading.AssessmentFinal))
}

func (r gradeRepo) ListByStudent(ctx context.Context, studentID string) ([]*grading.Grade, error) {
	rows, err := r.u.q.Query(ctx, `SELECT `+gradeColumns+` FROM grades WHERE student_id = $1 ORDER BY created_at, id`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grades: %w", err)
	}
	defer rows.Close()

	out := make([]*grading.Grade, 0)
	for rows.Next() {
		g, err := scanGrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func scanGrade(row pgx.Row) (*grading.Grade, error) {
	var g grading.Grade
	err := row.Scan(&g.ID, &g.StudentID, &g.CourseID, &g.EnrollmentID, &g.Marks, &g.AssessmentType, &g.LetterGrade,
		&g.GradePoint, &g.GradedBy, &g.Remarks, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, translate(err, shared.ErrGradeNotFound)
	}
	return &g, nil
}
