package postgres

import (
	"context"
	"fmt"

	"github.com/nep-campus/credit-ledger/internal/domain/shared"
	"github.com/nep-campus/credit-ledger/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

type studentRepo struct{ u *unit }

const studentColumns = `id, name, email, student_code, password_hash, credits_earned, created_at, updated_at`

// Create inserts a student. Email and code uniqueness are enforced by the table.
func (r studentRepo) Create(ctx context.Context, s *student.Student) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	_, err := r.u.q.Exec(ctx, `
		INSERT INTO students (`+studentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.ID, s.Name, s.Email, string(s.Code), s.PasswordHash, s.CreditsEarned, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrStudentAlreadyExists
		}
		return fmt.Errorf("failed to create student: %w", err)
	}
	return nil
}

// GetByID returns a student by internal ID.
func (r studentRepo) GetByID(ctx context.Context, id string) (*student.Student, error) {
	var (
		s    student.Student
		code string
	)
	err := r.u.q.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id).Scan(
		&s.ID, &s.Name, &s.Email, &code, &s.PasswordHash, &s.CreditsEarned, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err, shared.ErrStudentNotFound)
	}
	s.Code = shared.StudentCode(code)
	return &s, nil
}

// SetCreditsEarned rewrites the credit cache.
func (r studentRepo) SetCreditsEarned(ctx context.Context, id string, credits int) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	tag, err := r.u.q.Exec(ctx, `UPDATE students SET credits_earned = $1, updated_at = NOW() WHERE id = $2`, credits, id)
	if err != nil {
		return fmt.Errorf("failed to update credits: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

// ListIDs pages through student ids in ascending order.
func (r studentRepo) ListIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	rows, err := r.u.q.Query(ctx, `SELECT id FROM students WHERE id > $1 ORDER BY id LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan student id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
