package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nep-campus/credit-ledger/internal/domain/record"
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACADEMIC RECORD REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

type recordRepo struct{ u *unit }

const recordColumns = `id, student_id, course_records, total_credits_attempted, total_credits_earned, cgpa,
	skills_acquired, current_level, exit_qualifications, is_verified, verified_by, verified_at,
	created_at, updated_at, version`

func (r recordRepo) Create(ctx context.Context, rec *record.AcademicRecord) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	courses, exits, err := marshalRecord(rec)
	if err != nil {
		return err
	}
	rec.Version = 1
	_, err = r.u.q.Exec(ctx, `
		INSERT INTO academic_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, rec.ID, rec.StudentID, courses, rec.TotalCreditsAttempted, rec.TotalCreditsEarned, rec.CGPA,
		rec.SkillsAcquired, string(rec.CurrentLevel), exits, rec.IsVerified, rec.VerifiedBy, rec.VerifiedAt,
		rec.CreatedAt, rec.UpdatedAt, rec.Version)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("record", "Create", shared.ErrConflict, "student already has an academic record")
		}
		return fmt.Errorf("failed to insert academic record: %w", err)
	}
	return nil
}

func (r recordRepo) GetByID(ctx context.Context, id string) (*record.AcademicRecord, error) {
	return scanRecord(r.u.q.QueryRow(ctx, `SELECT `+recordColumns+` FROM academic_records WHERE id = $1`, id))
}

func (r recordRepo) GetByStudent(ctx context.Context, studentID string) (*record.AcademicRecord, error) {
	return scanRecord(r.u.q.QueryRow(ctx, `SELECT `+recordColumns+` FROM academic_records WHERE student_id = $1`, studentID))
}

// Save rewrites the whole document when rec.Version is still current.
func (r recordRepo) Save(ctx context.Context, rec *record.AcademicRecord) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	courses, exits, err := marshalRecord(rec)
	if err != nil {
		return err
	}
	tag, err := r.u.q.Exec(ctx, `
		UPDATE academic_records SET
			course_records = $1, total_credits_attempted = $2, total_credits_earned = $3, cgpa = $4,
			skills_acquired = $5, current_level = $6, exit_qualifications = $7,
			is_verified = $8, verified_by = $9, verified_at = $10, updated_at = $11,
			version = version + 1
		WHERE id = $12 AND version = $13
	`, courses, rec.TotalCreditsAttempted, rec.TotalCreditsEarned, rec.CGPA,
		rec.SkillsAcquired, string(rec.CurrentLevel), exits,
		rec.IsVerified, rec.VerifiedBy, rec.VerifiedAt, rec.UpdatedAt,
		rec.ID, rec.Version)
	if err != nil {
		return fmt.Errorf("failed to save academic record: %w", translate(err, nil))
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, rec.ID); getErr != nil {
			return getErr
		}
		return shared.ErrVersionConflict
	}
	rec.Version++
	return nil
}

func marshalRecord(rec *record.AcademicRecord) (courses, exits []byte, err error) {
	if courses, err = json.Marshal(nonNil(rec.CourseRecords)); err != nil {
		return nil, nil, fmt.Errorf("failed to marshal course records: %w", err)
	}
	if exits, err = json.Marshal(nonNil(rec.ExitQualifications)); err != nil {
		return nil, nil, fmt.Errorf("failed to marshal exit qualifications: %w", err)
	}
	return courses, exits, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func scanRecord(row pgx.Row) (*record.AcademicRecord, error) {
	var (
		rec            record.AcademicRecord
		courses, exits []byte
		level          string
	)
	err := row.Scan(&rec.ID, &rec.StudentID, &courses, &rec.TotalCreditsAttempted, &rec.TotalCreditsEarned, &rec.CGPA,
		&rec.SkillsAcquired, &level, &exits, &rec.IsVerified, &rec.VerifiedBy, &rec.VerifiedAt,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.Version)
	if err != nil {
		return nil, translate(err, shared.ErrRecordNotFound)
	}
	if err := json.Unmarshal(courses, &rec.CourseRecords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal course records: %w", err)
	}
	if err := json.Unmarshal(exits, &rec.ExitQualifications); err != nil {
		return nil, fmt.Errorf("failed to unmarshal exit qualifications: %w", err)
	}
	rec.CurrentLevel = record.ExitLevel(level)
	rec.SkillsAcquired = nonNil(rec.SkillsAcquired)
	rec.CourseRecords = nonNil(rec.CourseRecords)
	rec.ExitQualifications = nonNil(rec.ExitQualifications)
	return &rec, nil
}
