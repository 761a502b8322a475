package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/nep-campus/credit-ledger/internal/domain/course"
	"github.com/nep-campus/credit-ledger/internal/domain/grading"
	"github.com/nep-campus/credit-ledger/internal/domain/record"
)

// Synchronizer is the single routine that writes transcript entries. Both
// course completion and final-grade submission go through it.
type Synchronizer struct {
	scale  grading.Scale
	policy record.Policy
}

// NewSynchronizer creates a Synchronizer.
func NewSynchronizer(scale grading.Scale, policy record.Policy) *Synchronizer {
	return &Synchronizer{scale: scale, policy: policy}
}

// Scale returns the grade table shared with grade creation and revision.
func (s *Synchronizer) Scale() grading.Scale { return s.scale }

// Policy returns the ledger policy.
func (s *Synchronizer) Policy() record.Policy { return s.policy }

// BuildEntry snapshots a course into a transcript entry. marks is nil for a
// completion that has no final grade yet; such entries earn credit but stay
// out of CGPA.
func (s *Synchronizer) BuildEntry(c course.Facts, marks *float64, completedAt time.Time) (record.TranscriptEntry, error) {
	entry := record.TranscriptEntry{
		CourseID:    c.ID,
		CourseCode:  c.Code,
		CourseName:  c.Name,
		Credits:     c.Credits,
		Semester:    c.Semester,
		SkillTags:   course.NormalizeTags(c.SkillTags),
		CompletedAt: completedAt.UTC(),
	}
	if marks != nil {
		letter, point, err := s.scale.Derive(*marks)
		if err != nil {
			return record.TranscriptEntry{}, err
		}
		entry.Graded = true
		entry.Marks = *marks
		entry.LetterGrade = letter
		entry.GradePoint = point
	}
	return entry, nil
}

// Outcome describes a settled synchronization.
type Outcome struct {
	Record   *record.AcademicRecord
	Entry    record.TranscriptEntry
	Replaced bool
}

// Synchronize upserts entry into the student's transcript, re-derives CGPA,
// credit totals and skills, persists the record and writes the student's
// credit cache. It must run inside a Store.Atomic unit.
//
// A replaced entry keeps its original completion time.
func (s *Synchronizer) Synchronize(ctx context.Context, tx Tx, studentID string, entry record.TranscriptEntry, now time.Time) (*Outcome, error) {
	rec, err := tx.Records().GetByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("synchronize: load record: %w", err)
	}

	if prev, ok := rec.Entry(entry.CourseID); ok && !prev.CompletedAt.IsZero() {
		entry.CompletedAt = prev.CompletedAt
	}
	replaced := rec.Upsert(entry)
	rec.Settle(s.policy, now)

	if err := tx.Records().Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("synchronize: save record: %w", err)
	}
	if err := tx.Students().SetCreditsEarned(ctx, studentID, rec.TotalCreditsEarned); err != nil {
		return nil, fmt.Errorf("synchronize: write credit cache: %w", err)
	}

	return &Outcome{Record: rec, Entry: entry, Replaced: replaced}, nil
}
