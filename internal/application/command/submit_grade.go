package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nep-campus/credit-ledger/internal/application/ledger"
	"github.com/nep-campus/credit-ledger/internal/domain/course"
	"github.com/nep-campus/credit-ledger/internal/domain/grading"
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
	"github.com/nep-campus/credit-ledger/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT GRADE COMMAND
// A grader records marks for an enrolled student. A final grade is written
// to the transcript through the synchronizer.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitGradeCommand contains the grade submission.
type SubmitGradeCommand struct {
	StudentID      string
	CourseID       string
	Marks          float64
	AssessmentType string
	GraderID       string
	Remarks        string
}

// Validate validates the command.
func (c SubmitGradeCommand) Validate() error {
	if strings.TrimSpace(c.StudentID) == "" || strings.TrimSpace(c.CourseID) == "" || strings.TrimSpace(c.GraderID) == "" {
		return shared.NewDomainError("grade", "Submit", shared.ErrInvalidArgument, "student_id, course_id and grader are required")
	}
	if !shared.Percentage(c.Marks).IsValid() {
		return shared.ErrInvalidMarks
	}
	return nil
}

// SubmitGradeResult contains the created grade and, for final grades, the
// settled academic record totals.
type SubmitGradeResult struct {
	Grade   *grading.Grade
	Outcome *ledger.Outcome
}

// SubmitGradeHandler handles the SubmitGradeCommand.
type SubmitGradeHandler struct {
	ledger  *ledger.Ledger
	syncer  *ledger.Synchronizer
	courses course.Provider
	log     *logger.Logger
}

// NewSubmitGradeHandler creates a new SubmitGradeHandler.
func NewSubmitGradeHandler(l *ledger.Ledger, syncer *ledger.Synchronizer, courses course.Provider, log *logger.Logger) *SubmitGradeHandler {
	return &SubmitGradeHandler{ledger: l, syncer: syncer, courses: courses, log: orNop(log)}
}

// Handle executes the command.
func (h *SubmitGradeHandler) Handle(ctx context.Context, cmd SubmitGradeCommand) (*SubmitGradeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	result := &SubmitGradeResult{}
	err := h.ledger.Update(ctx, "SubmitGrade", cmd.StudentID, func(ctx context.Context, u *ledger.Unit) error {
		result.Outcome = nil

		e, err := u.Enrollments().GetByPair(ctx, cmd.StudentID, cmd.CourseID)
		if errors.Is(err, shared.ErrNotFound) {
			return shared.ErrStudentNotEnrolled
		}
		if err != nil {
			return err
		}
		if !e.Gradable() {
			return shared.ErrStudentNotEnrolled
		}

		now := h.ledger.Now()
		g, err := grading.NewGrade(h.syncer.Scale(), grading.NewGradeParams{
			ID:             uuid.NewString(),
			StudentID:      cmd.StudentID,
			CourseID:       cmd.CourseID,
			EnrollmentID:   e.ID,
			Marks:          cmd.Marks,
			AssessmentType: cmd.AssessmentType,
			GradedBy:       cmd.GraderID,
			Remarks:        cmd.Remarks,
			Now:            now,
		})
		if err != nil {
			return err
		}
		if err := u.Grades().Create(ctx, g); err != nil {
			return err
		}
		u.Emit(gradeEvent(shared.EventGradeSubmitted, g))
		result.Grade = g

		if !g.IsFinal() {
			return nil
		}
		completedAt := now
		if e.CompletedAt != nil {
			completedAt = *e.CompletedAt
		}
		outcome, err := syncGrade(ctx, u, h.syncer, h.courses, g, completedAt, now)
		if err != nil {
			return err
		}
		u.Emit(synchronizedEvent(outcome))
		result.Outcome = outcome
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("submit_grade: %w", err)
	}

	h.log.Info("grade submitted",
		logger.StudentID(cmd.StudentID), logger.CourseID(cmd.CourseID),
		logger.String("assessment_type", result.Grade.AssessmentType),
		logger.String("letter_grade", result.Grade.LetterGrade))
	return result, nil
}

// syncGrade writes a final grade to the transcript.
func syncGrade(ctx context.Context, u *ledger.Unit, syncer *ledger.Synchronizer, courses course.Provider, g *grading.Grade, completedAt, now time.Time) (*ledger.Outcome, error) {
	facts, err := courses.GetCourse(ctx, g.CourseID)
	if err != nil {
		return nil, err
	}
	marks := g.Marks
	entry, err := syncer.BuildEntry(facts, &marks, completedAt)
	if err != nil {
		return nil, err
	}
	return syncer.Synchronize(ctx, u, g.StudentID, entry, now)
}

func gradeEvent(t shared.EventType, g *grading.Grade) shared.Event {
	return shared.NewGradeEvent(t, g.StudentID, g.ID, g.CourseID, g.AssessmentType, g.Marks, g.LetterGrade, g.GradePoint)
}
