package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/nep-campus/credit-ledger/internal/application/ledger"
	"github.com/nep-campus/credit-ledger/internal/domain/course"
	"github.com/nep-campus/credit-ledger/internal/domain/grading"
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
	"github.com/nep-campus/credit-ledger/pkg/logger"
)

// ReviseGradeCommand corrects marks and/or remarks of an existing grade.
type ReviseGradeCommand struct {
	GradeID string
	Marks   *float64
	Remarks *string
}

// Validate validates the command.
func (c ReviseGradeCommand) Validate() error {
	if strings.TrimSpace(c.GradeID) == "" {
		return shared.NewDomainError("grade", "Revise", shared.ErrInvalidArgument, "grade_id is required")
	}
	if c.Marks != nil && !shared.Percentage(*c.Marks).IsValid() {
		return shared.ErrInvalidMarks
	}
	return nil
}

// ReviseGradeResult contains the revised grade. Outcome is set when the
// revision re-synchronized the transcript.
type ReviseGradeResult struct {
	Grade   *grading.Grade
	Outcome *ledger.Outcome
}

// ReviseGradeHandler handles the ReviseGradeCommand.
type ReviseGradeHandler struct {
	ledger  *ledger.Ledger
	syncer  *ledger.Synchronizer
	courses course.Provider
	log     *logger.Logger
}

// NewReviseGradeHandler creates a new ReviseGradeHandler.
func NewReviseGradeHandler(l *ledger.Ledger, syncer *ledger.Synchronizer, courses course.Provider, log *logger.Logger) *ReviseGradeHandler {
	return &ReviseGradeHandler{ledger: l, syncer: syncer, courses: courses, log: orNop(log)}
}

// Handle executes the command. Revising a final grade replaces the course's
// transcript entry in place.
func (h *ReviseGradeHandler) Handle(ctx context.Context, cmd ReviseGradeCommand) (*ReviseGradeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	current, err := h.ledger.Reader().Grades().GetByID(ctx, cmd.GradeID)
	if err != nil {
		return nil, fmt.Errorf("revise_grade: %w", err)
	}

	result := &ReviseGradeResult{}
	err = h.ledger.Update(ctx, "ReviseGrade", current.StudentID, func(ctx context.Context, u *ledger.Unit) error {
		result.Outcome = nil

		g, err := u.Grades().GetByID(ctx, cmd.GradeID)
		if err != nil {
			return err
		}
		now := h.ledger.Now()
		if err := g.Revise(h.syncer.Scale(), cmd.Marks, cmd.Remarks, now); err != nil {
			return err
		}
		if err := u.Grades().Update(ctx, g); err != nil {
			return err
		}
		u.Emit(gradeEvent(shared.EventGradeRevised, g))
		result.Grade = g

		if !g.IsFinal() {
			return nil
		}
		outcome, err := syncGrade(ctx, u, h.syncer, h.courses, g, now, now)
		if err != nil {
			return err
		}
		u.Emit(synchronizedEvent(outcome))
		result.Outcome = outcome
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("revise_grade: %w", err)
	}

	h.log.Info("grade revised",
		logger.StudentID(result.Grade.StudentID), logger.CourseID(result.Grade.CourseID),
		logger.String("letter_grade", result.Grade.LetterGrade))
	return result, nil
}
