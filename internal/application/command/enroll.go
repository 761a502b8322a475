// Package command contains write operations (CQRS - Commands).
// Every command that touches a student's ledger runs inside one
// ledger.Ledger.Update unit for that student.
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nep-campus/credit-ledger/internal/application/ledger"
	"github.com/nep-campus/credit-ledger/internal/domain/course"
	"github.com/nep-campus/credit-ledger/internal/domain/enrollment"
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
	"github.com/nep-campus/credit-ledger/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLL COMMAND
// Admits a student into a course against its enrollment cap.
// ══════════════════════════════════════════════════════════════════════════════

// EnrollCommand contains the data needed to enroll a student.
type EnrollCommand struct {
	StudentID string
	CourseID  string
}

// Validate validates the command.
func (c EnrollCommand) Validate() error {
	if strings.TrimSpace(c.StudentID) == "" || strings.TrimSpace(c.CourseID) == "" {
		return shared.NewDomainError("enrollment", "Enroll", shared.ErrInvalidArgument, "student_id and course_id are required")
	}
	return nil
}

// EnrollResult contains the admitted enrollment.
type EnrollResult struct {
	Enrollment *enrollment.Enrollment
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// EnrollHandler handles the EnrollCommand.
type EnrollHandler struct {
	ledger  *ledger.Ledger
	courses course.Provider
	log     *logger.Logger
}

// NewEnrollHandler creates a new EnrollHandler.
func NewEnrollHandler(l *ledger.Ledger, courses course.Provider, log *logger.Logger) *EnrollHandler {
	return &EnrollHandler{ledger: l, courses: courses, log: orNop(log)}
}

// Handle executes the enroll command.
//
// The duplicate check runs before admission so that a student who is both
// already enrolled and facing a full course gets Conflict. The capacity
// check and the insert are one decision inside Admit.
func (h *EnrollHandler) Handle(ctx context.Context, cmd EnrollCommand) (*EnrollResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	facts, err := h.courses.GetCourse(ctx, cmd.CourseID)
	if err != nil {
		return nil, fmt.Errorf("enroll: %w", err)
	}
	if err := facts.Admissible(); err != nil {
		return nil, fmt.Errorf("enroll: %w", err)
	}

	var admitted *enrollment.Enrollment
	err = h.ledger.Update(ctx, "Enroll", cmd.StudentID, func(ctx context.Context, u *ledger.Unit) error {
		if _, err := u.Students().GetByID(ctx, cmd.StudentID); err != nil {
			return err
		}

		_, err := u.Enrollments().GetByPair(ctx, cmd.StudentID, cmd.CourseID)
		switch {
		case err == nil:
			return shared.ErrEnrollmentExists
		case !errors.Is(err, shared.ErrNotFound):
			return err
		}

		e := enrollment.New(uuid.NewString(), cmd.StudentID, cmd.CourseID, h.ledger.Now())
		if err := u.Enrollments().Admit(ctx, e, facts.MaxEnrollment); err != nil {
			return err
		}
		u.Emit(shared.NewEnrollmentEvent(shared.EventEnrollmentAdmitted, e.StudentID, e.ID, e.CourseID, 0))
		admitted = e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enroll: %w", err)
	}

	h.log.Info("student enrolled",
		logger.StudentID(cmd.StudentID), logger.CourseID(cmd.CourseID), logger.EnrollmentID(admitted.ID))
	return &EnrollResult{Enrollment: admitted}, nil
}

func orNop(l *logger.Logger) *logger.Logger {
	if l == nil {
		return logger.Nop()
	}
	return l.With(logger.Component("command"))
}
