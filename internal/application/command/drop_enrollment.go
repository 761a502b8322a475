package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/nep-campus/credit-ledger/internal/application/ledger"
	"github.com/nep-campus/credit-ledger/internal/domain/enrollment"
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
	"github.com/nep-campus/credit-ledger/pkg/logger"
)

// DropEnrollmentCommand drops an active enrollment.
type DropEnrollmentCommand struct {
	EnrollmentID string
	CallerID     string
	// Administrative is set when the caller acts on behalf of the
	// institution; the ownership check is skipped then.
	Administrative bool
}

// Validate validates the command.
func (c DropEnrollmentCommand) Validate() error {
	if strings.TrimSpace(c.EnrollmentID) == "" || strings.TrimSpace(c.CallerID) == "" {
		return shared.NewDomainError("enrollment", "Drop", shared.ErrInvalidArgument, "enrollment_id and caller are required")
	}
	return nil
}

// DropEnrollmentHandler handles the DropEnrollmentCommand.
//
// Dropping never touches the transcript, credit totals or skills.
type DropEnrollmentHandler struct {
	ledger *ledger.Ledger
	log    *logger.Logger
}

// NewDropEnrollmentHandler creates a new DropEnrollmentHandler.
func NewDropEnrollmentHandler(l *ledger.Ledger, log *logger.Logger) *DropEnrollmentHandler {
	return &DropEnrollmentHandler{ledger: l, log: orNop(log)}
}

// Handle executes the command.
func (h *DropEnrollmentHandler) Handle(ctx context.Context, cmd DropEnrollmentCommand) (*enrollment.Enrollment, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	current, err := h.ledger.Reader().Enrollments().GetByID(ctx, cmd.EnrollmentID)
	if err != nil {
		return nil, fmt.Errorf("drop_enrollment: %w", err)
	}

	var dropped *enrollment.Enrollment
	err = h.ledger.Update(ctx, "DropEnrollment", current.StudentID, func(ctx context.Context, u *ledger.Unit) error {
		e, err := u.Enrollments().GetByID(ctx, cmd.EnrollmentID)
		if err != nil {
			return err
		}
		if err := e.Drop(cmd.CallerID, !cmd.Administrative, h.ledger.Now()); err != nil {
			return err
		}
		if err := u.Enrollments().Update(ctx, e); err != nil {
			return err
		}
		u.Emit(shared.NewEnrollmentEvent(shared.EventEnrollmentDropped, e.StudentID, e.ID, e.CourseID, e.CreditsAwarded))
		dropped = e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("drop_enrollment: %w", err)
	}

	h.log.Info("enrollment dropped", logger.StudentID(dropped.StudentID), logger.CourseID(dropped.CourseID))
	return dropped, nil
}
