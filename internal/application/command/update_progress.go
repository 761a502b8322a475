package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nep-campus/credit-ledger/internal/application/ledger"
	"github.com/nep-campus/credit-ledger/internal/domain/course"
	"github.com/nep-campus/credit-ledger/internal/domain/enrollment"
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
	"github.com/nep-campus/credit-ledger/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE PROGRESS COMMAND
// A student reports module progress. Reaching 100% for the first time
// completes the enrollment and synchronizes the transcript in the same unit.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateProgressCommand contains the progress report.
type UpdateProgressCommand struct {
	EnrollmentID     string
	CallerID         string
	Percentage       *float64
	CompletedModules []string
}

// Validate validates the command.
func (c UpdateProgressCommand) Validate() error {
	if strings.TrimSpace(c.EnrollmentID) == "" || strings.TrimSpace(c.CallerID) == "" {
		return shared.NewDomainError("enrollment", "UpdateProgress", shared.ErrInvalidArgument, "enrollment_id and caller are required")
	}
	if c.Percentage != nil && !shared.Percentage(*c.Percentage).IsValid() {
		return shared.ErrInvalidProgress
	}
	return nil
}

// UpdateProgressResult contains the updated enrollment.
type UpdateProgressResult struct {
	Enrollment *enrollment.Enrollment
	// Completed is true when this update completed the course.
	Completed bool
}

// UpdateProgressHandler handles the UpdateProgressCommand.
type UpdateProgressHandler struct {
	ledger  *ledger.Ledger
	syncer  *ledger.Synchronizer
	courses course.Provider
	log     *logger.Logger
}

// NewUpdateProgressHandler creates a new UpdateProgressHandler.
func NewUpdateProgressHandler(l *ledger.Ledger, syncer *ledger.Synchronizer, courses course.Provider, log *logger.Logger) *UpdateProgressHandler {
	return &UpdateProgressHandler{ledger: l, syncer: syncer, courses: courses, log: orNop(log)}
}

// Handle executes the command.
func (h *UpdateProgressHandler) Handle(ctx context.Context, cmd UpdateProgressCommand) (*UpdateProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// Scope the unit to the caller: a caller who does not own the
	// enrollment is rejected before any write.
	result := &UpdateProgressResult{}
	err := h.ledger.Update(ctx, "UpdateProgress", cmd.CallerID, func(ctx context.Context, u *ledger.Unit) error {
		result.Completed = false

		e, err := u.Enrollments().GetByID(ctx, cmd.EnrollmentID)
		if err != nil {
			return err
		}
		now := h.ledger.Now()
		completes, err := e.ApplyProgress(cmd.CallerID, enrollment.ProgressUpdate{
			Percentage:       cmd.Percentage,
			CompletedModules: cmd.CompletedModules,
		}, now)
		if err != nil {
			return err
		}

		if !completes {
			result.Enrollment = e
			return u.Enrollments().Update(ctx, e)
		}

		facts, err := h.courses.GetCourse(ctx, e.CourseID)
		if err != nil {
			return err
		}
		e.Complete(facts.Credits, now)
		if err := u.Enrollments().Update(ctx, e); err != nil {
			return err
		}

		outcome, err := completeOnTranscript(ctx, u, h.syncer, e, facts)
		if err != nil {
			return err
		}

		u.Emit(
			shared.NewEnrollmentEvent(shared.EventEnrollmentCompleted, e.StudentID, e.ID, e.CourseID, e.CreditsAwarded),
			synchronizedEvent(outcome),
		)
		result.Enrollment = e
		result.Completed = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update_progress: %w", err)
	}

	if result.Completed {
		h.log.Info("course completed",
			logger.StudentID(cmd.CallerID),
			logger.CourseID(result.Enrollment.CourseID),
			logger.Int("credits_awarded", result.Enrollment.CreditsAwarded))
	}
	return result, nil
}

// completeOnTranscript synchronizes a completed enrollment. The latest final
// grade, if any, supplies the marks so the entry matches the one a grade
// submission would produce.
func completeOnTranscript(ctx context.Context, u *ledger.Unit, syncer *ledger.Synchronizer, e *enrollment.Enrollment, facts course.Facts) (*ledger.Outcome, error) {
	var marks *float64
	g, err := u.Grades().LatestFinal(ctx, e.StudentID, e.CourseID)
	switch {
	case err == nil:
		marks = &g.Marks
	case !errors.Is(err, shared.ErrNotFound):
		return nil, err
	}

	entry, err := syncer.BuildEntry(facts, marks, *e.CompletedAt)
	if err != nil {
		return nil, err
	}
	return syncer.Synchronize(ctx, u, e.StudentID, entry, *e.CompletedAt)
}

func synchronizedEvent(o *ledger.Outcome) shared.Event {
	return shared.NewTranscriptSynchronizedEvent(
		o.Record.StudentID, o.Record.ID, o.Entry.CourseID, o.Replaced, o.Record.CGPA, o.Record.TotalCreditsEarned)
}
