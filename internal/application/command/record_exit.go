package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/nep-campus/credit-ledger/internal/application/ledger"
	"github.com/nep-campus/credit-ledger/internal/domain/record"
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
	"github.com/nep-campus/credit-ledger/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD EXIT COMMAND
// An administrator awards an NEP exit qualification. Reads ledger totals but
// never changes them.
// ══════════════════════════════════════════════════════════════════════════════

// RecordExitCommand contains the exit to record.
type RecordExitCommand struct {
	RecordID string
	Level    string
	// TotalCredits overrides the ledger's current earned credits when set.
	TotalCredits *int
}

// Validate validates the command.
func (c RecordExitCommand) Validate() error {
	if strings.TrimSpace(c.RecordID) == "" {
		return shared.NewDomainError("record", "RecordExit", shared.ErrInvalidArgument, "record_id is required")
	}
	if _, err := record.ParseExitLevel(c.Level); err != nil {
		return err
	}
	if c.TotalCredits != nil && *c.TotalCredits < 0 {
		return shared.ErrInvalidExitCredit
	}
	return nil
}

// RecordExitResult contains the new exit event and the record after it.
type RecordExitResult struct {
	Exit   record.ExitQualification
	Record *record.AcademicRecord
}

// RecordExitHandler handles the RecordExitCommand.
type RecordExitHandler struct {
	ledger *ledger.Ledger
	policy record.Policy
	log    *logger.Logger
}

// NewRecordExitHandler creates a new RecordExitHandler.
func NewRecordExitHandler(l *ledger.Ledger, policy record.Policy, log *logger.Logger) *RecordExitHandler {
	return &RecordExitHandler{ledger: l, policy: policy, log: orNop(log)}
}

// Handle executes the command.
func (h *RecordExitHandler) Handle(ctx context.Context, cmd RecordExitCommand) (*RecordExitResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	level, _ := record.ParseExitLevel(cmd.Level)

	current, err := h.ledger.Reader().Records().GetByID(ctx, cmd.RecordID)
	if err != nil {
		return nil, fmt.Errorf("record_exit: %w", err)
	}

	result := &RecordExitResult{}
	err = h.ledger.Update(ctx, "RecordExit", current.StudentID, func(ctx context.Context, u *ledger.Unit) error {
		rec, err := u.Records().GetByID(ctx, cmd.RecordID)
		if err != nil {
			return err
		}
		q, err := rec.RecordExit(level, cmd.TotalCredits, h.policy, h.ledger.Now())
		if err != nil {
			return err
		}
		if err := u.Records().Save(ctx, rec); err != nil {
			return err
		}
		u.Emit(shared.NewExitRecordedEvent(rec.StudentID, rec.ID, string(q.Level), q.TotalCredits))
		result.Exit = q
		result.Record = rec
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record_exit: %w", err)
	}

	h.log.Info("exit qualification recorded",
		logger.RecordID(cmd.RecordID), logger.String("level", string(result.Exit.Level)),
		logger.Int("total_credits", result.Exit.TotalCredits))
	return result, nil
}
