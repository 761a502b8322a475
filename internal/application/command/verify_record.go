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

// VerifyRecordCommand attests an academic record.
type VerifyRecordCommand struct {
	RecordID string
	AdminID  string
}

// Validate validates the command.
func (c VerifyRecordCommand) Validate() error {
	if strings.TrimSpace(c.RecordID) == "" || strings.TrimSpace(c.AdminID) == "" {
		return shared.NewDomainError("record", "Verify", shared.ErrInvalidArgument, "record_id and admin are required")
	}
	return nil
}

// VerifyRecordHandler handles the VerifyRecordCommand.
type VerifyRecordHandler struct {
	ledger *ledger.Ledger
	log    *logger.Logger
}

// NewVerifyRecordHandler creates a new VerifyRecordHandler.
func NewVerifyRecordHandler(l *ledger.Ledger, log *logger.Logger) *VerifyRecordHandler {
	return &VerifyRecordHandler{ledger: l, log: orNop(log)}
}

// Handle executes the command.
func (h *VerifyRecordHandler) Handle(ctx context.Context, cmd VerifyRecordCommand) (*record.AcademicRecord, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	current, err := h.ledger.Reader().Records().GetByID(ctx, cmd.RecordID)
	if err != nil {
		return nil, fmt.Errorf("verify_record: %w", err)
	}

	var verified *record.AcademicRecord
	err = h.ledger.Update(ctx, "VerifyRecord", current.StudentID, func(ctx context.Context, u *ledger.Unit) error {
		rec, err := u.Records().GetByID(ctx, cmd.RecordID)
		if err != nil {
			return err
		}
		rec.Verify(cmd.AdminID, h.ledger.Now())
		if err := u.Records().Save(ctx, rec); err != nil {
			return err
		}
		u.Emit(shared.NewRecordVerifiedEvent(rec.StudentID, rec.ID, cmd.AdminID))
		verified = rec
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("verify_record: %w", err)
	}

	h.log.Info("academic record verified", logger.RecordID(cmd.RecordID), logger.String("verified_by", cmd.AdminID))
	return verified, nil
}
