package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nep-campus/credit-ledger/internal/application/ledger"
	"github.com/nep-campus/credit-ledger/internal/domain/record"
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
	"github.com/nep-campus/credit-ledger/internal/domain/student"
	"github.com/nep-campus/credit-ledger/pkg/logger"
)

// RegisterStudentCommand creates a student account.
type RegisterStudentCommand struct {
	Name     string
	Email    string
	Password string
	Code     string
}

// Validate validates the command.
func (c RegisterStudentCommand) Validate() error {
	if len(c.Password) < 8 {
		return shared.NewDomainError("student", "Register", shared.ErrInvalidArgument, "password must be at least 8 characters")
	}
	// bcrypt rejects inputs longer than 72 bytes
	if len(c.Password) > 72 {
		return shared.NewDomainError("student", "Register", shared.ErrInvalidArgument, "password must be at most 72 bytes")
	}
	return nil
}

// RegisterStudentResult contains the new account and its empty record.
type RegisterStudentResult struct {
	Student *student.Student
	Record  *record.AcademicRecord
}

// RegisterStudentHandler handles the RegisterStudentCommand. The account and
// its academic record are created in one unit.
type RegisterStudentHandler struct {
	ledger     *ledger.Ledger
	bcryptCost int
	log        *logger.Logger
}

// NewRegisterStudentHandler creates a new RegisterStudentHandler.
// cost <= 0 uses bcrypt.DefaultCost.
func NewRegisterStudentHandler(l *ledger.Ledger, cost int, log *logger.Logger) *RegisterStudentHandler {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &RegisterStudentHandler{ledger: l, bcryptCost: cost, log: orNop(log)}
}

// Handle executes the command.
func (h *RegisterStudentHandler) Handle(ctx context.Context, cmd RegisterStudentCommand) (*RegisterStudentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), h.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("register_student: hash password: %w", err)
	}

	now := h.ledger.Now()
	s, err := student.NewStudent(student.NewStudentParams{
		ID:           uuid.NewString(),
		Name:         cmd.Name,
		Email:        cmd.Email,
		Code:         cmd.Code,
		PasswordHash: string(hash),
		Now:          now,
	})
	if err != nil {
		return nil, err
	}
	rec := record.New(uuid.NewString(), s.ID, now)

	err = h.ledger.Update(ctx, "RegisterStudent", s.ID, func(ctx context.Context, u *ledger.Unit) error {
		if err := u.Students().Create(ctx, s); err != nil {
			return err
		}
		if err := u.Records().Create(ctx, rec); err != nil {
			return err
		}
		u.Emit(shared.NewStudentRegisteredEvent(s.ID, rec.ID, string(s.Code)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("register_student: %w", err)
	}

	h.log.Info("student registered", logger.StudentID(s.ID), logger.RecordID(rec.ID))
	return &RegisterStudentResult{Student: s, Record: rec}, nil
}
