package student

import (
	"net/mail"
	"strings"
	"time"

	"github.com/nep-campus/credit-ledger/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student - учётная запись студента.
type Student struct {
	// ID - внутренний уникальный идентификатор (UUID в строковом формате).
	ID string `json:"id"`

	// Name - имя для отображения.
	Name string `json:"name"`

	// Email - логин, уникален.
	Email string `json:"email"`

	// Code - номер зачётки, уникален.
	Code shared.StudentCode `json:"student_code"`

	// PasswordHash - bcrypt-хеш пароля. Никогда не сериализуется.
	PasswordHash string `json:"-"`

	// CreditsEarned - кеш AcademicRecord.TotalCreditsEarned.
	CreditsEarned int `json:"credits_earned"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewStudentParams - параметры регистрации.
type NewStudentParams struct {
	ID           string
	Name         string
	Email        string
	Code         string
	PasswordHash string
	Now          time.Time
}

// NewStudent валидирует параметры и создаёт студента с нулевым счётчиком.
func NewStudent(p NewStudentParams) (*Student, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" || len(name) > 100 {
		return nil, shared.NewDomainError("student", "Register", shared.ErrInvalidArgument, "name must be 1-100 chars")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(p.Email))
	if err != nil {
		return nil, shared.WrapError("student", "Register", shared.ErrInvalidArgument, "invalid email", err)
	}
	code, err := shared.NewStudentCode(p.Code)
	if err != nil {
		return nil, err
	}
	if p.PasswordHash == "" {
		return nil, shared.NewDomainError("student", "Register", shared.ErrInvalidArgument, "password hash is required")
	}

	now := p.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return &Student{
		ID:           p.ID,
		Name:         name,
		Email:        strings.ToLower(addr.Address),
		Code:         code,
		PasswordHash: p.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Diverged сообщает, расходится ли кеш с авторитетным значением.
func (s *Student) Diverged(ledgerEarned int) bool {
	return s.CreditsEarned != ledgerEarned
}
