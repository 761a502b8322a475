// Package enrollment описывает жизненный цикл записи студента на курс.
package enrollment

import (
	"context"
	"time"

	"github.com/nep-campus/credit-ledger/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status - состояние записи на курс.
type Status string

const (
	// StatusActive - студент проходит курс. Только такие записи занимают место.
	StatusActive Status = "active"
	// StatusCompleted - прогресс дошёл до 100%, кредиты начислены.
	StatusCompleted Status = "completed"
	// StatusDropped - студент покинул курс. Терминальное состояние.
	StatusDropped Status = "dropped"
)

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusDropped:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: ENROLLMENT
// ══════════════════════════════════════════════════════════════════════════════

// Enrollment - одна запись на пару (студент, курс).
type Enrollment struct {
	ID               string     `json:"id"`
	StudentID        string     `json:"student_id"`
	CourseID         string     `json:"course_id"`
	Status           Status     `json:"status"`
	Progress         float64    `json:"progress_percentage"`
	CompletedModules []string   `json:"completed_modules"`
	CreditsAwarded   int        `json:"credits_awarded"`
	EnrolledAt       time.Time  `json:"enrolled_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	DroppedAt        *time.Time `json:"dropped_at,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`

	// Version - токен оптимистичной блокировки.
	Version int `json:"-"`
}

// New создаёт активную запись.
func New(id, studentID, courseID string, now time.Time) *Enrollment {
	return &Enrollment{
		ID:               id,
		StudentID:        studentID,
		CourseID:         courseID,
		Status:           StatusActive,
		CompletedModules: []string{},
		EnrolledAt:       now,
		UpdatedAt:        now,
	}
}

// IsActive возвращает true для активной записи.
func (e *Enrollment) IsActive() bool {
	return e.Status == StatusActive
}

// OwnedBy проверяет владельца записи.
func (e *Enrollment) OwnedBy(studentID string) bool {
	return e.StudentID == studentID
}

// IsAwarded возвращает true, если кредиты уже начислены.
func (e *Enrollment) IsAwarded() bool {
	return e.CompletedAt != nil
}

// ProgressUpdate - изменения прогресса от студента.
// Nil-поля не меняются.
type ProgressUpdate struct {
	Percentage       *float64
	CompletedModules []string
}

// ApplyProgress применяет прогресс. Возвращает true, если запись
// впервые достигла 100% и её нужно завершить через Complete.
// Проверки владельца и статуса выполняются до любых изменений.
func (e *Enrollment) ApplyProgress(callerID string, u ProgressUpdate, now time.Time) (bool, error) {
	if !e.OwnedBy(callerID) {
		return false, shared.ErrEnrollmentNotOwned
	}
	if !e.IsActive() {
		return false, shared.ErrEnrollmentNotActive
	}
	if u.Percentage != nil && !shared.Percentage(*u.Percentage).IsValid() {
		return false, shared.ErrInvalidProgress
	}

	if u.Percentage != nil {
		e.Progress = *u.Percentage
	}
	if u.CompletedModules != nil {
		e.CompletedModules = dedupe(u.CompletedModules)
	}
	e.UpdatedAt = now

	return shared.Percentage(e.Progress).IsComplete() && !e.IsAwarded(), nil
}

// Complete переводит запись в completed и фиксирует кредиты.
// Кредиты начисляются ровно один раз: повторный вызов ничего не меняет.
func (e *Enrollment) Complete(credits int, now time.Time) bool {
	if e.IsAwarded() {
		return false
	}
	e.Status = StatusCompleted
	e.Progress = float64(shared.MaxPercentage)
	e.CreditsAwarded = credits
	e.CompletedAt = &now
	e.UpdatedAt = now
	return true
}

// Drop переводит активную запись в dropped. asOwner=true означает, что
// действует студент, и тогда он должен быть владельцем записи.
func (e *Enrollment) Drop(callerID string, asOwner bool, now time.Time) error {
	if asOwner && !e.OwnedBy(callerID) {
		return shared.ErrEnrollmentNotOwned
	}
	if !e.IsActive() {
		return shared.ErrEnrollmentNotActive
	}
	e.Status = StatusDropped
	e.DroppedAt = &now
	e.UpdatedAt = now
	return nil
}

// Gradable возвращает true, если по записи можно ставить оценку.
func (e *Enrollment) Gradable() bool {
	return e.Status == StatusActive || e.Status == StatusCompleted
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, m := range in {
		if _, ok := seen[m]; ok || m == "" {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository - хранилище записей на курсы.
type Repository interface {
	// Admit атомарно проверяет лимит мест и вставляет запись.
	// capacity <= 0 - без лимита.
	// Возвращает ErrEnrollmentExists или ErrCourseFull.
	Admit(ctx context.Context, e *Enrollment, capacity int) error

	// GetByID возвращает ErrEnrollmentNotFound, если записи нет.
	GetByID(ctx context.Context, id string) (*Enrollment, error)

	// GetByPair ищет запись по (студент, курс).
	GetByPair(ctx context.Context, studentID, courseID string) (*Enrollment, error)

	// Update сохраняет запись, если её Version не изменилась.
	// Возвращает ErrVersionConflict при гонке. Освобождает место на курсе,
	// если запись перестала быть активной.
	Update(ctx context.Context, e *Enrollment) error

	// ListByStudent возвращает записи студента.
	ListByStudent(ctx context.Context, studentID string) ([]*Enrollment, error)
}
