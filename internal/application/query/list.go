package query

import (
	"context"
	"fmt"

	"github.com/nep-campus/credit-ledger/internal/application/ledger"
	"github.com/nep-campus/credit-ledger/internal/domain/enrollment"
	"github.com/nep-campus/credit-ledger/internal/domain/grading"
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
)

// ListHandler отдаёт записи на курсы и оценки студента.
type ListHandler struct {
	reader ledger.Tx
}

// NewListHandler создаёт обработчик.
func NewListHandler(reader ledger.Tx) *ListHandler {
	return &ListHandler{reader: reader}
}

// Enrollments возвращает все записи студента, включая dropped.
func (h *ListHandler) Enrollments(ctx context.Context, studentID string) ([]*enrollment.Enrollment, error) {
	if studentID == "" {
		return nil, shared.NewDomainError("enrollment", "List", shared.ErrInvalidArgument, "student_id is required")
	}
	list, err := h.reader.Enrollments().ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list_enrollments: %w", err)
	}
	return list, nil
}

// Grades возвращает все оценки студента.
func (h *ListHandler) Grades(ctx context.Context, studentID string) ([]*grading.Grade, error) {
	if studentID == "" {
		return nil, shared.NewDomainError("grade", "List", shared.ErrInvalidArgument, "student_id is required")
	}
	list, err := h.reader.Grades().ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list_grades: %w", err)
	}
	return list, nil
}

// Enrollment возвращает запись по ID.
func (h *ListHandler) Enrollment(ctx context.Context, id string) (*enrollment.Enrollment, error) {
	e, err := h.reader.Enrollments().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get_enrollment: %w", err)
	}
	return e, nil
}
