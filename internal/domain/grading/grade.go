package grading

import (
	"context"
	"strings"
	"time"
)

// AssessmentFinal - тип оценки, который попадает в транскрипт.
const AssessmentFinal = "final"

// Grade - оценка преподавателя за одну аттестацию.
// Letter и Point всегда соответствуют Marks по шкале.
type Grade struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"student_id"`
	CourseID       string    `json:"course_id"`
	EnrollmentID   string    `json:"enrollment_id"`
	Marks          float64   `json:"marks_obtained"`
	AssessmentType string    `json:"assessment_type"`
	LetterGrade    string    `json:"letter_grade"`
	GradePoint     float64   `json:"grade_point"`
	GradedBy       string    `json:"graded_by"`
	Remarks        string    `json:"remarks,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewGradeParams - параметры создания оценки.
type NewGradeParams struct {
	ID             string
	StudentID      string
	CourseID       string
	EnrollmentID   string
	Marks          float64
	AssessmentType string
	GradedBy       string
	Remarks        string
	Now            time.Time
}

// NewGrade создаёт оценку и сразу выводит букву и балл.
func NewGrade(scale Scale, p NewGradeParams) (*Grade, error) {
	assessment := strings.ToLower(strings.TrimSpace(p.AssessmentType))
	if assessment == "" {
		assessment = AssessmentFinal
	}
	letter, point, err := scale.Derive(p.Marks)
	if err != nil {
		return nil, err
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return &Grade{
		ID:             p.ID,
		StudentID:      p.StudentID,
		CourseID:       p.CourseID,
		EnrollmentID:   p.EnrollmentID,
		Marks:          p.Marks,
		AssessmentType: assessment,
		LetterGrade:    letter,
		GradePoint:     point,
		GradedBy:       p.GradedBy,
		Remarks:        strings.TrimSpace(p.Remarks),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// IsFinal возвращает true для итоговой оценки.
func (g *Grade) IsFinal() bool {
	return g.AssessmentType == AssessmentFinal
}

// Revise меняет баллы и/или комментарий. Любая смена баллов
// пересчитывает букву и балл до сохранения.
func (g *Grade) Revise(scale Scale, marks *float64, remarks *string, now time.Time) error {
	if marks != nil {
		letter, point, err := scale.Derive(*marks)
		if err != nil {
			return err
		}
		g.Marks = *marks
		g.LetterGrade = letter
		g.GradePoint = point
	}
	if remarks != nil {
		g.Remarks = strings.TrimSpace(*remarks)
	}
	g.UpdatedAt = now
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository - хранилище оценок.
type Repository interface {
	// Create сохраняет новую оценку.
	Create(ctx context.Context, g *Grade) error

	// GetByID возвращает ErrGradeNotFound, если оценки нет.
	GetByID(ctx context.Context, id string) (*Grade, error)

	// Update сохраняет изменённые баллы/комментарий.
	Update(ctx context.Context, g *Grade) error

	// LatestFinal возвращает последнюю изменённую итоговую оценку
	// по паре (студент, курс) или ErrGradeNotFound.
	LatestFinal(ctx context.Context, studentID, courseID string) (*Grade, error)

	// ListByStudent возвращает оценки студента по времени создания.
	ListByStudent(ctx context.Context, studentID string) ([]*Grade, error)
}
