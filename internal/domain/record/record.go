// Package record содержит агрегат AcademicRecord: транскрипт, кредитный
// леджер, CGPA и NEP-квалификации студента.
//
// Итоги (кредиты, навыки, CGPA) никогда не правятся напрямую: они каждый раз
// выводятся из текущего транскрипта методом Settle. Поэтому пересмотр оценки,
// который делает курс незачтённым, корректно забирает ранее начисленные кредиты.
package record

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRANSCRIPT ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// TranscriptEntry - итог одного курса, снимок на момент последней синхронизации.
type TranscriptEntry struct {
	CourseID    string    `json:"course_id"`
	CourseCode  string    `json:"course_code"`
	CourseName  string    `json:"course_name"`
	Credits     int       `json:"credits"`
	Semester    int       `json:"semester"`
	SkillTags   []string  `json:"skill_tags"`
	Graded      bool      `json:"graded"`
	Marks       float64   `json:"marks_obtained"`
	LetterGrade string    `json:"letter_grade,omitempty"`
	GradePoint  float64   `json:"grade_point"`
	CompletedAt time.Time `json:"completed_at"`
}

// Passed решает, засчитываются ли кредиты записи.
// Курс без итоговой оценки засчитывается по факту завершения.
func (e TranscriptEntry) Passed(passPoint float64) bool {
	if !e.Graded {
		return true
	}
	return e.GradePoint >= passPoint
}

// ══════════════════════════════════════════════════════════════════════════════
// POLICY
// ══════════════════════════════════════════════════════════════════════════════

// Policy - настраиваемые правила леджера.
type Policy struct {
	// PassGradePoint - минимальный grade point, при котором кредиты зачтены.
	PassGradePoint float64
	// AllowExitRegression разрешает записать уровень ниже уже полученного.
	AllowExitRegression bool
}

// DefaultPolicy - правила по умолчанию для 10-балльной шкалы.
func DefaultPolicy() Policy {
	return Policy{PassGradePoint: 4}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: ACADEMIC RECORD
// ══════════════════════════════════════════════════════════════════════════════

// AcademicRecord - академическая запись студента. Одна на студента.
type AcademicRecord struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`

	CourseRecords         []TranscriptEntry `json:"course_records"`
	TotalCreditsAttempted int               `json:"total_credits_attempted"`
	TotalCreditsEarned    int               `json:"total_credits_earned"`
	CGPA                  float64           `json:"cgpa"`
	SkillsAcquired        []string          `json:"skills_acquired"`

	CurrentLevel       ExitLevel           `json:"current_level,omitempty"`
	ExitQualifications []ExitQualification `json:"exit_qualifications"`

	IsVerified bool       `json:"is_verified"`
	VerifiedBy string     `json:"verified_by,omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version - токен оптимистичной блокировки документа.
	Version int `json:"version"`
}

// New создаёт пустую запись при регистрации студента.
func New(id, studentID string, now time.Time) *AcademicRecord {
	return &AcademicRecord{
		ID:                 id,
		StudentID:          studentID,
		CourseRecords:      []TranscriptEntry{},
		SkillsAcquired:     []string{},
		ExitQualifications: []ExitQualification{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Entry возвращает запись транскрипта по курсу.
func (r *AcademicRecord) Entry(courseID string) (TranscriptEntry, bool) {
	if i := r.indexOf(courseID); i >= 0 {
		return r.CourseRecords[i], true
	}
	return TranscriptEntry{}, false
}

func (r *AcademicRecord) indexOf(courseID string) int {
	for i := range r.CourseRecords {
		if r.CourseRecords[i].CourseID == courseID {
			return i
		}
	}
	return -1
}

// Upsert кладёт запись в транскрипт: заменяет на месте, если курс уже есть,
// иначе добавляет в конец. Возвращает true при замене.
// После Upsert запись не считается согласованной до вызова Settle.
func (r *AcademicRecord) Upsert(entry TranscriptEntry) bool {
	if i := r.indexOf(entry.CourseID); i >= 0 {
		r.CourseRecords[i] = entry
		return true
	}
	r.CourseRecords = append(r.CourseRecords, entry)
	return false
}

// Settle пересчитывает все производные поля из транскрипта:
// CGPA, кредитный леджер и набор навыков.
func (r *AcademicRecord) Settle(p Policy, now time.Time) {
	r.CGPA = Recalculate(r.CourseRecords)
	t := Tally(r.CourseRecords, p.PassGradePoint)
	r.TotalCreditsAttempted = t.Attempted
	r.TotalCreditsEarned = t.Earned
	r.SkillsAcquired = t.Skills
	r.UpdatedAt = now
}

// Verify отмечает запись как заверенную администратором.
// Не зависит от итогов леджера.
func (r *AcademicRecord) Verify(adminID string, now time.Time) {
	r.IsVerified = true
	r.VerifiedBy = adminID
	r.VerifiedAt = &now
	r.UpdatedAt = now
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository - хранилище академических записей.
type Repository interface {
	// Create сохраняет новую запись.
	Create(ctx context.Context, r *AcademicRecord) error

	// GetByID возвращает ErrRecordNotFound, если записи нет.
	GetByID(ctx context.Context, id string) (*AcademicRecord, error)

	// GetByStudent возвращает запись студента или ErrRecordNotFound.
	GetByStudent(ctx context.Context, studentID string) (*AcademicRecord, error)

	// Save сохраняет запись, если r.Version совпадает с сохранённой,
	// и увеличивает r.Version. Иначе ErrVersionConflict.
	Save(ctx context.Context, r *AcademicRecord) error
}
