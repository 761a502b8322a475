// Package grading содержит вывод оценки из баллов и сущность Grade.
package grading

import (
	"math"

	"github.com/nep-campus/credit-ledger/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADE SCALE
// ══════════════════════════════════════════════════════════════════════════════

// Band - одна строка шкалы: баллы >= MinMarks дают Letter и Point.
type Band struct {
	MinMarks float64 `json:"min_marks"`
	Letter   string  `json:"letter"`
	Point    float64 `json:"point"`
}

// Scale - упорядоченная по убыванию таблица порогов.
// Одна и та же шкала используется при создании оценки, при её пересмотре
// и при построении записи транскрипта.
type Scale struct {
	bands []Band
}

// DefaultScale - 10-балльная шкала.
var DefaultScale = MustScale([]Band{
	{MinMarks: 90, Letter: "A", Point: 10},
	{MinMarks: 80, Letter: "B+", Point: 9},
	{MinMarks: 70, Letter: "B", Point: 8},
	{MinMarks: 60, Letter: "C+", Point: 7},
	{MinMarks: 50, Letter: "C", Point: 6},
	{MinMarks: 45, Letter: "D", Point: 5},
	{MinMarks: 40, Letter: "P", Point: 4},
	{MinMarks: 0, Letter: "F", Point: 0},
})

// NewScale проверяет таблицу: пороги строго убывают, последний равен 0.
func NewScale(bands []Band) (Scale, error) {
	if len(bands) == 0 || bands[len(bands)-1].MinMarks != 0 {
		return Scale{}, shared.ErrInvalidGradeScale
	}
	for i := 1; i < len(bands); i++ {
		if bands[i].MinMarks >= bands[i-1].MinMarks {
			return Scale{}, shared.ErrInvalidGradeScale
		}
	}
	cp := make([]Band, len(bands))
	copy(cp, bands)
	return Scale{bands: cp}, nil
}

// MustScale как NewScale, но паникует на ошибке.
func MustScale(bands []Band) Scale {
	s, err := NewScale(bands)
	if err != nil {
		panic(err)
	}
	return s
}

// Derive переводит баллы в буквенную оценку и grade point.
// Чистая функция: никаких побочных эффектов.
func (s Scale) Derive(marks float64) (string, float64, error) {
	if math.IsNaN(marks) || !shared.Percentage(marks).IsValid() {
		return "", 0, shared.ErrInvalidMarks
	}
	for _, b := range s.bands {
		if marks >= b.MinMarks {
			return b.Letter, b.Point, nil
		}
	}
	// недостижимо: последний порог всегда 0
	last := s.bands[len(s.bands)-1]
	return last.Letter, last.Point, nil
}

// MaxPoint - наибольший grade point шкалы.
func (s Scale) MaxPoint() float64 {
	if len(s.bands) == 0 {
		return 0
	}
	return s.bands[0].Point
}
