package record

import (
	"strings"
	"time"

	"github.com/nep-campus/credit-ledger/internal/domain/shared"
)

// ExitLevel - уровень квалификации по NEP (multiple entry/exit).
type ExitLevel string

const (
	LevelCertificate  ExitLevel = "certificate"
	LevelDiploma      ExitLevel = "diploma"
	LevelDegree       ExitLevel = "degree"
	LevelPostgraduate ExitLevel = "postgraduate"
)

var levelRank = map[ExitLevel]int{
	LevelCertificate:  1,
	LevelDiploma:      2,
	LevelDegree:       3,
	LevelPostgraduate: 4,
}

// ParseExitLevel проверяет значение по закрытому перечню.
func ParseExitLevel(s string) (ExitLevel, error) {
	l := ExitLevel(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := levelRank[l]; !ok {
		return "", shared.ErrInvalidExitLevel
	}
	return l, nil
}

// Rank - порядковый номер уровня, 0 для пустого.
func (l ExitLevel) Rank() int {
	return levelRank[l]
}

// ExitQualification - запись о выходе с квалификацией.
type ExitQualification struct {
	Level        ExitLevel `json:"level"`
	AwardedAt    time.Time `json:"awarded_at"`
	TotalCredits int       `json:"total_credits"`
}

// RecordExit добавляет квалификацию и обновляет текущий уровень.
// credits=nil - берутся текущие TotalCreditsEarned.
// Понижение уровня отклоняется, если политика его не разрешает.
func (r *AcademicRecord) RecordExit(level ExitLevel, credits *int, p Policy, now time.Time) (ExitQualification, error) {
	if level.Rank() == 0 {
		return ExitQualification{}, shared.ErrInvalidExitLevel
	}
	if credits != nil && *credits < 0 {
		return ExitQualification{}, shared.ErrInvalidExitCredit
	}
	if !p.AllowExitRegression && level.Rank() < r.highestLevel().Rank() {
		return ExitQualification{}, shared.ErrExitRegression
	}

	total := r.TotalCreditsEarned
	if credits != nil {
		total = *credits
	}

	q := ExitQualification{Level: level, AwardedAt: now, TotalCredits: total}
	r.ExitQualifications = append(r.ExitQualifications, q)
	r.CurrentLevel = level
	r.UpdatedAt = now
	return q, nil
}

func (r *AcademicRecord) highestLevel() ExitLevel {
	var top ExitLevel
	for _, q := range r.ExitQualifications {
		if q.Level.Rank() > top.Rank() {
			top = q.Level
		}
	}
	return top
}
