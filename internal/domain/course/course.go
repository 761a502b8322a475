// Package course описывает факты о курсе, которые нужны леджеру.
// Каталог курсов живёт вне леджера - здесь только снимок его данных.
package course

import (
	"context"
	"strings"

	"github.com/nep-campus/credit-ledger/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE FACTS
// ══════════════════════════════════════════════════════════════════════════════

// Facts - неизменяемый (для целей леджера) снимок курса.
type Facts struct {
	ID            string   `json:"id"`
	Code          string   `json:"code"`
	Name          string   `json:"name"`
	Credits       int      `json:"credits"`
	Semester      int      `json:"semester"`
	SkillTags     []string `json:"skill_tags"`
	IsActive      bool     `json:"is_active"`
	MaxEnrollment int      `json:"max_enrollment"`
}

// HasCap возвращает true, если у курса есть лимит мест.
// MaxEnrollment <= 0 означает "без ограничений".
func (f Facts) HasCap() bool {
	return f.MaxEnrollment > 0
}

// Admissible проверяет, можно ли записаться на курс.
func (f Facts) Admissible() error {
	if !f.IsActive {
		return shared.ErrCourseInactive
	}
	return nil
}

// Validate проверяет корректность данных каталога.
func (f Facts) Validate() error {
	switch {
	case strings.TrimSpace(f.ID) == "":
		return shared.NewDomainError("course", "Validate", shared.ErrInvalidArgument, "course id is required")
	case strings.TrimSpace(f.Code) == "":
		return shared.NewDomainError("course", "Validate", shared.ErrInvalidArgument, "course code is required")
	case f.Credits < 0:
		return shared.NewDomainError("course", "Validate", shared.ErrInvalidArgument, "credits cannot be negative")
	case f.MaxEnrollment < 0:
		return shared.NewDomainError("course", "Validate", shared.ErrInvalidArgument, "max enrollment cannot be negative")
	}
	return nil
}

// NormalizeTags приводит теги навыков к нижнему регистру и убирает дубликаты,
// сохраняя порядок первого появления.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// PROVIDER
// ══════════════════════════════════════════════════════════════════════════════

// Provider - источник фактов о курсах (Course Fact Provider).
type Provider interface {
	// GetCourse возвращает факты курса.
	// Возвращает ErrCourseNotFound, если курса нет.
	GetCourse(ctx context.Context, courseID string) (Facts, error)
}

// Catalog - провайдер, в который можно также записывать курсы.
// Используется для загрузки каталога в dev-режиме и в тестах.
type Catalog interface {
	Provider

	// PutCourse создаёт или обновляет курс.
	PutCourse(ctx context.Context, f Facts) error
}
