package student

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции со студентами.
type Repository interface {
	// Create создаёт нового студента.
	// Возвращает ErrStudentAlreadyExists при совпадении email или кода.
	Create(ctx context.Context, s *Student) error

	// GetByID возвращает студента по внутреннему ID.
	// Возвращает ErrStudentNotFound, если студент не найден.
	GetByID(ctx context.Context, id string) (*Student, error)

	// SetCreditsEarned обновляет кеш кредитов.
	// Единственный вызывающий - кредитный леджер.
	SetCreditsEarned(ctx context.Context, id string, credits int) error

	// ListIDs возвращает ID студентов после afterID (по возрастанию), не больше limit.
	ListIDs(ctx context.Context, afterID string, limit int) ([]string, error)
}
