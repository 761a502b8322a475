// Package student содержит доменную модель студента (User с ролью student).
//
// Пакет определяет:
//
//   - Сущность Student с денормализованным счётчиком CreditsEarned
//   - Интерфейс Repository (реализации в infrastructure/persistence)
//
// # CreditsEarned - это кеш
//
// Авторитетный источник - AcademicRecord.TotalCreditsEarned. Счётчик на
// студенте пишет только кредитный леджер, в той же транзакции, что и
// академическую запись. Любое расхождение - ошибка, которую находит
// задача сверки:
//
//	report, err := reconcile.Handle(ctx, query.ReconcileCreditsQuery{Repair: true})
//
// # Пример использования
//
//	s, err := NewStudent(NewStudentParams{
//	    ID:           uuid.NewString(),
//	    Name:         "Asha Rao",
//	    Email:        "asha@campus.edu",
//	    Code:         "CS2024-017",
//	    PasswordHash: hash,
//	})
package student
