package query

import (
	"context"
	"fmt"
	"time"

	"github.com/nep-campus/credit-ledger/internal/application/ledger"
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
	"github.com/nep-campus/credit-ledger/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE CREDITS
// Сверка кеша User.creditsEarned с AcademicRecord.totalCreditsEarned.
// Расхождение - это баг, а не "второй источник правды": отчёт его
// показывает, а Repair переписывает кеш из авторитетной записи.
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileCreditsQuery - параметры сверки.
type ReconcileCreditsQuery struct {
	// Repair переписывает кеш у расходящихся студентов.
	Repair bool
	// PageSize - размер страницы обхода студентов.
	PageSize int
}

// Divergence - одно найденное расхождение.
type Divergence struct {
	StudentID string `json:"student_id"`
	Cached    int    `json:"cached"`
	Ledger    int    `json:"ledger"`
	Repaired  bool   `json:"repaired"`
}

// ReconcileReport - итог сверки.
type ReconcileReport struct {
	Scanned     int          `json:"scanned"`
	Divergences []Divergence `json:"divergences"`
	Missing     []string     `json:"missing_records"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
}

// ReconcileCreditsHandler обрабатывает ReconcileCreditsQuery.
type ReconcileCreditsHandler struct {
	ledger *ledger.Ledger
	log    *logger.Logger
}

// NewReconcileCreditsHandler создаёт обработчик.
func NewReconcileCreditsHandler(l *ledger.Ledger, log *logger.Logger) *ReconcileCreditsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ReconcileCreditsHandler{ledger: l, log: log.With(logger.Component("reconcile"))}
}

// Handle обходит всех студентов постранично.
func (h *ReconcileCreditsHandler) Handle(ctx context.Context, q ReconcileCreditsQuery) (*ReconcileReport, error) {
	if q.PageSize <= 0 {
		q.PageSize = 200
	}
	report := &ReconcileReport{Divergences: []Divergence{}, Missing: []string{}, StartedAt: h.ledger.Now()}
	reader := h.ledger.Reader()

	after := ""
	for {
		ids, err := reader.Students().ListIDs(ctx, after, q.PageSize)
		if err != nil {
			return nil, fmt.Errorf("reconcile_credits: list students: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			report.Scanned++
			d, err := h.check(ctx, id, q.Repair)
			switch {
			case shared.IsNotFound(err):
				report.Missing = append(report.Missing, id)
			case err != nil:
				return nil, fmt.Errorf("reconcile_credits: %s: %w", id, err)
			case d != nil:
				report.Divergences = append(report.Divergences, *d)
			}
		}
		after = ids[len(ids)-1]
	}

	report.FinishedAt = h.ledger.Now()
	h.log.Info("credit cache reconciliation finished",
		logger.Int("scanned", report.Scanned),
		logger.Int("diverged", len(report.Divergences)),
		logger.Int("missing_records", len(report.Missing)))
	return report, nil
}

// check compares one student inside a ledger unit so the comparison sees a
// settled record, and repairs in the same unit when asked.
func (h *ReconcileCreditsHandler) check(ctx context.Context, studentID string, repair bool) (*Divergence, error) {
	var found *Divergence
	err := h.ledger.Update(ctx, "ReconcileCredits", studentID, func(ctx context.Context, u *ledger.Unit) error {
		found = nil
		s, err := u.Students().GetByID(ctx, studentID)
		if err != nil {
			return err
		}
		rec, err := u.Records().GetByStudent(ctx, studentID)
		if err != nil {
			return err
		}
		if !s.Diverged(rec.TotalCreditsEarned) {
			return nil
		}

		d := &Divergence{StudentID: studentID, Cached: s.CreditsEarned, Ledger: rec.TotalCreditsEarned}
		if repair {
			if err := u.Students().SetCreditsEarned(ctx, studentID, rec.TotalCreditsEarned); err != nil {
				return err
			}
			d.Repaired = true
		}
		u.Emit(shared.NewCacheDivergedEvent(studentID, d.Cached, d.Ledger, d.Repaired))
		found = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found != nil {
		h.log.Warn("credit cache diverged from academic record",
			logger.StudentID(studentID), logger.Int("cached", found.Cached),
			logger.Int("ledger", found.Ledger), logger.Bool("repaired", found.Repaired))
	}
	return found, nil
}
