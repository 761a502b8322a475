// Package jobs contains the ledger's scheduled jobs.
package jobs

import (
	"context"
	"fmt"

	"github.com/nep-campus/credit-ledger/internal/application/query"
	"github.com/nep-campus/credit-ledger/pkg/logger"
)

// Reconciler runs one credit cache reconciliation pass.
type Reconciler interface {
	Handle(ctx context.Context, q query.ReconcileCreditsQuery) (*query.ReconcileReport, error)
}

// ReconcileCreditsConfig contains configuration for the reconciliation job.
type ReconcileCreditsConfig struct {
	// Repair rewrites diverged caches instead of only reporting them.
	Repair   bool
	PageSize int
}

// ReconcileCreditsJob compares every student's cached credit total with the
// academic record.
type ReconcileCreditsJob struct {
	reconciler Reconciler
	cfg        ReconcileCreditsConfig
	log        *logger.Logger
}

// NewReconcileCreditsJob creates the job.
func NewReconcileCreditsJob(r Reconciler, cfg ReconcileCreditsConfig, log *logger.Logger) *ReconcileCreditsJob {
	if log == nil {
		log = logger.Nop()
	}
	return &ReconcileCreditsJob{reconciler: r, cfg: cfg, log: log.With(logger.Component("job.reconcile_credits"))}
}

// Name implements scheduler.Job.
func (j *ReconcileCreditsJob) Name() string { return "reconcile_credits" }

// Description implements scheduler.Job.
func (j *ReconcileCreditsJob) Description() string {
	if j.cfg.Repair {
		return "reconcile cached credit totals and repair divergences"
	}
	return "report cached credit totals that disagree with the academic record"
}

// Run implements scheduler.Job.
func (j *ReconcileCreditsJob) Run(ctx context.Context) error {
	report, err := j.reconciler.Handle(ctx, query.ReconcileCreditsQuery{
		Repair:   j.cfg.Repair,
		PageSize: j.cfg.PageSize,
	})
	if err != nil {
		return fmt.Errorf("reconcile credits: %w", err)
	}

	for _, d := range report.Divergences {
		j.log.Warn("credit cache diverged",
			logger.StudentID(d.StudentID),
			logger.Int("cached", d.Cached),
			logger.Int("ledger", d.Ledger),
			logger.Bool("repaired", d.Repaired))
	}
	for _, id := range report.Missing {
		j.log.Error("student has no academic record", logger.StudentID(id))
	}
	return nil
}
