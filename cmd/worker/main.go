// Command worker runs the ledger's scheduled jobs: the periodic comparison of
// cached credit totals against academic records.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/nep-campus/credit-ledger/config"
	"github.com/nep-campus/credit-ledger/internal/app"
	"github.com/nep-campus/credit-ledger/internal/infrastructure/scheduler"
	"github.com/nep-campus/credit-ledger/internal/infrastructure/scheduler/jobs"
	"github.com/nep-campus/credit-ledger/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := app.NewLogger(cfg).With(logger.Component("worker"))
	if cfg.Storage.Driver == config.DriverMemory {
		log.Warn("worker is running against an in-memory store and will only see its own data")
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	schedCfg := scheduler.DefaultConfig()
	schedCfg.Logger = log
	schedCfg.JobTimeout = cfg.Scheduler.JobTimeout
	sched := scheduler.New(schedCfg)

	job := jobs.NewReconcileCreditsJob(a.Reconciler(), jobs.ReconcileCreditsConfig{
		Repair: cfg.Scheduler.ReconcileRepair,
	}, log)
	if err := sched.Register(job, cfg.Scheduler.ReconcileCron); err != nil {
		return fmt.Errorf("register %s: %w", job.Name(), err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// первый проход сразу при старте
		if _, err := sched.RunNow(gctx, job.Name()); err != nil {
			log.Error("initial reconciliation failed", logger.Err(err))
		}
		return nil
	})
	g.Go(func() error {
		if err := sched.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return sched.Stop()
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("worker stopped")
	return nil
}
