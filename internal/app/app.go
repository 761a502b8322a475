// Package app wires configuration, storage, caches and handlers into the
// objects the api and worker binaries run.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/nep-campus/credit-ledger/config"
	"github.com/nep-campus/credit-ledger/internal/application/command"
	"github.com/nep-campus/credit-ledger/internal/application/ledger"
	"github.com/nep-campus/credit-ledger/internal/application/query"
	"github.com/nep-campus/credit-ledger/internal/domain/course"
	"github.com/nep-campus/credit-ledger/internal/domain/grading"
	"github.com/nep-campus/credit-ledger/internal/infrastructure/messaging"
	"github.com/nep-campus/credit-ledger/internal/infrastructure/persistence/memory"
	"github.com/nep-campus/credit-ledger/internal/infrastructure/persistence/postgres"
	"github.com/nep-campus/credit-ledger/internal/infrastructure/persistence/redis"
	httpapi "github.com/nep-campus/credit-ledger/internal/interface/http"
	"github.com/nep-campus/credit-ledger/internal/interface/http/handlers"
	"github.com/nep-campus/credit-ledger/pkg/logger"
)

// Version is reported by /health.
var Version = "dev"

// App holds the wired services.
type App struct {
	Config *config.Config
	Log    *logger.Logger

	Store   ledger.Store
	Catalog course.Catalog
	Ledger  *ledger.Ledger
	Bus     *messaging.InMemoryEventBus
	Health  *handlers.CompositeHealthChecker

	transcripts query.TranscriptCache
	closers     []func()
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    logger.Format(cfg.Observability.LogFormat),
		AddCaller: !cfg.IsProduction(),
	}).With(logger.String("app", cfg.App.Name), logger.String("env", string(cfg.App.Environment)))
}

// New connects storage and caches. Close releases them.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		Log:    log,
		Health: handlers.NewCompositeHealthChecker(Version),
	}

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.openCaches(ctx)

	a.Bus = messaging.NewInMemoryEventBus(messaging.Config{AsyncMode: true, WorkerPoolSize: 8, Logger: log})
	a.closers = append(a.closers, func() { _ = a.Bus.Close() })
	if err := messaging.AuditLog(a.Bus, log); err != nil {
		a.Close()
		return nil, fmt.Errorf("subscribe audit log: %w", err)
	}

	lcfg := ledger.Config{ConflictRetries: cfg.Ledger.ConflictRetries}
	if a.transcripts != nil {
		lcfg.Evict = a.transcripts
	}
	a.Ledger = ledger.New(a.Store, a.Bus, log, lcfg)
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	switch a.Config.Storage.Driver {
	case config.DriverPostgres:
		opts := postgres.DefaultPoolOptions()
		opts.MaxConns = int32(a.Config.Storage.MaxConns)
		opts.MinConns = int32(a.Config.Storage.MinConns)

		conn, err := postgres.Connect(ctx, a.Config.Storage.DatabaseURL, opts)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, conn.Close)

		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		a.Store = postgres.NewStore(conn)
		a.Catalog = postgres.NewCatalog(conn)
		a.Health.AddCheck("postgres", handlers.PingCheck(conn))
		a.Log.Info("ledger store ready", logger.String("driver", "postgres"))

	default:
		a.Store = memory.NewStore()
		a.Catalog = memory.NewCatalog()
		a.Log.Warn("using in-memory ledger store, data is lost on restart")
	}
	return nil
}

// openCaches never fails: without Redis the services read straight from the store.
func (a *App) openCaches(ctx context.Context) {
	rc := a.Config.Redis
	if !rc.Enabled {
		return
	}

	cfg := redis.DefaultConfig()
	cfg.Host, cfg.Port, cfg.Password, cfg.DB = rc.Host, rc.Port, rc.Password, rc.DB
	cache, err := redis.NewCache(ctx, cfg)
	if err != nil {
		a.Log.Warn("redis unavailable, caching disabled", logger.Err(err))
		return
	}
	a.closers = append(a.closers, func() { _ = cache.Close() })
	a.Health.AddCheck("redis", handlers.PingCheck(cache))

	kv := redis.NewGuardedKV(cache, a.Log)
	a.transcripts = redis.NewTranscriptCache(kv)
	a.Catalog = redis.NewCourseCache(a.Catalog, kv, rc.CourseTTL, a.Log)
	a.Log.Info("redis caches enabled", logger.String("addr", cfg.Addr()))
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Reconciler returns the credit cache reconciliation handler.
func (a *App) Reconciler() *query.ReconcileCreditsHandler {
	return query.NewReconcileCreditsHandler(a.Ledger, a.Log)
}

// HTTPDependencies builds every command and query handler the API serves.
func (a *App) HTTPDependencies(auth *httpapi.Authenticator) httpapi.Dependencies {
	policy := a.Config.Ledger.Policy()
	syncer := ledger.NewSynchronizer(grading.DefaultScale, policy)
	reader := a.Ledger.Reader()

	return httpapi.Dependencies{
		RegisterStudent: command.NewRegisterStudentHandler(a.Ledger, 0, a.Log),
		Enroll:          command.NewEnrollHandler(a.Ledger, a.Catalog, a.Log),
		UpdateProgress:  command.NewUpdateProgressHandler(a.Ledger, syncer, a.Catalog, a.Log),
		DropEnrollment:  command.NewDropEnrollmentHandler(a.Ledger, a.Log),
		SubmitGrade:     command.NewSubmitGradeHandler(a.Ledger, syncer, a.Catalog, a.Log),
		ReviseGrade:     command.NewReviseGradeHandler(a.Ledger, syncer, a.Catalog, a.Log),
		RecordExit:      command.NewRecordExitHandler(a.Ledger, policy, a.Log),
		VerifyRecord:    command.NewVerifyRecordHandler(a.Ledger, a.Log),

		Transcript: query.NewGetTranscriptHandler(reader, a.transcripts, a.Config.Redis.TranscriptTTL, a.Log),
		Record:     query.NewGetRecordHandler(reader),
		Lists:      query.NewListHandler(reader),
		Reconcile:  a.Reconciler(),

		Catalog: a.Catalog,
		Auth:    auth,
		Health:  a.Health,
		Logger:  a.Log,
	}
}
