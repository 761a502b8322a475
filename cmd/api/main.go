// Command api serves the credit ledger REST API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/nep-campus/credit-ledger/config"
	"github.com/nep-campus/credit-ledger/internal/app"
	httpapi "github.com/nep-campus/credit-ledger/internal/interface/http"
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
	log := app.NewLogger(cfg).With(logger.Component("api"))

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		// only reachable in development, Validate rejects it elsewhere
		secret = "development-only-secret"
		log.Warn("JWT_SECRET is empty, using the development secret")
	}

	srvCfg := httpapi.DefaultConfig()
	srvCfg.Host = cfg.HTTP.Host
	srvCfg.Port = cfg.HTTP.Port
	srvCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	srvCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	srvCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	server := httpapi.NewServer(srvCfg, a.HTTPDependencies(httpapi.NewAuthenticator(secret, cfg.Auth.JWTIssuer)))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("api stopped")
	return nil
}
