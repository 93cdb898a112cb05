package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dlapi/internal/models"
	"github.com/desertthunder/dlapi/internal/registry"
	"github.com/desertthunder/dlapi/internal/repositories"
	"github.com/desertthunder/dlapi/internal/server"
	"github.com/desertthunder/dlapi/internal/services"
	"github.com/desertthunder/dlapi/internal/shared"
	"github.com/desertthunder/dlapi/internal/tasks"
	"github.com/urfave/cli/v3"
)

// openStore builds the job registry for the configured backend. The returned func releases its resources.
func openStore(cfg shared.DatabaseConfig, logger *log.Logger) (models.Store, func() error, error) {
	switch cfg.Backend {
	case shared.BackendMemory:
		logger.Warn("using in-memory registry, jobs are lost on restart")
		return registry.New(), func() error { return nil }, nil
	case shared.BackendSQLite:
		db, err := shared.NewDatabase(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		shared.ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)

		applied, err := shared.RunMigrations(db)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		if applied > 0 {
			logger.Info("applied migrations", "count", applied)
		}
		return repositories.NewStore(db), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown database backend %q", shared.ErrInvalidConfig, cfg.Backend)
	}
}

// Serve runs the HTTP API until SIGINT or SIGTERM, then drains requests and running downloads.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := *r.config
	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = cmd.Int("port")
	}
	if cmd.IsSet("backend") {
		cfg.Database.Backend = cmd.String("backend")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(cfg.Database, r.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			r.logger.Error("failed to close registry", "error", err)
		}
	}()

	engine := services.NewYTDLP(cfg.Downloads, r.logger)
	dispatcher := tasks.NewDispatcher(store, r.logger)
	if r.logger.GetLevel() <= log.DebugLevel {
		changes := make(chan tasks.StatusChange, 64)
		dispatcher.Notify(changes)
		go tasks.LogStatusChanges(ctx, r.logger, changes)
	}
	coordinator := tasks.NewCoordinator(ctx, store, engine, dispatcher, r.logger, tasks.CoordinatorOpts{
		MaxParallel: cfg.Downloads.MaxParallel,
		ProbeRate:   cfg.Downloads.ProbeRate,
	})

	srv := server.NewServer(cfg.Server, store, coordinator, r.logger)

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("server listening", "addr", srv.Addr, "backend", cfg.Database.Backend, "downloads", cfg.Downloads.Directory)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		r.logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cmd.Duration("shutdown-timeout"))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("graceful shutdown failed", "error", err)
	}

	done := make(chan struct{})
	go func() {
		coordinator.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cmd.Duration("shutdown-timeout")):
		r.logger.Warn("downloads still running at exit")
	}
	return nil
}
