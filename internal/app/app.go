// Package app provides the main application struct for centralized
// dependency management and lifecycle control of the askmom server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"askmom/config"
	"askmom/internal/cache"
	"askmom/internal/contact"
	"askmom/internal/core"
	"askmom/internal/generator"
	"askmom/internal/guardrails"
	"askmom/internal/orchestrator"
	"askmom/internal/server"
	"askmom/internal/store"
)

// App holds every component with lifecycle needs and tears them down in
// dependency order.
type App struct {
	config    *config.Config
	store     core.ConversationStore
	snapshots cache.Cache
	orch      *orchestrator.Orchestrator
	server    *server.Server

	sweepCancel context.CancelFunc
	sweepDone   chan struct{}

	shutdownMu sync.Mutex
	shutdown   bool
}

// New creates an App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	app := &App{config: cfg}

	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	app.store = st

	snapshots, err := newSnapshotCache(cfg.Cache)
	if err != nil {
		closeErr := st.Close()
		if closeErr != nil {
			return nil, fmt.Errorf("failed to initialize cache: %w (also: store close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	app.snapshots = snapshots

	var gen core.Generator
	if cfg.Model.Enabled {
		gen = generator.New(cfg.Model.Generator)
	}

	orch := orchestrator.New(
		st,
		guardrails.New(cfg.Guardrails),
		contact.NewBuilder(cfg.AppName),
		gen,
		snapshots,
		orchestrator.Config{ModelTimeout: cfg.Model.Timeout},
	)
	if cfg.Sweep.RetentionDays > 0 {
		orch.Sweeper().SetRetention(time.Duration(cfg.Sweep.RetentionDays) * 24 * time.Hour)
	}
	app.orch = orch

	if cfg.Sweep.LoopInterval > 0 {
		sweepCtx, cancel := context.WithCancel(context.Background())
		app.sweepCancel = cancel
		app.sweepDone = make(chan struct{})
		go func() {
			defer close(app.sweepDone)
			orch.Sweeper().RunSweepLoop(sweepCtx, cfg.Sweep.LoopInterval)
		}()
	}

	app.server = server.New(orch, &server.Config{
		MasterKey:       cfg.Server.MasterKey,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsEndpoint: cfg.Metrics.Endpoint,
		BodyLimit:       cfg.Server.BodyLimit,
	})

	app.logStartupInfo()
	return app, nil
}

// Server returns the HTTP server for starting and for httptest wiring.
func (a *App) Server() *server.Server {
	return a.server
}

// Orchestrator returns the wired orchestrator.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	return a.orch
}

// Shutdown gracefully tears down app components in dependency order:
// the HTTP server first (stop accepting requests), then the sweep loop,
// then the cache and store. Idempotent; repeated calls are no-ops. Every
// close step is attempted and failures are aggregated.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	if a.sweepCancel != nil {
		a.sweepCancel()
		select {
		case <-a.sweepDone:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("sweep loop shutdown: %w", ctx.Err()))
		}
	}

	if a.snapshots != nil {
		if err := a.snapshots.Close(); err != nil {
			slog.Error("cache close error", "error", err)
			errs = append(errs, fmt.Errorf("cache close: %w", err))
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Error("store close error", "error", err)
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	slog.Info("application shutdown complete")
	return nil
}

func newSnapshotCache(cfg config.CacheConfig) (cache.Cache, error) {
	if cfg.Backend == "redis" {
		return cache.NewRedisCache(cfg.Redis)
	}
	return cache.NewLocalCache(cfg.TTL), nil
}

// logStartupInfo logs the application configuration on startup.
func (a *App) logStartupInfo() {
	cfg := a.config

	if cfg.Server.MasterKey == "" {
		slog.Warn("SECURITY WARNING: MASTER_KEY not set - server running in UNSAFE MODE",
			"security_risk", "unauthenticated access allowed",
			"recommendation", "set MASTER_KEY environment variable to secure this service")
	} else {
		slog.Info("authentication enabled", "mode", "master_key")
	}

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}

	slog.Info("store configured", "type", cfg.Store.Type)
	slog.Info("snapshot cache configured", "backend", cfg.Cache.Backend)

	if cfg.Model.Enabled {
		slog.Info("external model enabled",
			"model", cfg.Model.Generator.Model,
			"timeout", cfg.Model.Timeout,
		)
	} else {
		slog.Info("external model disabled, stub replies only")
	}
}
