package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/phume/amlwatch/internal/adapter"
	"github.com/phume/amlwatch/internal/config"
	"github.com/phume/amlwatch/internal/export"
	"github.com/phume/amlwatch/internal/extractor"
	"github.com/phume/amlwatch/internal/ingest"
	"github.com/phume/amlwatch/internal/logging"
	"github.com/phume/amlwatch/internal/ports"
	"github.com/phume/amlwatch/internal/server"
	"github.com/phume/amlwatch/internal/storage"
)

// Application wires configuration to the pipeline and its collaborators.
type Application struct {
	cfg         config.Config
	logger      *slog.Logger
	store       *storage.Store
	coordinator *ingest.Coordinator
}

// New validates configuration and builds a runnable application. A store that
// cannot be opened is the one fatal configuration error that aborts
// everything.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	client := &http.Client{Timeout: 20 * time.Second}

	registry := adapter.NewRegistry()
	registry.Register(adapter.NewFeed(client, cfg.Ingest.UserAgent, baseLogger.With("component", "adapter.feed")))
	registry.Register(adapter.NewSinglePage(client, cfg.Ingest.UserAgent, baseLogger.With("component", "adapter.page")))
	registry.Register(adapter.NewPaginated(client, cfg.Ingest.UserAgent, cfg.Ingest.Cutoff(), cfg.Ingest.PageDelay, baseLogger.With("component", "adapter.paginated")))

	var primary ports.TextExtractor
	if llm := extractor.NewLLM(cfg.LLM, cfg.Extractor.MaxChars, baseLogger.With("component", "extractor.llm")); llm.Configured() {
		primary = llm
	} else {
		baseLogger.Info("no LLM credential configured, using heuristic extraction only")
	}
	var fallback ports.TextExtractor
	if cfg.Extractor.FallbackEnabled() {
		fallback = extractor.NewHeuristic()
	}

	coordinator := ingest.New(ingest.Deps{
		Registry:   registry,
		Store:      store,
		Extractor:  extractor.NewChain(primary, fallback, baseLogger.With("component", "extractor")),
		Sources:    cfg.Sources,
		Workers:    cfg.Ingest.Workers,
		RunTimeout: cfg.Ingest.RunTimeout,
		Logger:     baseLogger.With("component", "coordinator"),
	})

	return &Application{
		cfg:         cfg,
		logger:      baseLogger,
		store:       store,
		coordinator: coordinator,
	}, nil
}

// Close releases the store.
func (a *Application) Close() error {
	return a.store.Close()
}

// RunOnce performs a single ingestion pass.
func (a *Application) RunOnce(ctx context.Context) error {
	report := a.coordinator.Run(ctx)
	if report.Failed() {
		return fmt.Errorf("run %s: one or more sources failed", report.RunID)
	}
	return nil
}

// Serve starts the read API and periodic ingestion, blocking until ctx is
// cancelled.
func (a *Application) Serve(ctx context.Context) error {
	sched := ingest.NewScheduler(a.cfg.Ingest.Interval)
	sched.Start(ctx, func(runCtx context.Context) {
		a.coordinator.Run(runCtx)
	})
	defer sched.Stop()

	srv := server.New(a.store, a.coordinator, a.logger.With("component", "server"))
	httpServer := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("api server starting", "addr", a.cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Export writes a CSV snapshot of the store into dir.
func (a *Application) Export(ctx context.Context, dir string, limit int) error {
	return export.Snapshot(ctx, a.store, dir, limit)
}
