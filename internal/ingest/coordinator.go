package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/phume/amlwatch/internal/adapter"
	"github.com/phume/amlwatch/internal/config"
	"github.com/phume/amlwatch/internal/domain"
	"github.com/phume/amlwatch/internal/ports"
)

// Deps wires all driven adapters into the coordinator.
type Deps struct {
	Registry   *adapter.Registry
	Store      ports.ArticleStore
	Extractor  ports.TextExtractor
	Sources    []config.Source
	Workers    int
	RunTimeout time.Duration
	Logger     *slog.Logger
}

// Coordinator drives the whole pipeline: one worker per source (bounded), the
// dedup gate before extraction, the empty-extraction filter, and per-source
// outcome reporting. No single document or source failure aborts a run.
type Coordinator struct {
	registry   *adapter.Registry
	store      ports.ArticleStore
	extractor  ports.TextExtractor
	sources    []config.Source
	workers    int
	runTimeout time.Duration
	logger     *slog.Logger
}

// New constructs the coordinator.
func New(deps Deps) *Coordinator {
	workers := deps.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Coordinator{
		registry:   deps.Registry,
		store:      deps.Store,
		extractor:  deps.Extractor,
		sources:    deps.Sources,
		workers:    workers,
		runTimeout: deps.RunTimeout,
		logger:     deps.Logger,
	}
}

// Run executes one ingestion pass over all configured sources and returns the
// per-source report. The run-level timeout interrupts between documents only;
// in-flight extraction carries its own request timeout.
func (c *Coordinator) Run(ctx context.Context) domain.RunReport {
	runID := uuid.NewString()

	if c.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.runTimeout)
		defer cancel()
	}

	c.info("run started", "run_id", runID, "sources", len(c.sources))

	reports := make([]domain.SourceReport, len(c.sources))
	var group errgroup.Group
	group.SetLimit(c.workers)
	for i, src := range c.sources {
		i, src := i, src
		group.Go(func() error {
			reports[i] = c.runSource(ctx, src)
			return nil
		})
	}
	_ = group.Wait()

	report := domain.RunReport{RunID: runID, Sources: reports}
	for _, s := range report.Sources {
		c.info("source finished",
			"run_id", runID,
			"source", s.Source,
			"state", string(s.State),
			"fetched", s.Fetched,
			"skipped_duplicate", s.SkippedDuplicate,
			"skipped_empty", s.SkippedEmpty,
			"saved", s.Saved,
			"errors", s.Errors,
		)
	}
	c.info("run finished", "run_id", runID, "saved", report.Saved())
	return report
}

func (c *Coordinator) runSource(ctx context.Context, src config.Source) domain.SourceReport {
	report := domain.SourceReport{Source: src.Name, State: domain.StatePending}

	srcAdapter, err := c.registry.Resolve(src.Kind)
	if err != nil {
		report.State = domain.StateFailed
		report.Err = err
		return report
	}

	report.State = domain.StateFetching
	res, err := srcAdapter.Produce(ctx, src, func(doc domain.RawDocument) error {
		// The run-level timeout only interrupts between documents.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		report.Fetched++
		c.processDocument(ctx, &report, doc)
		return nil
	})

	switch {
	case errors.Is(err, adapter.ErrStructuralMismatch):
		// Layout drift: not retry-worthy, the source needs selector
		// maintenance. The run itself completes.
		c.warn("listing structure changed", "source", src.Name, "error", err)
		report.State = domain.StateCompleted
		report.Errors++
		report.Err = err
	case err != nil:
		c.warn("source aborted", "source", src.Name, "error", err)
		report.State = domain.StateFailed
		report.Errors++
		report.Err = err
	case res.StoppedAtCutoff:
		report.State = domain.StateStoppedAtCutoff
	default:
		report.State = domain.StateCompleted
	}
	return report
}

// processDocument applies the dedup gate, extraction and the empty-extraction
// filter to one raw document. Failures are counted, never propagated.
func (c *Coordinator) processDocument(ctx context.Context, report *domain.SourceReport, doc domain.RawDocument) {
	exists, err := c.store.Exists(ctx, doc.URL)
	if err != nil {
		report.Errors++
		c.warn("existence check failed", "source", doc.Source, "url", doc.URL, "error", err)
		return
	}
	if exists {
		// Expected and high-frequency; extraction must never run here.
		report.SkippedDuplicate++
		c.debug("duplicate skipped", "source", doc.Source, "url", doc.URL)
		return
	}

	entities := c.extractor.Extract(ctx, doc.Title+". "+doc.Body)
	if len(entities) == 0 {
		// Precision over recall: documents without extractable entities are
		// noise for the watchlist and are dropped.
		report.SkippedEmpty++
		c.debug("no entities extracted", "source", doc.Source, "title", doc.Title)
		return
	}

	article := domain.Article{
		Source:  doc.Source,
		Title:   doc.Title,
		URL:     doc.URL,
		Date:    doc.PublishedAt,
		Content: doc.Body,
	}
	rows := make([]domain.Entity, 0, len(entities))
	for _, e := range entities {
		rows = append(rows, domain.Entity{Name: e.Name, Type: e.Type})
	}

	saved, err := c.store.Save(ctx, article, rows)
	if err != nil {
		report.Errors++
		c.warn("save failed", "source", doc.Source, "url", doc.URL, "error", err)
		return
	}
	if !saved {
		// Lost a cross-source race on the same URL; benign.
		report.SkippedDuplicate++
		return
	}

	report.Saved++
	c.info("article saved", "source", doc.Source, "title", doc.Title, "entities", len(rows))
}

func (c *Coordinator) info(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Coordinator) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Coordinator) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
