// Package engine orchestrates batch recomputation runs over a threshold-group
// of instruments with a bounded worker pool.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/metior/internal/common"
	"github.com/ternarybob/metior/internal/indicator"
	"github.com/ternarybob/metior/internal/interfaces"
	"github.com/ternarybob/metior/internal/merge"
	"github.com/ternarybob/metior/internal/models"
	"github.com/ternarybob/metior/internal/staleness"
)

// Options controls a single run.
type Options struct {
	// Concurrency is the number of workers; values below 1 mean 1.
	Concurrency int
	// ForceRebuild bypasses staleness evaluation and recomputes everything.
	ForceRebuild bool
	// Tolerance is the numerical tolerance for the warm-up identity check.
	// Zero means merge.DefaultTolerance.
	Tolerance float64
}

// Engine runs the per-instrument pipeline: probe the source, decide
// staleness, reuse, merge or rebuild, then persist and emit downstream.
// Every branch ends at the result writer. Instrument failures are isolated;
// one bad instrument never aborts the run.
type Engine struct {
	source interfaces.SourceReader
	store  interfaces.CacheStore
	writer interfaces.ResultWriter
	set    *indicator.Set
	logger arbor.ILogger
}

// New creates an engine over the given source, cache store and result writer.
func New(source interfaces.SourceReader, store interfaces.CacheStore, writer interfaces.ResultWriter, set *indicator.Set, logger arbor.ILogger) *Engine {
	return &Engine{
		source: source,
		store:  store,
		writer: writer,
		set:    set,
		logger: logger,
	}
}

// Run processes every instrument of a group and returns the run report.
// Cancelling ctx stops feeding new instruments; in-flight instruments finish.
func (e *Engine) Run(ctx context.Context, group string, instruments []string, opts Options) *models.BatchRunReport {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Tolerance == 0 {
		opts.Tolerance = merge.DefaultTolerance
	}

	stats := models.NewBatchRunStats(group)
	e.logger.Info().
		Str("run_id", stats.RunID).
		Str("group", group).
		Int("instruments", len(instruments)).
		Int("concurrency", opts.Concurrency).
		Bool("force_rebuild", opts.ForceRebuild).
		Msg("Starting batch run")

	work := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < opts.Concurrency; i++ {
		wg.Add(1)
		common.SafeGo(e.logger, fmt.Sprintf("engine-worker-%d", i), func() {
			defer wg.Done()
			for instrument := range work {
				e.processInstrument(ctx, group, instrument, opts, stats)
			}
		})
	}

feed:
	for _, instrument := range instruments {
		select {
		case <-ctx.Done():
			e.logger.Warn().
				Str("run_id", stats.RunID).
				Msg("Run cancelled, draining in-flight instruments")
			break feed
		case work <- instrument:
		}
	}
	close(work)
	wg.Wait()

	report := stats.Report()
	e.logger.Info().
		Str("run_id", report.RunID).
		Str("group", report.Group).
		Int64("attempted", report.Attempted).
		Int64("cache_hits", report.CacheHits).
		Int64("incremental", report.Incremental).
		Int64("rebuilt", report.Rebuilt).
		Int64("skipped", report.Skipped).
		Int64("failures", report.Failures).
		Str("duration", report.Duration.String()).
		Msg("Batch run finished")
	return report
}

func (e *Engine) processInstrument(ctx context.Context, group, instrument string, opts Options, stats *models.BatchRunStats) {
	stats.AddAttempted()

	info, err := e.source.Info(ctx, instrument)
	if err != nil {
		stats.AddFailure()
		e.logger.Error().
			Err(err).
			Str("instrument", instrument).
			Msg("Failed to probe source")
		return
	}
	if info.Rows < e.set.MaxWindow() {
		stats.AddSkipped()
		e.logger.Warn().
			Str("instrument", instrument).
			Int("rows", info.Rows).
			Int("required", e.set.MaxWindow()).
			Msg("Insufficient history, skipping")
		return
	}

	entry, decision := e.decide(ctx, group, instrument, info, opts)
	e.logger.Debug().
		Str("instrument", instrument).
		Str("action", decision.Action.String()).
		Str("reason", decision.Reason).
		Msg("Staleness decision")

	// A fresh cache skips the full source read, but the series still goes to
	// the result writer like every other branch.
	if decision.Action == staleness.ActionReuse {
		stats.AddCacheHit()
		if err := e.publish(ctx, group, instrument, entry.Points); err != nil {
			e.fail(stats, instrument, "publish cached results", err)
		}
		return
	}

	obs, srcInfo, err := e.source.Read(ctx, instrument)
	if err != nil {
		stats.AddFailure()
		e.logger.Error().
			Err(err).
			Str("instrument", instrument).
			Msg("Failed to read source")
		return
	}
	// The source may have shrunk between the probe and the read.
	if len(obs) < e.set.MaxWindow() {
		stats.AddSkipped()
		e.logger.Warn().
			Str("instrument", instrument).
			Int("rows", len(obs)).
			Int("required", e.set.MaxWindow()).
			Msg("Insufficient history, skipping")
		return
	}

	var points []models.SeriesPoint
	switch decision.Action {
	case staleness.ActionIncremental:
		points, err = merge.Merge(e.set, entry, obs, opts.Tolerance)
		if err != nil {
			// A failed merge is never fatal; fall back to a full rebuild.
			e.logger.Warn().
				Err(err).
				Str("instrument", instrument).
				Msg("Incremental merge failed, rebuilding")
			points, err = merge.Build(e.set, obs)
			if err != nil {
				e.fail(stats, instrument, "rebuild after failed merge", err)
				return
			}
			stats.AddRebuilt()
		} else {
			stats.AddIncremental()
		}

	default: // staleness.ActionRebuild
		points, err = merge.Build(e.set, obs)
		if err != nil {
			if errors.Is(err, merge.ErrInsufficientHistory) {
				stats.AddSkipped()
				return
			}
			e.fail(stats, instrument, "rebuild", err)
			return
		}
		stats.AddRebuilt()
	}

	newEntry := models.NewCacheEntry(instrument, group, e.set.Hash(), points, srcInfo.Fingerprint)
	if err := e.persist(ctx, newEntry); err != nil {
		e.fail(stats, instrument, "persist cache entry", err)
		return
	}
	if err := e.publish(ctx, group, instrument, points); err != nil {
		e.fail(stats, instrument, "publish results", err)
		return
	}
}

// decide reads the cached entry and evaluates staleness. A corrupt entry is
// treated the same as a missing one.
func (e *Engine) decide(ctx context.Context, group, instrument string, srcInfo interfaces.SourceInfo, opts Options) (*models.CacheEntry, staleness.Decision) {
	if opts.ForceRebuild {
		return nil, staleness.Decision{Action: staleness.ActionRebuild, Reason: "force rebuild requested"}
	}

	entry, err := e.store.Read(ctx, group, instrument)
	if err != nil {
		if !errors.Is(err, interfaces.ErrCacheNotFound) {
			e.logger.Warn().
				Err(err).
				Str("instrument", instrument).
				Msg("Discarding unreadable cache entry")
		}
		entry = nil
	}
	return entry, staleness.Evaluate(entry, srcInfo, e.set.Hash())
}

// persist writes the entry to the cache store, retrying once on failure.
func (e *Engine) persist(ctx context.Context, entry *models.CacheEntry) error {
	if err := e.store.Write(ctx, entry); err != nil {
		e.logger.Warn().
			Err(err).
			Str("instrument", entry.Instrument).
			Msg("Cache write failed, retrying")
		return e.store.Write(ctx, entry)
	}
	return nil
}

// publish sends the series downstream, retrying once on failure.
func (e *Engine) publish(ctx context.Context, group, instrument string, points []models.SeriesPoint) error {
	if err := e.writer.Write(ctx, group, instrument, e.set.Fields(), points); err != nil {
		e.logger.Warn().
			Err(err).
			Str("instrument", instrument).
			Msg("Result write failed, retrying")
		return e.writer.Write(ctx, group, instrument, e.set.Fields(), points)
	}
	return nil
}

func (e *Engine) fail(stats *models.BatchRunStats, instrument, stage string, err error) {
	stats.AddFailure()
	e.logger.Error().
		Err(err).
		Str("instrument", instrument).
		Str("stage", stage).
		Msg("Instrument processing failed")
}
