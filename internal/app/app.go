// Package app wires configuration, storage, source, writer and engine into a
// runnable application.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/metior/internal/common"
	"github.com/ternarybob/metior/internal/engine"
	"github.com/ternarybob/metior/internal/indicator"
	"github.com/ternarybob/metior/internal/interfaces"
	"github.com/ternarybob/metior/internal/models"
	"github.com/ternarybob/metior/internal/source"
	"github.com/ternarybob/metior/internal/storage"
	"github.com/ternarybob/metior/internal/writer"
)

// App holds the wired application components.
type App struct {
	Config *common.Config
	Logger arbor.ILogger
	Set    *indicator.Set
	Groups []models.ThresholdGroup
	Engine *engine.Engine

	store  interfaces.CacheStore
	writer interfaces.ResultWriter
}

// New builds the application from config.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	set, err := indicator.BuildSet(config.Indicators, config.Derived)
	if err != nil {
		return nil, fmt.Errorf("failed to build indicator set: %w", err)
	}

	groups, err := common.LoadGroups(config.Groups.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load threshold groups: %w", err)
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("no threshold groups found in %s", config.Groups.Dir)
	}

	store, err := storage.NewCacheStore(logger, config, set.Fields())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache store: %w", err)
	}

	reader, err := source.NewReader(logger, config)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize source reader: %w", err)
	}

	resultWriter, err := writer.NewResultWriter(logger, config)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize result writer: %w", err)
	}

	logger.Info().
		Str("config_hash", set.Hash()).
		Strs("fields", set.Fields()).
		Int("groups", len(groups)).
		Msg("Application initialized")

	return &App{
		Config: config,
		Logger: logger,
		Set:    set,
		Groups: groups,
		Engine: engine.New(reader, store, resultWriter, set, logger),
		store:  store,
		writer: resultWriter,
	}, nil
}

// RunAll processes every threshold group sequentially; instruments within a
// group run concurrently.
func (a *App) RunAll(ctx context.Context) ([]*models.BatchRunReport, error) {
	opts := engine.Options{
		Concurrency:  a.Config.Batch.Concurrency,
		ForceRebuild: a.Config.Batch.ForceRebuild,
		Tolerance:    a.Config.Batch.Tolerance,
	}

	reports := make([]*models.BatchRunReport, 0, len(a.Groups))
	for _, group := range a.Groups {
		instruments := make([]string, 0, len(group.Instruments))
		for _, inst := range common.ParseInstruments(group.Instruments) {
			instruments = append(instruments, inst.Code)
		}

		report := a.Engine.Run(ctx, group.Name, instruments, opts)
		reports = append(reports, report)
		if err := a.persistReport(report); err != nil {
			a.Logger.Warn().Err(err).Str("group", group.Name).Msg("Failed to persist run report")
		}

		if ctx.Err() != nil {
			return reports, ctx.Err()
		}
	}
	return reports, nil
}

// persistReport writes the run report as JSON under the storage path.
func (a *App) persistReport(report *models.BatchRunReport) error {
	root := a.Config.Storage.Badger.Path
	if a.Config.Storage.Type == "file" {
		root = a.Config.Storage.File.Path
	}
	dir := filepath.Join(root, "reports")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, report.Group+".json"), data, 0644)
}

// Close releases storage and writer resources.
func (a *App) Close() {
	if err := a.writer.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Result writer close failed")
	}
	if err := a.store.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Cache store close failed")
	}
}
