// Package scheduler runs batch recomputation on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/metior/internal/models"
)

// RunFunc executes one full batch run over every configured group.
type RunFunc func(ctx context.Context) ([]*models.BatchRunReport, error)

// Scheduler triggers batch runs on a cron schedule. Overlapping runs are not
// allowed; a tick that arrives while a run is in flight is dropped.
type Scheduler struct {
	cron    *cron.Cron
	logger  arbor.ILogger
	run     RunFunc
	mu      sync.Mutex
	busy    bool
	running bool
}

// New creates a scheduler that invokes run on each tick.
func New(logger arbor.ILogger, run RunFunc) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
		run:    run,
	}
}

// Start begins the scheduler with the given cron expression.
func (s *Scheduler) Start(ctx context.Context, cronExpr string) error {
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if cronExpr == "" {
		return fmt.Errorf("cron expression is required")
	}

	_, err := s.cron.AddFunc(cronExpr, func() { s.tick(ctx) })
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().
		Str("cron_expr", cronExpr).
		Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		s.logger.Warn().Msg("Previous run still in flight, skipping tick")
		return
	}
	s.busy = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	reports, err := s.run(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled run failed")
		return
	}
	for _, report := range reports {
		s.logger.Info().
			Str("run_id", report.RunID).
			Str("group", report.Group).
			Int64("attempted", report.Attempted).
			Int64("failures", report.Failures).
			Msg("Scheduled run completed")
	}
}
