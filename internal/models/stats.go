package models

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// BatchRunStats accumulates counters for one orchestrator run. Workers update
// it concurrently through the atomic Add methods; everything else reads a
// Report snapshot after the run finishes.
type BatchRunStats struct {
	RunID     string
	Group     string
	StartedAt time.Time

	attempted   atomic.Int64
	cacheHits   atomic.Int64
	incremental atomic.Int64
	rebuilt     atomic.Int64
	skipped     atomic.Int64
	failures    atomic.Int64
}

// NewBatchRunStats creates stats for one run of the given threshold-group.
func NewBatchRunStats(group string) *BatchRunStats {
	return &BatchRunStats{
		RunID:     uuid.New().String(),
		Group:     group,
		StartedAt: time.Now().UTC(),
	}
}

func (s *BatchRunStats) AddAttempted()   { s.attempted.Add(1) }
func (s *BatchRunStats) AddCacheHit()    { s.cacheHits.Add(1) }
func (s *BatchRunStats) AddIncremental() { s.incremental.Add(1) }
func (s *BatchRunStats) AddRebuilt()     { s.rebuilt.Add(1) }
func (s *BatchRunStats) AddSkipped()     { s.skipped.Add(1) }
func (s *BatchRunStats) AddFailure()     { s.failures.Add(1) }

// BatchRunReport is an immutable snapshot of a finished (or in-flight) run.
type BatchRunReport struct {
	RunID       string        `json:"run_id"`
	Group       string        `json:"group"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Duration    time.Duration `json:"duration"`
	Attempted   int64         `json:"attempted"`
	CacheHits   int64         `json:"cache_hits"`
	Incremental int64         `json:"incremental"`
	Rebuilt     int64         `json:"rebuilt"`
	Skipped     int64         `json:"skipped"`
	Failures    int64         `json:"failures"`
}

// Report snapshots the counters.
func (s *BatchRunStats) Report() *BatchRunReport {
	now := time.Now().UTC()
	return &BatchRunReport{
		RunID:       s.RunID,
		Group:       s.Group,
		StartedAt:   s.StartedAt,
		FinishedAt:  now,
		Duration:    now.Sub(s.StartedAt),
		Attempted:   s.attempted.Load(),
		CacheHits:   s.cacheHits.Load(),
		Incremental: s.incremental.Load(),
		Rebuilt:     s.rebuilt.Load(),
		Skipped:     s.skipped.Load(),
		Failures:    s.failures.Load(),
	}
}
