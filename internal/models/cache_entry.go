package models

import (
	"fmt"
	"time"
)

// CacheEntry is the persisted indicator series for one
// (instrument, threshold-group, indicator-configuration) tuple, plus the
// metadata the validator needs to decide whether it is reusable.
type CacheEntry struct {
	Instrument string
	Group      string
	ConfigHash string

	Points []SeriesPoint

	// LastDate is the date of the most recent observation incorporated.
	// Invariant: always equals the maximum date present in Points.
	LastDate          Date
	SourceFingerprint string
	ComputedAt        time.Time
}

// NewCacheEntry builds an entry from computed points, setting LastDate from
// the series itself so the invariant holds by construction.
func NewCacheEntry(instrument, group, configHash string, points []SeriesPoint, fingerprint string) *CacheEntry {
	e := &CacheEntry{
		Instrument:        instrument,
		Group:             group,
		ConfigHash:        configHash,
		Points:            points,
		SourceFingerprint: fingerprint,
		ComputedAt:        time.Now().UTC(),
	}
	if len(points) > 0 {
		e.LastDate = points[len(points)-1].Date
	}
	return e
}

// Validate checks the entry invariants: points sorted ascending with unique
// dates, and LastDate equal to the maximum point date. Stores run this on
// read and before write; a failure is treated as cache corruption.
func (e *CacheEntry) Validate() error {
	if e.Instrument == "" {
		return fmt.Errorf("cache entry: missing instrument")
	}
	if len(e.Points) == 0 {
		return fmt.Errorf("cache entry %s: empty series", e.Instrument)
	}
	for i := 1; i < len(e.Points); i++ {
		if e.Points[i-1].Date >= e.Points[i].Date {
			return fmt.Errorf("cache entry %s: points not strictly ordered at %s",
				e.Instrument, e.Points[i].Date)
		}
	}
	if last := e.Points[len(e.Points)-1].Date; last != e.LastDate {
		return fmt.Errorf("cache entry %s: last_date %s does not match series tail %s",
			e.Instrument, e.LastDate, last)
	}
	return nil
}
