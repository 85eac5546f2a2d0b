// Package merge implements the full indicator computation pass and the
// warm-up-validated incremental merge that splices newly computed tail values
// onto an existing cached series.
package merge

import (
	"errors"
	"fmt"
	"math"

	"github.com/ternarybob/metior/internal/indicator"
	"github.com/ternarybob/metior/internal/models"
)

// DefaultTolerance is the numerical tolerance for the warm-up identity check.
const DefaultTolerance = 1e-6

// ErrInsufficientHistory indicates the source holds fewer rows than the
// computation needs: less than the largest window for a full build, or too
// little retained history before the new rows for an incremental merge. The
// caller falls back to a full rebuild or skips the instrument.
var ErrInsufficientHistory = errors.New("insufficient history")

// InvariantError reports that recomputing the warm-up slice disagreed with
// the cached values beyond tolerance. The incremental path must be abandoned
// and the series fully rebuilt rather than silently accepting divergent data.
type InvariantError struct {
	Field  string
	Date   models.Date
	Cached float64
	Fresh  float64
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("merge invariant violated: field %s at %s cached=%v recomputed=%v",
		e.Field, e.Date, e.Cached, e.Fresh)
}

// Build computes the full series for all observations. The source must hold
// at least MaxWindow rows, otherwise no indicator ever produces a value and
// the instrument is skipped instead of being reported with placeholder rows.
func Build(set *indicator.Set, obs []models.Observation) ([]models.SeriesPoint, error) {
	if len(obs) < set.MaxWindow() {
		return nil, fmt.Errorf("%w: %d rows, largest window needs %d",
			ErrInsufficientHistory, len(obs), set.MaxWindow())
	}
	return set.Evaluate(obs)
}

// Merge extends a valid cached series with the source rows strictly newer
// than the cache, recomputing only the tail.
//
// The warm-up slice (the last WarmUp() already-covered rows before the first
// new row) is recomputed and required to match the cached values within
// tolerance before any new value is accepted. On success the result is the
// old series unchanged plus one point per new row.
func Merge(set *indicator.Set, entry *models.CacheEntry, obs []models.Observation, tolerance float64) ([]models.SeriesPoint, error) {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	// First observation strictly newer than the cache.
	split := len(obs)
	for i, o := range obs {
		if o.Date > entry.LastDate {
			split = i
			break
		}
	}
	if split == len(obs) {
		// Nothing new; the validator should have answered REUSE.
		return entry.Points, nil
	}

	warm := set.WarmUp()
	if split < warm {
		return nil, fmt.Errorf("%w: %d covered rows before new data, warm-up needs %d",
			ErrInsufficientHistory, split, warm)
	}

	cachedByDate := make(map[models.Date]models.Values, len(entry.Points))
	for _, p := range entry.Points {
		cachedByDate[p.Date] = p.Values
	}

	// The accumulators resume from the cached values at the last covered row.
	var seed models.Values
	if split > 0 {
		var ok bool
		seed, ok = cachedByDate[obs[split-1].Date]
		if !ok {
			return nil, fmt.Errorf("%w: cached series has no point for %s",
				ErrInsufficientHistory, obs[split-1].Date)
		}
	}

	if err := verifyWarmUp(set, obs, split, warm, cachedByDate, tolerance); err != nil {
		return nil, err
	}

	fresh, err := set.EvaluateFrom(obs, split, seed)
	if err != nil {
		return nil, err
	}

	return models.SpliceSeries(entry.Points, fresh), nil
}

// verifyWarmUp recomputes the window fields for the trailing covered rows and
// compares them against the cached series.
func verifyWarmUp(set *indicator.Set, obs []models.Observation, split, warm int, cached map[models.Date]models.Values, tolerance float64) error {
	start := split - warm
	if start < 0 {
		start = 0
	}

	for i := start; i < split; i++ {
		cachedVals, ok := cached[obs[i].Date]
		if !ok {
			return fmt.Errorf("%w: cached series has no point for %s",
				ErrInsufficientHistory, obs[i].Date)
		}

		recomputed, err := windowValuesAt(set, obs, i)
		if err != nil {
			return err
		}
		for field, fresh := range recomputed {
			old, present := cachedVals[field]
			if !present {
				// The cached run may not have had enough history for this
				// field at this position yet; nothing to compare.
				continue
			}
			if math.Abs(old-fresh) > tolerance {
				return &InvariantError{Field: field, Date: obs[i].Date, Cached: old, Fresh: fresh}
			}
		}
	}
	return nil
}

// windowValuesAt computes every window field defined at position i from the
// source directly. Accumulator fields are excluded: they are resumed, not
// recomputed, during a merge.
func windowValuesAt(set *indicator.Set, obs []models.Observation, i int) (models.Values, error) {
	// Evaluating the single position via the set would drag accumulators
	// along; compute window indicators directly instead.
	vals := models.Values{}
	for _, w := range set.WindowIndicators() {
		win := w.Window()
		if i < win-1 {
			continue
		}
		computed, err := w.ComputeWindow(obs[i-win+1 : i+1])
		if err != nil {
			return nil, fmt.Errorf("indicator %s at %s: %w", w.Name(), obs[i].Date, err)
		}
		for k, v := range computed {
			vals[k] = v
		}
	}
	return vals, nil
}
