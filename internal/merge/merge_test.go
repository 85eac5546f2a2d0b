package merge

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/metior/internal/common"
	"github.com/ternarybob/metior/internal/indicator"
	"github.com/ternarybob/metior/internal/models"
)

func day(n int) models.Date {
	return models.NewDate(2025, time.June, 1).AddDays(n)
}

func makeObs(n int) []models.Observation {
	obs := make([]models.Observation, n)
	for i := range obs {
		obs[i] = models.Observation{
			Date:   day(i),
			Close:  10 + math.Sin(float64(i)*0.7),
			Volume: 100 + float64(i%7)*10,
		}
	}
	return obs
}

func makeSet(t *testing.T) *indicator.Set {
	t.Helper()
	set, err := indicator.BuildSet([]common.IndicatorConfig{
		{Family: "wma", Periods: []int{5, 10}},
		{Family: "vol", Periods: []int{5}},
		{Family: "obv"},
	}, []common.DerivedConfig{
		{Name: "wma_diff_5_10", Minuend: "wma_5", Subtrahend: "wma_10"},
	})
	require.NoError(t, err)
	return set
}

func entryFor(t *testing.T, set *indicator.Set, obs []models.Observation) *models.CacheEntry {
	t.Helper()
	points, err := Build(set, obs)
	require.NoError(t, err)
	return models.NewCacheEntry("510050", "3000w", set.Hash(), points, "fp")
}

func requireSamePoints(t *testing.T, want, got []models.SeriesPoint) {
	t.Helper()
	require.Equal(t, len(want), len(got))
	for i := range want {
		require.Equal(t, want[i].Date, got[i].Date)
		require.Equal(t, len(want[i].Values), len(got[i].Values), "fields at %s", want[i].Date)
		for field, wv := range want[i].Values {
			assert.InDelta(t, wv, got[i].Values[field], 1e-9, "field %s at %s", field, want[i].Date)
		}
	}
}

func TestBuildRequiresMaxWindowRows(t *testing.T) {
	set := makeSet(t)
	_, err := Build(set, makeObs(set.MaxWindow()-1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientHistory))

	points, err := Build(set, makeObs(set.MaxWindow()))
	require.NoError(t, err)
	assert.Len(t, points, set.MaxWindow())
}

// Extending a cache incrementally must produce exactly the series a full
// rebuild over the same source would, regardless of where the split falls.
func TestMergeMatchesRebuild(t *testing.T) {
	set := makeSet(t)
	full := makeObs(33)

	wholeSeries, err := Build(set, full)
	require.NoError(t, err)

	for _, covered := range []int{10, 15, 30, 32} {
		entry := entryFor(t, set, full[:covered])
		merged, err := Merge(set, entry, full, DefaultTolerance)
		require.NoError(t, err, "covered=%d", covered)
		requireSamePoints(t, wholeSeries, merged)
	}
}

func TestMergeSingleNewDay(t *testing.T) {
	set := makeSet(t)
	full := makeObs(31)

	entry := entryFor(t, set, full[:30])
	merged, err := Merge(set, entry, full, DefaultTolerance)
	require.NoError(t, err)

	require.Len(t, merged, 31)
	// The covered prefix is carried over untouched.
	for i := 0; i < 30; i++ {
		assert.Equal(t, entry.Points[i].Date, merged[i].Date)
	}
	assert.Equal(t, day(30), merged[30].Date)
}

func TestMergeNothingNew(t *testing.T) {
	set := makeSet(t)
	obs := makeObs(20)
	entry := entryFor(t, set, obs)

	merged, err := Merge(set, entry, obs, DefaultTolerance)
	require.NoError(t, err)
	requireSamePoints(t, entry.Points, merged)
}

func TestMergeInsufficientWarmUp(t *testing.T) {
	set := makeSet(t)
	full := makeObs(30)

	entry := entryFor(t, set, full[:15])
	// Source lost its early history: fewer covered rows remain than the
	// warm-up needs.
	truncated := full[10:]

	_, err := Merge(set, entry, truncated, DefaultTolerance)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientHistory))
}

func TestMergeWarmUpMismatch(t *testing.T) {
	set := makeSet(t)
	full := makeObs(30)

	entry := entryFor(t, set, full[:25])
	// Rewrite a covered close inside the warm-up span; the recomputed window
	// values no longer match the cache.
	tampered := make([]models.Observation, len(full))
	copy(tampered, full)
	tampered[23].Close += 1.0

	_, err := Merge(set, entry, tampered, DefaultTolerance)
	require.Error(t, err)

	var invariant *InvariantError
	require.True(t, errors.As(err, &invariant))
	assert.NotEmpty(t, invariant.Field)
	assert.NotEqual(t, invariant.Cached, invariant.Fresh)
}

func TestMergeToleranceAllowsTinyDrift(t *testing.T) {
	set := makeSet(t)
	full := makeObs(30)

	entry := entryFor(t, set, full[:25])
	// Nudge a cached value by less than tolerance.
	for i := range entry.Points {
		if v, ok := entry.Points[i].Values["wma_5"]; ok {
			entry.Points[i].Values["wma_5"] = v + 1e-9
		}
	}

	_, err := Merge(set, entry, full, 1e-6)
	assert.NoError(t, err)
}

func TestMergeMissingCachedWarmUpPoint(t *testing.T) {
	set := makeSet(t)
	full := makeObs(30)

	entry := entryFor(t, set, full[:25])
	// Drop a covered point inside the warm-up span.
	entry.Points = append(entry.Points[:20:20], entry.Points[21:]...)

	_, err := Merge(set, entry, full, DefaultTolerance)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientHistory))
}
