package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCacheEntrySetsLastDate(t *testing.T) {
	points := []SeriesPoint{
		{Date: day(0), Values: Values{}},
		{Date: day(1), Values: Values{}},
	}
	entry := NewCacheEntry("510050", "3000w", "abc123", points, "fp")
	assert.Equal(t, day(1), entry.LastDate)
	assert.NoError(t, entry.Validate())
	assert.False(t, entry.ComputedAt.IsZero())
}

func TestCacheEntryValidate(t *testing.T) {
	base := func() *CacheEntry {
		return NewCacheEntry("510050", "3000w", "abc123", []SeriesPoint{
			{Date: day(0), Values: Values{}},
			{Date: day(1), Values: Values{}},
		}, "fp")
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("missing instrument", func(t *testing.T) {
		e := base()
		e.Instrument = ""
		assert.Error(t, e.Validate())
	})

	t.Run("empty series", func(t *testing.T) {
		e := base()
		e.Points = nil
		assert.Error(t, e.Validate())
	})

	t.Run("unordered points", func(t *testing.T) {
		e := base()
		e.Points[0], e.Points[1] = e.Points[1], e.Points[0]
		assert.Error(t, e.Validate())
	})

	t.Run("last date mismatch", func(t *testing.T) {
		e := base()
		e.LastDate = day(9)
		err := e.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "last_date")
	})
}
