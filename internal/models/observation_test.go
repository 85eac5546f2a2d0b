package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) Date {
	return NewDate(2025, time.June, 1).AddDays(n)
}

func TestNormalizeObservationsSortsAndDeduplicates(t *testing.T) {
	obs := []Observation{
		{Date: day(2), Close: 12},
		{Date: day(0), Close: 10},
		{Date: day(1), Close: 11},
		{Date: day(1), Close: 11.5}, // duplicate, later occurrence wins
	}

	got := NormalizeObservations(obs)
	require.Len(t, got, 3)
	assert.Equal(t, day(0), got[0].Date)
	assert.Equal(t, day(1), got[1].Date)
	assert.Equal(t, 11.5, got[1].Close)
	assert.Equal(t, day(2), got[2].Date)
}

func TestNormalizeObservationsEmpty(t *testing.T) {
	assert.Empty(t, NormalizeObservations(nil))
}

func TestValidateObservations(t *testing.T) {
	valid := []Observation{
		{Date: day(0), Close: 10},
		{Date: day(1), Close: 11},
	}
	assert.NoError(t, ValidateObservations(valid))

	nonPositive := []Observation{{Date: day(0), Close: 0}}
	assert.Error(t, ValidateObservations(nonPositive))

	outOfOrder := []Observation{
		{Date: day(1), Close: 10},
		{Date: day(0), Close: 11},
	}
	assert.Error(t, ValidateObservations(outOfOrder))

	duplicate := []Observation{
		{Date: day(0), Close: 10},
		{Date: day(0), Close: 11},
	}
	assert.Error(t, ValidateObservations(duplicate))
}

func TestLatestDate(t *testing.T) {
	assert.Equal(t, Date(0), LatestDate(nil))

	obs := []Observation{
		{Date: day(0), Close: 10},
		{Date: day(5), Close: 11},
	}
	assert.Equal(t, day(5), LatestDate(obs))
}
