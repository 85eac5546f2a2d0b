package models

import (
	"fmt"
	"sort"
)

// Observation is one dated record for an instrument. Close is always present
// and positive; the remaining fields are optional and zero when the source
// does not supply them.
type Observation struct {
	Date   Date
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// NormalizeObservations sorts observations ascending by date and removes
// duplicate dates, keeping the later occurrence. Sources are expected to be
// ordered already; this makes the invariant explicit at the boundary.
func NormalizeObservations(obs []Observation) []Observation {
	if len(obs) == 0 {
		return obs
	}

	sorted := make([]Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date < sorted[j].Date
	})

	out := sorted[:0]
	for _, o := range sorted {
		if len(out) > 0 && out[len(out)-1].Date == o.Date {
			out[len(out)-1] = o
			continue
		}
		out = append(out, o)
	}
	return out
}

// ValidateObservations checks the per-instrument series invariant: dates are
// unique, strictly increasing, and every close is positive.
func ValidateObservations(obs []Observation) error {
	for i, o := range obs {
		if o.Close <= 0 {
			return fmt.Errorf("observation %s: non-positive close %v", o.Date, o.Close)
		}
		if i > 0 && obs[i-1].Date >= o.Date {
			return fmt.Errorf("observation %s: dates not strictly increasing (previous %s)",
				o.Date, obs[i-1].Date)
		}
	}
	return nil
}

// LatestDate returns the maximum date in the series, or zero when empty.
func LatestDate(obs []Observation) Date {
	if len(obs) == 0 {
		return 0
	}
	return obs[len(obs)-1].Date
}
