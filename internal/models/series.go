package models

import "sort"

// Values holds the computed indicator fields for one date. A field that is
// not yet defined (window not full) is simply missing from the map; absence
// is explicit, never encoded as zero.
type Values map[string]float64

// Clone returns a copy of the value map.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// SeriesPoint is one dated entry of an indicator series.
type SeriesPoint struct {
	Date   Date
	Values Values
}

// SpliceSeries combines an existing series with newly computed points,
// re-sorted by date and de-duplicated; on a date conflict the new point wins.
func SpliceSeries(old, fresh []SeriesPoint) []SeriesPoint {
	byDate := make(map[Date]SeriesPoint, len(old)+len(fresh))
	for _, p := range old {
		byDate[p.Date] = p
	}
	for _, p := range fresh {
		byDate[p.Date] = p
	}

	out := make([]SeriesPoint, 0, len(byDate))
	for _, p := range byDate {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
