// Package indicator provides the pluggable indicator calculation contract and
// the configured indicator set evaluated by the engine.
//
// Two shapes exist. Window indicators are deterministic functions of a
// contiguous window of the most recent N observations. Accumulator indicators
// are deterministic functions of the previous accumulated value and the
// current observation, with no fixed window.
package indicator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/metior/internal/models"
)

// Indicator is the common surface of both shapes.
type Indicator interface {
	// Name identifies the configured instance, e.g. "wma_5".
	Name() string
	// Fields lists the value fields this indicator produces.
	Fields() []string
	// Window is the number of trailing observations required to produce the
	// first value. Accumulators return 1.
	Window() int
}

// WindowIndicator computes its fields from exactly Window() trailing rows.
// Implementations must be pure: identical windows yield identical values
// regardless of where in the series the window sits.
type WindowIndicator interface {
	Indicator
	ComputeWindow(window []models.Observation) (models.Values, error)
}

// AccumulatorIndicator carries state forward one observation at a time.
type AccumulatorIndicator interface {
	Indicator
	// Seed produces the value at the first observation of a series.
	Seed(first models.Observation) models.Values
	// Step produces the value at cur given the accumulated value at prevObs.
	Step(prev models.Values, prevObs, cur models.Observation) models.Values
}

// Derived is a statically declared field computed from two already-computed
// fields at the same position: the difference Minuend-Subtrahend, or the
// relative difference in percent when Percent is set. Derived fields replace
// the original system's discover-columns-by-name-prefix logic.
type Derived struct {
	Name       string
	Minuend    string
	Subtrahend string
	Percent    bool
}

// Apply adds the derived field to v when both inputs are present.
func (d Derived) Apply(v models.Values) {
	a, okA := v[d.Minuend]
	b, okB := v[d.Subtrahend]
	if !okA || !okB {
		return
	}
	if d.Percent {
		if b != 0 {
			v[d.Name] = roundTo((a-b)/b*100, 4)
		}
		return
	}
	v[d.Name] = roundTo(a-b, 6)
}

// Set is the full indicator configuration for a run: the indicator instances
// plus derived fields, resolved once at run start and immutable afterwards.
type Set struct {
	windows      []WindowIndicator
	accumulators []AccumulatorIndicator
	derived      []Derived
	fields       []string
	maxWindow    int
	hash         string
}

// NewSet validates the configuration and precomputes the field order and the
// configuration hash.
func NewSet(indicators []Indicator, derived []Derived) (*Set, error) {
	s := &Set{}
	seen := map[string]string{}

	for _, ind := range indicators {
		for _, f := range ind.Fields() {
			if prev, dup := seen[f]; dup {
				return nil, fmt.Errorf("duplicate field %q produced by %s and %s", f, prev, ind.Name())
			}
			seen[f] = ind.Name()
			s.fields = append(s.fields, f)
		}
		switch v := ind.(type) {
		case WindowIndicator:
			if v.Window() < 1 {
				return nil, fmt.Errorf("indicator %s: window must be positive", v.Name())
			}
			s.windows = append(s.windows, v)
			if v.Window() > s.maxWindow {
				s.maxWindow = v.Window()
			}
		case AccumulatorIndicator:
			s.accumulators = append(s.accumulators, v)
			if s.maxWindow < 1 {
				s.maxWindow = 1
			}
		default:
			return nil, fmt.Errorf("indicator %s implements neither shape", ind.Name())
		}
	}
	if len(s.windows) == 0 && len(s.accumulators) == 0 {
		return nil, fmt.Errorf("indicator set is empty")
	}

	for _, d := range derived {
		if _, dup := seen[d.Name]; dup {
			return nil, fmt.Errorf("derived field %q collides with indicator field", d.Name)
		}
		if _, ok := seen[d.Minuend]; !ok {
			return nil, fmt.Errorf("derived field %q references unknown field %q", d.Name, d.Minuend)
		}
		if _, ok := seen[d.Subtrahend]; !ok {
			return nil, fmt.Errorf("derived field %q references unknown field %q", d.Name, d.Subtrahend)
		}
		seen[d.Name] = "derived"
		s.fields = append(s.fields, d.Name)
		s.derived = append(s.derived, d)
	}

	s.hash = s.computeHash()
	return s, nil
}

// Fields returns the output fields in declaration order.
func (s *Set) Fields() []string { return s.fields }

// WindowIndicators returns the window-shaped indicators of the set. The merge
// verification recomputes these directly from source windows.
func (s *Set) WindowIndicators() []WindowIndicator { return s.windows }

// MaxWindow is the largest window across all configured indicators.
func (s *Set) MaxWindow() int { return s.maxWindow }

// WarmUp is the number of trailing already-covered rows needed to seed every
// sliding window for the first new row of an incremental pass. Accumulators
// need only the single previous row.
func (s *Set) WarmUp() int {
	w := s.maxWindow - 1
	if w < 1 && len(s.accumulators) > 0 {
		w = 1
	}
	if w < 0 {
		w = 0
	}
	return w
}

// Hash is a deterministic fingerprint of the configuration (families, windows,
// derived fields). A cache entry computed under a different hash is rebuilt.
func (s *Set) Hash() string { return s.hash }

func (s *Set) computeHash() string {
	var parts []string
	for _, w := range s.windows {
		parts = append(parts, fmt.Sprintf("w:%s/%d/%s", w.Name(), w.Window(), strings.Join(w.Fields(), ",")))
	}
	for _, a := range s.accumulators {
		parts = append(parts, fmt.Sprintf("a:%s/%s", a.Name(), strings.Join(a.Fields(), ",")))
	}
	for _, d := range s.derived {
		parts = append(parts, fmt.Sprintf("d:%s=%s-%s/%v", d.Name, d.Minuend, d.Subtrahend, d.Percent))
	}
	sort.Strings(parts)
	sum := sha256.Sum256([]byte(strings.Join(parts, ";")))
	return hex.EncodeToString(sum[:8])
}

// Evaluate computes the full series: one point per observation, fields absent
// until their window is first fully populated.
func (s *Set) Evaluate(obs []models.Observation) ([]models.SeriesPoint, error) {
	return s.EvaluateFrom(obs, 0, nil)
}

// EvaluateFrom computes points for obs[from:] only. When from > 0 and the set
// contains accumulators, prev must hold the accumulated values at obs[from-1]
// so the accumulators can resume without replaying history.
func (s *Set) EvaluateFrom(obs []models.Observation, from int, prev models.Values) ([]models.SeriesPoint, error) {
	if from < 0 || from > len(obs) {
		return nil, fmt.Errorf("evaluate: position %d out of range [0,%d]", from, len(obs))
	}

	// Running accumulator state, one Values per accumulator.
	acc := make([]models.Values, len(s.accumulators))
	if from > 0 {
		for i, a := range s.accumulators {
			state := models.Values{}
			for _, f := range a.Fields() {
				val, ok := prev[f]
				if !ok {
					return nil, fmt.Errorf("evaluate: missing accumulator seed field %q at resume point", f)
				}
				state[f] = val
			}
			acc[i] = state
		}
	}

	points := make([]models.SeriesPoint, 0, len(obs)-from)
	for i := from; i < len(obs); i++ {
		vals := models.Values{}

		for _, w := range s.windows {
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

		for j, a := range s.accumulators {
			if i == 0 {
				acc[j] = a.Seed(obs[0])
			} else {
				acc[j] = a.Step(acc[j], obs[i-1], obs[i])
			}
			for k, v := range acc[j] {
				vals[k] = v
			}
		}

		for _, d := range s.derived {
			d.Apply(vals)
		}

		points = append(points, models.SeriesPoint{Date: obs[i].Date, Values: vals})
	}
	return points, nil
}

func roundTo(v float64, decimals int) float64 {
	pow := 1.0
	for i := 0; i < decimals; i++ {
		pow *= 10
	}
	if v >= 0 {
		return float64(int64(v*pow+0.5)) / pow
	}
	return float64(int64(v*pow-0.5)) / pow
}
