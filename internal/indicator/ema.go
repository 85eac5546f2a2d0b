package indicator

import (
	"fmt"

	"github.com/ternarybob/metior/internal/models"
)

// EMA is an exponential moving average with smoothing factor
// alpha = 2/(period+1), seeded from the first close of its window and
// recursed across the window.
//
// Pinning the recursion to a fixed window makes EMA a pure function of its
// trailing rows, so the full and incremental computation paths produce
// identical values at every position.
type EMA struct {
	period int
	alpha  float64
	field  string
}

// NewEMA creates an exponential moving average over the given period.
func NewEMA(period int) (*EMA, error) {
	if period < 1 {
		return nil, fmt.Errorf("ema: period must be positive, got %d", period)
	}
	return &EMA{
		period: period,
		alpha:  2.0 / (float64(period) + 1.0),
		field:  fmt.Sprintf("ema_%d", period),
	}, nil
}

func (e *EMA) Name() string     { return e.field }
func (e *EMA) Fields() []string { return []string{e.field} }
func (e *EMA) Window() int      { return e.period }

// ComputeWindow implements WindowIndicator.
func (e *EMA) ComputeWindow(window []models.Observation) (models.Values, error) {
	if len(window) != e.period {
		return nil, fmt.Errorf("ema: window has %d rows, want %d", len(window), e.period)
	}

	ema := window[0].Close
	for _, o := range window[1:] {
		ema = e.alpha*o.Close + (1-e.alpha)*ema
	}
	return models.Values{e.field: ema}, nil
}
