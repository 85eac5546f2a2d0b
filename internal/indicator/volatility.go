package indicator

import (
	"fmt"
	"math"

	"github.com/ternarybob/metior/internal/models"
)

// tradingDaysPerYear is the annualization base for historical volatility.
const tradingDaysPerYear = 252

// Volatility is the historical volatility: the sample standard deviation of
// simple daily returns over the period, optionally annualized by sqrt(252).
// Computing `period` returns requires period+1 closes, so the window is one
// row larger than the configured period.
type Volatility struct {
	period     int
	annualized bool
	field      string
}

// NewVolatility creates a historical volatility indicator over the given
// number of returns.
func NewVolatility(period int, annualized bool) (*Volatility, error) {
	if period < 2 {
		return nil, fmt.Errorf("volatility: period must be at least 2, got %d", period)
	}
	return &Volatility{
		period:     period,
		annualized: annualized,
		field:      fmt.Sprintf("vol_%d", period),
	}, nil
}

func (v *Volatility) Name() string     { return v.field }
func (v *Volatility) Fields() []string { return []string{v.field} }
func (v *Volatility) Window() int      { return v.period + 1 }

// ComputeWindow implements WindowIndicator.
func (v *Volatility) ComputeWindow(window []models.Observation) (models.Values, error) {
	if len(window) != v.period+1 {
		return nil, fmt.Errorf("volatility: window has %d rows, want %d", len(window), v.period+1)
	}

	returns := make([]float64, v.period)
	for i := 1; i < len(window); i++ {
		prev := window[i-1].Close
		if prev == 0 {
			return nil, fmt.Errorf("volatility: zero close at %s", window[i-1].Date)
		}
		returns[i-1] = window[i].Close/prev - 1
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var sumSq float64
	for _, r := range returns {
		d := r - mean
		sumSq += d * d
	}
	// Sample standard deviation (n-1 denominator).
	std := math.Sqrt(sumSq / float64(len(returns)-1))

	if v.annualized {
		std *= math.Sqrt(tradingDaysPerYear)
	}
	return models.Values{v.field: std}, nil
}
