package indicator

import (
	"fmt"

	"github.com/ternarybob/metior/internal/models"
)

// WMA is the linearly weighted moving average of the close price: the most
// recent observation carries the largest weight.
//
//	WMA = sum(close_i * i) / sum(i),  i = 1..period (oldest to newest)
type WMA struct {
	period int
	field  string
}

// NewWMA creates a weighted moving average over the given period.
func NewWMA(period int) (*WMA, error) {
	if period < 1 {
		return nil, fmt.Errorf("wma: period must be positive, got %d", period)
	}
	return &WMA{period: period, field: fmt.Sprintf("wma_%d", period)}, nil
}

func (w *WMA) Name() string     { return w.field }
func (w *WMA) Fields() []string { return []string{w.field} }
func (w *WMA) Window() int      { return w.period }

// ComputeWindow implements WindowIndicator.
func (w *WMA) ComputeWindow(window []models.Observation) (models.Values, error) {
	if len(window) != w.period {
		return nil, fmt.Errorf("wma: window has %d rows, want %d", len(window), w.period)
	}

	var weighted, weightSum float64
	for i, o := range window {
		weight := float64(i + 1)
		weighted += o.Close * weight
		weightSum += weight
	}
	return models.Values{w.field: weighted / weightSum}, nil
}
