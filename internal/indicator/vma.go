package indicator

import (
	"fmt"

	"github.com/ternarybob/metior/internal/models"
)

// VMA is the simple moving average of traded volume.
type VMA struct {
	period int
	field  string
}

// NewVMA creates a volume moving average over the given period.
func NewVMA(period int) (*VMA, error) {
	if period < 1 {
		return nil, fmt.Errorf("vma: period must be positive, got %d", period)
	}
	return &VMA{period: period, field: fmt.Sprintf("vma_%d", period)}, nil
}

func (v *VMA) Name() string     { return v.field }
func (v *VMA) Fields() []string { return []string{v.field} }
func (v *VMA) Window() int      { return v.period }

// ComputeWindow implements WindowIndicator.
func (v *VMA) ComputeWindow(window []models.Observation) (models.Values, error) {
	if len(window) != v.period {
		return nil, fmt.Errorf("vma: window has %d rows, want %d", len(window), v.period)
	}

	var sum float64
	for _, o := range window {
		sum += o.Volume
	}
	return models.Values{v.field: sum / float64(v.period)}, nil
}
