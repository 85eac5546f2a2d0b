package indicator

import "github.com/ternarybob/metior/internal/models"

const obvField = "obv"

// OBV is the on-balance volume accumulator: the running sum of volume signed
// by the direction of the close-to-close move. Unlike the window families it
// depends only on the previous accumulated value and the current observation,
// so an incremental pass needs just the last cached value to resume.
type OBV struct{}

// NewOBV creates the on-balance volume accumulator.
func NewOBV() *OBV { return &OBV{} }

func (o *OBV) Name() string     { return obvField }
func (o *OBV) Fields() []string { return []string{obvField} }
func (o *OBV) Window() int      { return 1 }

// Seed implements AccumulatorIndicator. The series starts at zero.
func (o *OBV) Seed(first models.Observation) models.Values {
	return models.Values{obvField: 0}
}

// Step implements AccumulatorIndicator.
func (o *OBV) Step(prev models.Values, prevObs, cur models.Observation) models.Values {
	obv := prev[obvField]
	switch {
	case cur.Close > prevObs.Close:
		obv += cur.Volume
	case cur.Close < prevObs.Close:
		obv -= cur.Volume
	}
	return models.Values{obvField: obv}
}
