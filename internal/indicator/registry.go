package indicator

import (
	"fmt"
	"strings"

	"github.com/ternarybob/metior/internal/common"
)

// BuildSet resolves the statically-declared indicator configuration into an
// immutable Set, once, at run start.
func BuildSet(indicators []common.IndicatorConfig, derived []common.DerivedConfig) (*Set, error) {
	var instances []Indicator

	for _, cfg := range indicators {
		family := strings.ToLower(strings.TrimSpace(cfg.Family))
		switch family {
		case "wma":
			for _, p := range cfg.Periods {
				ind, err := NewWMA(p)
				if err != nil {
					return nil, err
				}
				instances = append(instances, ind)
			}
		case "ema":
			for _, p := range cfg.Periods {
				ind, err := NewEMA(p)
				if err != nil {
					return nil, err
				}
				instances = append(instances, ind)
			}
		case "vol", "hv":
			for _, p := range cfg.Periods {
				ind, err := NewVolatility(p, cfg.Annualized)
				if err != nil {
					return nil, err
				}
				instances = append(instances, ind)
			}
		case "vma":
			for _, p := range cfg.Periods {
				ind, err := NewVMA(p)
				if err != nil {
					return nil, err
				}
				instances = append(instances, ind)
			}
		case "obv":
			instances = append(instances, NewOBV())
		default:
			return nil, fmt.Errorf("unknown indicator family %q", cfg.Family)
		}
	}

	derivedFields := make([]Derived, 0, len(derived))
	for _, d := range derived {
		derivedFields = append(derivedFields, Derived{
			Name:       d.Name,
			Minuend:    d.Minuend,
			Subtrahend: d.Subtrahend,
			Percent:    d.Percent,
		})
	}

	return NewSet(instances, derivedFields)
}
