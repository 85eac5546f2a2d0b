package common

import "strings"

// Instrument is a parsed instrument identifier. Sources qualify codes with
// an exchange suffix ("510050.SH", "159915.SZ"); caches and outputs use the
// bare code. Parsing happens once at the boundary so the rest of the engine
// never sees suffix variants.
type Instrument struct {
	// Code is the bare instrument code (e.g. "510050").
	Code string
	// Exchange is the exchange suffix without the dot (e.g. "SH"), empty
	// when the identifier was unqualified.
	Exchange string
	// Raw is the original identifier string.
	Raw string
}

// knownExchanges lists the exchange suffixes stripped from qualified codes.
var knownExchanges = map[string]bool{
	"SH": true,
	"SZ": true,
	"BJ": true,
}

// ParseInstrument parses an instrument identifier.
// Supports "510050.SH" (qualified) and "510050" (bare).
func ParseInstrument(id string) Instrument {
	id = strings.TrimSpace(id)
	if id == "" {
		return Instrument{}
	}

	if idx := strings.LastIndex(id, "."); idx > 0 {
		suffix := strings.ToUpper(id[idx+1:])
		if knownExchanges[suffix] {
			return Instrument{
				Code:     id[:idx],
				Exchange: suffix,
				Raw:      id,
			}
		}
	}

	return Instrument{Code: id, Raw: id}
}

// String returns the qualified form when the exchange is known.
func (i Instrument) String() string {
	if i.Exchange == "" {
		return i.Code
	}
	return i.Code + "." + i.Exchange
}

// ParseInstruments parses a list of identifiers, dropping empty entries.
func ParseInstruments(ids []string) []Instrument {
	result := make([]Instrument, 0, len(ids))
	for _, id := range ids {
		inst := ParseInstrument(id)
		if inst.Code != "" {
			result = append(result, inst)
		}
	}
	return result
}
