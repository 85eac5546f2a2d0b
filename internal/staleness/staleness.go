// Package staleness decides whether a cached indicator series is reusable,
// needs an incremental extension, or must be fully rebuilt. The decision is a
// pure function over snapshots; it never touches storage itself.
package staleness

import (
	"fmt"

	"github.com/ternarybob/metior/internal/interfaces"
	"github.com/ternarybob/metior/internal/models"
)

// Action is the validator's verdict for one instrument.
type Action int

const (
	// ActionReuse means the cache already covers all available source data.
	ActionReuse Action = iota
	// ActionIncremental means the source has rows strictly newer than the
	// cache; only the tail needs recomputation.
	ActionIncremental
	// ActionRebuild means the cache is absent, produced by a different
	// configuration, or can no longer be trusted.
	ActionRebuild
)

func (a Action) String() string {
	switch a {
	case ActionReuse:
		return "reuse"
	case ActionIncremental:
		return "incremental"
	case ActionRebuild:
		return "rebuild"
	}
	return "unknown"
}

// Decision is the validator's verdict plus a human-readable explanation.
type Decision struct {
	Action Action
	Reason string
}

// Evaluate compares a cache entry against the current source state. Dates on
// both sides are models.Date values, normalized at the boundary, so the
// comparison is always calendar comparison and never string comparison.
//
// entry may be nil (no cache). configHash is the hash of the indicator
// configuration the run was started with.
func Evaluate(entry *models.CacheEntry, src interfaces.SourceInfo, configHash string) Decision {
	if entry == nil {
		return Decision{
			Action: ActionRebuild,
			Reason: "no cache entry",
		}
	}

	if entry.ConfigHash != configHash {
		return Decision{
			Action: ActionRebuild,
			Reason: fmt.Sprintf("indicator configuration changed (cached %s, current %s)",
				entry.ConfigHash, configHash),
		}
	}

	if err := entry.Validate(); err != nil {
		return Decision{
			Action: ActionRebuild,
			Reason: fmt.Sprintf("cache entry failed validation: %v", err),
		}
	}

	switch {
	case src.LatestDate < entry.LastDate:
		// The source has fewer days than the cache covers; history was
		// truncated or replaced, so the cache cannot be trusted.
		return Decision{
			Action: ActionRebuild,
			Reason: fmt.Sprintf("source latest %s behind cached last %s",
				src.LatestDate, entry.LastDate),
		}

	case src.LatestDate == entry.LastDate:
		if src.Fingerprint != entry.SourceFingerprint {
			// Same latest day but different content: history was rewritten
			// in place (e.g. price adjustment), which invalidates every row.
			return Decision{
				Action: ActionRebuild,
				Reason: "source fingerprint changed with unchanged latest date",
			}
		}
		return Decision{
			Action: ActionReuse,
			Reason: fmt.Sprintf("cache covers source through %s", entry.LastDate),
		}

	default:
		return Decision{
			Action: ActionIncremental,
			Reason: fmt.Sprintf("source latest %s newer than cached last %s",
				src.LatestDate, entry.LastDate),
		}
	}
}
