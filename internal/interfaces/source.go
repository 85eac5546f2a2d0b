// Package interfaces provides the collaborator contracts for dependency
// injection between the engine and its storage, source and output layers.
package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/metior/internal/models"
)

// ErrSourceUnavailable indicates an instrument's raw data is missing or
// unreadable. Fatal for that instrument only; the batch continues.
var ErrSourceUnavailable = errors.New("source data unavailable")

// SourceInfo describes the current state of an instrument's source series
// without loading it: the latest available date, a fingerprint of the data as
// stored (content hash, or size+mtime for files), and the total row count.
type SourceInfo struct {
	LatestDate  models.Date
	Fingerprint string
	Rows        int
}

// SourceReader loads raw observation series for instruments from an external
// store. Implementations must return observations ordered ascending by date
// with unique dates.
type SourceReader interface {
	// Read loads the full observation series for an instrument along with
	// its source info. Returns ErrSourceUnavailable (possibly wrapped) when
	// the instrument is unknown or the source cannot be read.
	Read(ctx context.Context, instrument string) ([]models.Observation, SourceInfo, error)

	// Info probes the current source state without building the observation
	// series. The engine decides staleness from it and answers a REUSE
	// verdict without calling Read.
	Info(ctx context.Context, instrument string) (SourceInfo, error)
}
