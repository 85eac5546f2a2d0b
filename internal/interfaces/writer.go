package interfaces

import (
	"context"

	"github.com/ternarybob/metior/internal/models"
)

// ResultWriter durably stores an instrument's final indicator series. The
// engine does not depend on the storage format chosen downstream; fields
// lists the series' value columns in output order so tabular writers can lay
// out rows deterministically.
type ResultWriter interface {
	Write(ctx context.Context, group, instrument string, fields []string, points []models.SeriesPoint) error
	Close() error
}
