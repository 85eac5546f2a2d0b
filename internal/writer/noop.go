// Package writer publishes recomputed indicator series to downstream sinks.
package writer

import (
	"context"

	"github.com/ternarybob/metior/internal/models"
)

// NoopWriter discards results. It is the default when no sink is configured.
type NoopWriter struct{}

// NewNoopWriter creates a writer that discards results.
func NewNoopWriter() *NoopWriter { return &NoopWriter{} }

func (w *NoopWriter) Write(ctx context.Context, group, instrument string, fields []string, points []models.SeriesPoint) error {
	return nil
}

func (w *NoopWriter) Close() error { return nil }
