package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/metior/internal/models"
)

// ErrCacheNotFound indicates no cache entry exists for the instrument.
var ErrCacheNotFound = errors.New("cache entry not found")

// ErrCacheCorrupt indicates an entry exists but is unreadable or fails its
// invariants. Recovered locally by forcing a rebuild, never surfaced as a
// run failure.
var ErrCacheCorrupt = errors.New("cache entry corrupt")

// CacheStore persists computed indicator series per (threshold-group,
// instrument). Writes are atomic from the reader's perspective: a concurrent
// Read never observes a partially written entry, and a failed Write leaves
// any previously valid entry readable.
type CacheStore interface {
	// Read returns the stored entry, ErrCacheNotFound when absent, or
	// ErrCacheCorrupt (possibly wrapped) when the entry is unreadable.
	Read(ctx context.Context, group, instrument string) (*models.CacheEntry, error)

	// Write atomically replaces the entry for the instrument.
	Write(ctx context.Context, entry *models.CacheEntry) error

	// Close releases underlying resources.
	Close() error
}
