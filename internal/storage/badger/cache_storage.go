package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/metior/internal/interfaces"
	"github.com/ternarybob/metior/internal/models"
)

// CacheStorage implements interfaces.CacheStore on BadgerDB. Badger commits
// each upsert transactionally, so a concurrent read sees either the previous
// entry or the new one, never a partial write.
type CacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCacheStorage creates a new CacheStorage instance
func NewCacheStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CacheStore {
	return &CacheStorage{
		db:     db,
		logger: logger,
	}
}

func cacheKey(group, instrument string) string {
	return group + "/" + instrument
}

// Read retrieves the cache entry for an instrument.
func (s *CacheStorage) Read(ctx context.Context, group, instrument string) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	err := s.db.Store().Get(cacheKey(group, instrument), &entry)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrCacheNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrCacheCorrupt, err)
	}

	if err := entry.Validate(); err != nil {
		s.logger.Warn().
			Str("instrument", instrument).
			Str("group", group).
			Err(err).
			Msg("Cache entry failed validation")
		return nil, fmt.Errorf("%w: %v", interfaces.ErrCacheCorrupt, err)
	}
	return &entry, nil
}

// Write atomically replaces the cache entry for an instrument.
func (s *CacheStorage) Write(ctx context.Context, entry *models.CacheEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid cache entry: %w", err)
	}

	if err := s.db.Store().Upsert(cacheKey(entry.Group, entry.Instrument), entry); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	s.logger.Debug().
		Str("instrument", entry.Instrument).
		Str("group", entry.Group).
		Str("last_date", entry.LastDate.String()).
		Int("points", len(entry.Points)).
		Msg("Cache entry written")
	return nil
}

// Close closes the underlying database.
func (s *CacheStorage) Close() error {
	return s.db.Close()
}
