package storage

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/metior/internal/common"
	"github.com/ternarybob/metior/internal/interfaces"
	"github.com/ternarybob/metior/internal/storage/badger"
	"github.com/ternarybob/metior/internal/storage/file"
)

// NewCacheStore creates a cache store based on config. fields is the ordered
// indicator field list of the active configuration; the file store uses it as
// its column schema.
func NewCacheStore(logger arbor.ILogger, config *common.Config, fields []string) (interfaces.CacheStore, error) {
	switch config.Storage.Type {
	case "badger", "":
		db, err := badger.NewBadgerDB(logger, &config.Storage.Badger)
		if err != nil {
			return nil, err
		}
		return badger.NewCacheStorage(db, logger), nil
	case "file":
		return file.NewCacheStorage(config.Storage.File.Path, fields, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (supported: 'badger', 'file')", config.Storage.Type)
	}
}
