package writer

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/metior/internal/common"
	"github.com/ternarybob/metior/internal/interfaces"
)

// NewResultWriter creates a result writer based on config.
func NewResultWriter(logger arbor.ILogger, config *common.Config) (interfaces.ResultWriter, error) {
	switch config.Writer.Type {
	case "none", "":
		return NewNoopWriter(), nil
	case "sqlite":
		return NewSQLiteWriter(config.Writer.SQLitePath, logger)
	case "clickhouse":
		return NewClickHouseWriter(&config.Writer.ClickHouse, logger)
	default:
		return nil, fmt.Errorf("unsupported writer type: %s (supported: 'none', 'sqlite', 'clickhouse')", config.Writer.Type)
	}
}
