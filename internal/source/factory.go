package source

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/metior/internal/common"
	"github.com/ternarybob/metior/internal/interfaces"
)

// NewReader creates a source reader based on config.
func NewReader(logger arbor.ILogger, config *common.Config) (interfaces.SourceReader, error) {
	switch config.Source.Type {
	case "file", "":
		return NewFileReader(config.Source.Dir, logger)
	case "api":
		var opts []APIReaderOption
		if config.Source.RateLimit > 0 {
			opts = append(opts, WithRateLimit(config.Source.RateLimit))
		}
		return NewAPIReader(config.Source.BaseURL, config.Source.APIKey, logger, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s (supported: 'file', 'api')", config.Source.Type)
	}
}
