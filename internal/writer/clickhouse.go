package writer

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/metior/internal/common"
	"github.com/ternarybob/metior/internal/models"
)

// ClickHouseWriter streams indicator series to a ClickHouse table via batch
// inserts. The target table is expected to be a ReplacingMergeTree keyed on
// (grp, instrument, date, field), so re-running a group deduplicates on merge.
type ClickHouseWriter struct {
	conn   driver.Conn
	table  string
	logger arbor.ILogger
}

// NewClickHouseWriter connects to ClickHouse and verifies the connection.
func NewClickHouseWriter(cfg *common.ClickHouseConfig, logger arbor.ILogger) (*ClickHouseWriter, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ClickHouse ping failed: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Str("table", cfg.Table).Msg("ClickHouse writer connected")
	return &ClickHouseWriter{conn: conn, table: cfg.Table, logger: logger}, nil
}

// Write appends the series for an instrument as one batch.
func (w *ClickHouseWriter) Write(ctx context.Context, group, instrument string, fields []string, points []models.SeriesPoint) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (grp, instrument, date, field, value, written_at)`, w.table)
	batch, err := w.conn.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	now := time.Now()
	rows := 0
	for _, p := range points {
		date := p.Date.Time()
		for _, field := range fields {
			v, ok := p.Values[field]
			if !ok {
				continue
			}
			if err := batch.Append(group, instrument, date, field, v, now); err != nil {
				return fmt.Errorf("failed to append to batch: %w", err)
			}
			rows++
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	w.logger.Debug().
		Str("instrument", instrument).
		Str("group", group).
		Int("rows", rows).
		Msg("Series written to ClickHouse")
	return nil
}

func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}
