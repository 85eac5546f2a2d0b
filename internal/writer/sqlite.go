package writer

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	_ "modernc.org/sqlite"

	"github.com/ternarybob/metior/internal/models"
)

// SQLiteWriter persists indicator series to a SQLite database in a narrow
// (group, instrument, date, field, value) layout. Rewrites of an instrument
// replace its prior rows for the group.
type SQLiteWriter struct {
	db     *sql.DB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewSQLiteWriter opens (or creates) the SQLite database and runs migrations.
func NewSQLiteWriter(dbPath string, logger arbor.ILogger) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so readers are not blocked while a batch run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	w := &SQLiteWriter{db: db, logger: logger}
	if err := w.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("SQLite writer opened")
	return w, nil
}

func (w *SQLiteWriter) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS indicator_values (
			grp        TEXT NOT NULL,
			instrument TEXT NOT NULL,
			date       TEXT NOT NULL,
			field      TEXT NOT NULL,
			value      REAL NOT NULL,
			written_at INTEGER NOT NULL,
			PRIMARY KEY (grp, instrument, date, field)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_indicator_instrument ON indicator_values(grp, instrument)`,
	}
	for _, s := range stmts {
		if _, err := w.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// Write replaces the stored series for an instrument within a group.
func (w *SQLiteWriter) Write(ctx context.Context, group, instrument string, fields []string, points []models.SeriesPoint) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM indicator_values WHERE grp = ? AND instrument = ?`,
		group, instrument); err != nil {
		return fmt.Errorf("clear prior rows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO indicator_values (grp, instrument, date, field, value, written_at)
		 VALUES (?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	rows := 0
	for _, p := range points {
		for _, field := range fields {
			v, ok := p.Values[field]
			if !ok {
				continue
			}
			if _, err := stmt.ExecContext(ctx, group, instrument, p.Date.String(), field, v, now); err != nil {
				return fmt.Errorf("insert %s at %s: %w", field, p.Date.String(), err)
			}
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	w.logger.Debug().
		Str("instrument", instrument).
		Str("group", group).
		Int("rows", rows).
		Msg("Series written to SQLite")
	return nil
}

func (w *SQLiteWriter) Close() error {
	return w.db.Close()
}
