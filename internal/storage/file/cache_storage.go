// Package file provides the tabular on-disk cache store: one CSV file per
// (threshold-group, instrument) plus one JSON metadata record, mirroring the
// layout consumed by downstream tooling.
package file

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/metior/internal/interfaces"
	"github.com/ternarybob/metior/internal/models"
)

// entryMeta is the per-instrument metadata record stored next to the series.
type entryMeta struct {
	Instrument        string      `json:"instrument"`
	Group             string      `json:"group"`
	ConfigHash        string      `json:"config_hash"`
	LastDate          models.Date `json:"last_date"`
	SourceFingerprint string      `json:"source_fingerprint"`
	ComputedAt        time.Time   `json:"computed_at"`
	Rows              int         `json:"rows"`
}

// CacheStorage implements interfaces.CacheStore on the filesystem. Both the
// series file and the metadata record are written to a temporary file and
// renamed into place, so a concurrent reader never observes a half-written
// entry and a failed write leaves the previous entry intact.
type CacheStorage struct {
	root   string
	fields []string
	logger arbor.ILogger
}

// NewCacheStorage creates a file-backed cache store rooted at root. fields is
// the ordered indicator field list of the current configuration; it defines
// the CSV columns.
func NewCacheStorage(root string, fields []string, logger arbor.ILogger) (*CacheStorage, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", root, err)
	}
	return &CacheStorage{root: root, fields: fields, logger: logger}, nil
}

func (s *CacheStorage) seriesPath(group, instrument string) string {
	return filepath.Join(s.root, group, instrument+".csv")
}

func (s *CacheStorage) metaPath(group, instrument string) string {
	return filepath.Join(s.root, group, "meta", instrument+".json")
}

// Read loads and validates the entry for an instrument.
func (s *CacheStorage) Read(ctx context.Context, group, instrument string) (*models.CacheEntry, error) {
	metaBytes, err := os.ReadFile(s.metaPath(group, instrument))
	if os.IsNotExist(err) {
		return nil, interfaces.ErrCacheNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading metadata: %v", interfaces.ErrCacheCorrupt, err)
	}

	var meta entryMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("%w: parsing metadata: %v", interfaces.ErrCacheCorrupt, err)
	}

	points, err := s.readSeries(group, instrument)
	if err != nil {
		return nil, err
	}
	if len(points) != meta.Rows {
		return nil, fmt.Errorf("%w: series has %d rows, metadata records %d",
			interfaces.ErrCacheCorrupt, len(points), meta.Rows)
	}

	entry := &models.CacheEntry{
		Instrument:        instrument,
		Group:             group,
		ConfigHash:        meta.ConfigHash,
		Points:            points,
		LastDate:          meta.LastDate,
		SourceFingerprint: meta.SourceFingerprint,
		ComputedAt:        meta.ComputedAt,
	}
	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrCacheCorrupt, err)
	}
	return entry, nil
}

func (s *CacheStorage) readSeries(group, instrument string) ([]models.SeriesPoint, error) {
	f, err := os.Open(s.seriesPath(group, instrument))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: metadata present but series file missing", interfaces.ErrCacheCorrupt)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: opening series: %v", interfaces.ErrCacheCorrupt, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: reading series: %v", interfaces.ErrCacheCorrupt, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty series file", interfaces.ErrCacheCorrupt)
	}

	header := records[0]
	if len(header) < 2 || header[0] != "instrument" || header[1] != "date" {
		return nil, fmt.Errorf("%w: unexpected header %v", interfaces.ErrCacheCorrupt, header)
	}
	// The stored columns must exactly match the current field list; a schema
	// mismatch means the file was produced by another configuration.
	if len(header) != 2+len(s.fields) {
		return nil, fmt.Errorf("%w: series has %d value columns, configuration defines %d",
			interfaces.ErrCacheCorrupt, len(header)-2, len(s.fields))
	}
	for i, field := range s.fields {
		if header[2+i] != field {
			return nil, fmt.Errorf("%w: column %d is %q, want %q",
				interfaces.ErrCacheCorrupt, 2+i, header[2+i], field)
		}
	}

	points := make([]models.SeriesPoint, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("%w: ragged row", interfaces.ErrCacheCorrupt)
		}
		date, err := models.ParseDate(rec[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", interfaces.ErrCacheCorrupt, err)
		}

		vals := models.Values{}
		for i, field := range s.fields {
			cell := rec[2+i]
			if cell == "" {
				continue // absent value
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: field %s at %s: %v",
					interfaces.ErrCacheCorrupt, field, rec[1], err)
			}
			vals[field] = v
		}
		points = append(points, models.SeriesPoint{Date: date, Values: vals})
	}
	return points, nil
}

// Write atomically replaces the entry via write-to-temporary-then-rename.
func (s *CacheStorage) Write(ctx context.Context, entry *models.CacheEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid cache entry: %w", err)
	}

	metaDir := filepath.Join(s.root, entry.Group, "meta")
	if err := os.MkdirAll(metaDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache group directory: %w", err)
	}

	if err := s.writeSeries(entry); err != nil {
		return err
	}

	meta := entryMeta{
		Instrument:        entry.Instrument,
		Group:             entry.Group,
		ConfigHash:        entry.ConfigHash,
		LastDate:          entry.LastDate,
		SourceFingerprint: entry.SourceFingerprint,
		ComputedAt:        entry.ComputedAt,
		Rows:              len(entry.Points),
	}
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := atomicWrite(s.metaPath(entry.Group, entry.Instrument), metaBytes); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	s.logger.Debug().
		Str("instrument", entry.Instrument).
		Str("group", entry.Group).
		Str("last_date", entry.LastDate.String()).
		Int("points", len(entry.Points)).
		Msg("Cache entry written")
	return nil
}

func (s *CacheStorage) writeSeries(entry *models.CacheEntry) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	header := append([]string{"instrument", "date"}, s.fields...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to encode series header: %w", err)
	}

	row := make([]string, len(header))
	for _, p := range entry.Points {
		row[0] = entry.Instrument
		row[1] = p.Date.String()
		for i, field := range s.fields {
			if v, ok := p.Values[field]; ok {
				row[2+i] = strconv.FormatFloat(v, 'f', -1, 64)
			} else {
				row[2+i] = ""
			}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to encode series row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to encode series: %w", err)
	}

	if err := atomicWrite(s.seriesPath(entry.Group, entry.Instrument), buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write series: %w", err)
	}
	return nil
}

// Close implements interfaces.CacheStore; the file store holds no handles.
func (s *CacheStorage) Close() error { return nil }

// atomicWrite writes data to path via a temporary file in the same directory
// followed by a rename.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
