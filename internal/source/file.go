// Package source provides readers for per-instrument daily price history,
// either from a directory of CSV files or from an end-of-day HTTP API.
package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/metior/internal/interfaces"
	"github.com/ternarybob/metior/internal/models"
)

// FileReader reads observations from `<dir>/<instrument>.csv`. The expected
// columns are date,open,high,low,close,volume; the date column accepts both
// ISO and compact 8-digit forms. The source fingerprint is derived from the
// file size and modification time, so an in-place rewrite of history is
// detected even when the latest date is unchanged.
type FileReader struct {
	dir    string
	logger arbor.ILogger
}

// NewFileReader creates a reader over a directory of per-instrument CSVs.
func NewFileReader(dir string, logger arbor.ILogger) (*FileReader, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("source directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path %s is not a directory", dir)
	}
	return &FileReader{dir: dir, logger: logger}, nil
}

func (r *FileReader) path(instrument string) string {
	return filepath.Join(r.dir, instrument+".csv")
}

func fileFingerprint(info os.FileInfo) string {
	return fmt.Sprintf("%d:%d", info.Size(), info.ModTime().UnixNano())
}

// Read loads the full history for an instrument.
func (r *FileReader) Read(ctx context.Context, instrument string) ([]models.Observation, interfaces.SourceInfo, error) {
	path := r.path(instrument)
	stat, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, interfaces.SourceInfo{}, fmt.Errorf("%w: no source file for %s", interfaces.ErrSourceUnavailable, instrument)
	}
	if err != nil {
		return nil, interfaces.SourceInfo{}, fmt.Errorf("%w: %v", interfaces.ErrSourceUnavailable, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, interfaces.SourceInfo{}, fmt.Errorf("%w: %v", interfaces.ErrSourceUnavailable, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, interfaces.SourceInfo{}, fmt.Errorf("failed to parse source for %s: %w", instrument, err)
	}
	if len(records) == 0 {
		return nil, interfaces.SourceInfo{}, fmt.Errorf("source file for %s is empty", instrument)
	}

	cols, err := columnIndexes(records[0])
	if err != nil {
		return nil, interfaces.SourceInfo{}, fmt.Errorf("source file for %s: %w", instrument, err)
	}

	obs := make([]models.Observation, 0, len(records)-1)
	for _, rec := range records[1:] {
		o, err := parseRow(rec, cols)
		if err != nil {
			return nil, interfaces.SourceInfo{}, fmt.Errorf("source file for %s: %w", instrument, err)
		}
		obs = append(obs, o)
	}

	obs = models.NormalizeObservations(obs)
	if err := models.ValidateObservations(obs); err != nil {
		return nil, interfaces.SourceInfo{}, fmt.Errorf("source file for %s: %w", instrument, err)
	}

	info := interfaces.SourceInfo{
		LatestDate:  models.LatestDate(obs),
		Fingerprint: fileFingerprint(stat),
		Rows:        len(obs),
	}

	r.logger.Debug().
		Str("instrument", instrument).
		Int("rows", info.Rows).
		Str("latest", info.LatestDate.String()).
		Msg("Source file read")
	return obs, info, nil
}

// Info returns source metadata without building the observation series: the
// fingerprint comes from the file stat and only the date column is parsed.
// Rows is the raw data row count, before de-duplication.
func (r *FileReader) Info(ctx context.Context, instrument string) (interfaces.SourceInfo, error) {
	path := r.path(instrument)
	stat, err := os.Stat(path)
	if os.IsNotExist(err) {
		return interfaces.SourceInfo{}, fmt.Errorf("%w: no source file for %s", interfaces.ErrSourceUnavailable, instrument)
	}
	if err != nil {
		return interfaces.SourceInfo{}, fmt.Errorf("%w: %v", interfaces.ErrSourceUnavailable, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return interfaces.SourceInfo{}, fmt.Errorf("%w: %v", interfaces.ErrSourceUnavailable, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return interfaces.SourceInfo{}, fmt.Errorf("source file for %s is empty", instrument)
	}
	if err != nil {
		return interfaces.SourceInfo{}, fmt.Errorf("failed to parse source for %s: %w", instrument, err)
	}
	cols, err := columnIndexes(header)
	if err != nil {
		return interfaces.SourceInfo{}, fmt.Errorf("source file for %s: %w", instrument, err)
	}

	info := interfaces.SourceInfo{Fingerprint: fileFingerprint(stat)}
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return interfaces.SourceInfo{}, fmt.Errorf("failed to parse source for %s: %w", instrument, err)
		}
		date, err := models.ParseDate(rec[cols.date])
		if err != nil {
			return interfaces.SourceInfo{}, fmt.Errorf("source file for %s: %w", instrument, err)
		}
		if date > info.LatestDate {
			info.LatestDate = date
		}
		info.Rows++
	}
	return info, nil
}

type columns struct {
	date, open, high, low, close, volume int
}

func columnIndexes(header []string) (columns, error) {
	idx := map[string]int{}
	for i, name := range header {
		idx[name] = i
	}
	cols := columns{}
	required := []struct {
		name string
		dst  *int
	}{
		{"date", &cols.date},
		{"open", &cols.open},
		{"high", &cols.high},
		{"low", &cols.low},
		{"close", &cols.close},
		{"volume", &cols.volume},
	}
	for _, req := range required {
		i, ok := idx[req.name]
		if !ok {
			return columns{}, fmt.Errorf("missing column %q", req.name)
		}
		*req.dst = i
	}
	return cols, nil
}

func parseRow(rec []string, cols columns) (models.Observation, error) {
	date, err := models.ParseDate(rec[cols.date])
	if err != nil {
		return models.Observation{}, err
	}
	o := models.Observation{Date: date}
	fields := []struct {
		name string
		col  int
		dst  *float64
	}{
		{"open", cols.open, &o.Open},
		{"high", cols.high, &o.High},
		{"low", cols.low, &o.Low},
		{"close", cols.close, &o.Close},
		{"volume", cols.volume, &o.Volume},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(rec[f.col], 64)
		if err != nil {
			return models.Observation{}, fmt.Errorf("bad %s value at %s: %w", f.name, rec[cols.date], err)
		}
		*f.dst = v
	}
	return o, nil
}
