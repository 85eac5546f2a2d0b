package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/metior/internal/common"
	"github.com/ternarybob/metior/internal/interfaces"
	"github.com/ternarybob/metior/internal/models"
)

var testFields = []string{"wma_5", "obv"}

func day(n int) models.Date {
	return models.NewDate(2025, time.June, 1).AddDays(n)
}

func newStore(t *testing.T) *CacheStorage {
	t.Helper()
	store, err := NewCacheStorage(t.TempDir(), testFields, common.GetLogger())
	require.NoError(t, err)
	return store
}

func sampleEntry() *models.CacheEntry {
	points := []models.SeriesPoint{
		{Date: day(0), Values: models.Values{"obv": 0}},
		{Date: day(1), Values: models.Values{"obv": 150}},
		{Date: day(4), Values: models.Values{"wma_5": 10.123456, "obv": -30}},
	}
	return models.NewCacheEntry("510050", "3000w", "abc123", points, "fp-1")
}

func TestReadMissingEntry(t *testing.T) {
	store := newStore(t)
	_, err := store.Read(context.Background(), "3000w", "510050")
	assert.ErrorIs(t, err, interfaces.ErrCacheNotFound)
}

func TestWriteReadRoundTrip(t *testing.T) {
	store := newStore(t)
	entry := sampleEntry()
	require.NoError(t, store.Write(context.Background(), entry))

	got, err := store.Read(context.Background(), "3000w", "510050")
	require.NoError(t, err)

	assert.Equal(t, entry.Instrument, got.Instrument)
	assert.Equal(t, entry.Group, got.Group)
	assert.Equal(t, entry.ConfigHash, got.ConfigHash)
	assert.Equal(t, entry.LastDate, got.LastDate)
	assert.Equal(t, entry.SourceFingerprint, got.SourceFingerprint)

	require.Len(t, got.Points, len(entry.Points))
	for i, p := range entry.Points {
		assert.Equal(t, p.Date, got.Points[i].Date)
		require.Equal(t, len(p.Values), len(got.Points[i].Values))
		for field, v := range p.Values {
			assert.Equal(t, v, got.Points[i].Values[field], "field %s", field)
		}
	}
}

func TestWriteReplacesPreviousEntry(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, sampleEntry()))

	updated := sampleEntry()
	updated.Points = append(updated.Points, models.SeriesPoint{
		Date:   day(5),
		Values: models.Values{"wma_5": 10.2, "obv": 70},
	})
	updated.LastDate = day(5)
	require.NoError(t, store.Write(ctx, updated))

	got, err := store.Read(ctx, "3000w", "510050")
	require.NoError(t, err)
	assert.Len(t, got.Points, 4)
	assert.Equal(t, day(5), got.LastDate)
}

func TestWriteRejectsInvalidEntry(t *testing.T) {
	store := newStore(t)
	entry := sampleEntry()
	entry.LastDate = day(9)
	assert.Error(t, store.Write(context.Background(), entry))
}

func TestReadCorruptSeries(t *testing.T) {
	root := t.TempDir()
	store, err := NewCacheStorage(root, testFields, common.GetLogger())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, sampleEntry()))

	// Truncate the series while the metadata still records three rows.
	seriesPath := filepath.Join(root, "3000w", "510050.csv")
	data, err := os.ReadFile(seriesPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(seriesPath, data[:len(data)/2], 0644))

	_, err = store.Read(ctx, "3000w", "510050")
	assert.ErrorIs(t, err, interfaces.ErrCacheCorrupt)
}

func TestReadSchemaMismatch(t *testing.T) {
	root := t.TempDir()
	store, err := NewCacheStorage(root, testFields, common.GetLogger())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, sampleEntry()))

	// A store configured with different fields must refuse the file.
	other, err := NewCacheStorage(root, []string{"ema_12", "obv"}, common.GetLogger())
	require.NoError(t, err)
	_, err = other.Read(ctx, "3000w", "510050")
	assert.ErrorIs(t, err, interfaces.ErrCacheCorrupt)
}

func TestWriteLeavesNoTemporaryFiles(t *testing.T) {
	root := t.TempDir()
	store, err := NewCacheStorage(root, testFields, common.GetLogger())
	require.NoError(t, err)
	require.NoError(t, store.Write(context.Background(), sampleEntry()))

	var leftovers []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && len(d.Name()) > 4 && d.Name()[:5] == ".tmp-" {
			leftovers = append(leftovers, path)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}
