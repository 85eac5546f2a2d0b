package staleness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/metior/internal/interfaces"
	"github.com/ternarybob/metior/internal/models"
)

const configHash = "abc123"

func day(n int) models.Date {
	return models.NewDate(2025, time.June, 1).AddDays(n)
}

func validEntry(lastDay int) *models.CacheEntry {
	points := make([]models.SeriesPoint, lastDay+1)
	for i := range points {
		points[i] = models.SeriesPoint{Date: day(i), Values: models.Values{}}
	}
	return models.NewCacheEntry("510050", "3000w", configHash, points, "fp-1")
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		entry  *models.CacheEntry
		src    interfaces.SourceInfo
		hash   string
		want   Action
		reason string
	}{
		{
			name:   "no cache entry",
			entry:  nil,
			src:    interfaces.SourceInfo{LatestDate: day(5), Fingerprint: "fp-1"},
			hash:   configHash,
			want:   ActionRebuild,
			reason: "no cache entry",
		},
		{
			name:  "configuration changed",
			entry: validEntry(5),
			src:   interfaces.SourceInfo{LatestDate: day(5), Fingerprint: "fp-1"},
			hash:  "different",
			want:  ActionRebuild,
		},
		{
			name:  "source behind cache",
			entry: validEntry(5),
			src:   interfaces.SourceInfo{LatestDate: day(3), Fingerprint: "fp-1"},
			hash:  configHash,
			want:  ActionRebuild,
		},
		{
			name:  "same day same fingerprint",
			entry: validEntry(5),
			src:   interfaces.SourceInfo{LatestDate: day(5), Fingerprint: "fp-1"},
			hash:  configHash,
			want:  ActionReuse,
		},
		{
			name:  "same day fingerprint changed",
			entry: validEntry(5),
			src:   interfaces.SourceInfo{LatestDate: day(5), Fingerprint: "fp-2"},
			hash:  configHash,
			want:  ActionRebuild,
		},
		{
			name:  "source ahead of cache",
			entry: validEntry(5),
			src:   interfaces.SourceInfo{LatestDate: day(8), Fingerprint: "fp-2"},
			hash:  configHash,
			want:  ActionIncremental,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.entry, tt.src, tt.hash)
			assert.Equal(t, tt.want, got.Action)
			assert.NotEmpty(t, got.Reason)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, got.Reason)
			}
		})
	}
}

func TestEvaluateInvalidEntryRebuilds(t *testing.T) {
	entry := validEntry(5)
	entry.LastDate = day(9) // breaks the tail invariant

	got := Evaluate(entry, interfaces.SourceInfo{LatestDate: day(5), Fingerprint: "fp-1"}, configHash)
	assert.Equal(t, ActionRebuild, got.Action)
	assert.Contains(t, got.Reason, "validation")
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "reuse", ActionReuse.String())
	assert.Equal(t, "incremental", ActionIncremental.String())
	assert.Equal(t, "rebuild", ActionRebuild.String())
}
