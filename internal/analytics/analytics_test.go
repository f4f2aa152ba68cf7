package analytics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speedtest-bot/internal/storage"
)

func rec(loc string, ts time.Time, down, up, ping float64) storage.Record {
	return storage.Record{Timestamp: ts, Location: loc, RemoteAddress: "h", LocalAddress: "l",
		DownloadMbps: down, UploadMbps: up, LatencyMs: ping}
}

func TestSummarize_GroupsByLocation(t *testing.T) {
	base := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	recs := []storage.Record{
		rec("Lab B", base, 100, 50, 10),
		rec("Lab A", base.Add(time.Hour), 20, 10, 40),
		rec("Lab B", base.Add(48*time.Hour), 50, 30, 30),
	}

	s := Summarize(recs)
	assert.Equal(t, 3, s.Total)
	require.Len(t, s.Locations, 2)

	a, b := s.Locations[0], s.Locations[1]
	assert.Equal(t, "Lab A", a.Location)
	assert.Equal(t, 1, a.Count)

	assert.Equal(t, "Lab B", b.Location)
	assert.Equal(t, 2, b.Count)
	assert.InDelta(t, 75, b.AvgDownload, 1e-9)
	assert.InDelta(t, 40, b.AvgUpload, 1e-9)
	assert.InDelta(t, 20, b.AvgLatency, 1e-9)
	assert.Equal(t, 100.0, b.BestDownload)
	assert.Equal(t, 30.0, b.WorstLatency)
	assert.Equal(t, base, b.First)
	assert.Equal(t, base.Add(48*time.Hour), b.Last)
}

func TestSummary_Text(t *testing.T) {
	base := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	txt := Summarize([]storage.Record{rec("Lab A", base, 12.346, 6, 7)}).Text()
	assert.True(t, strings.Contains(txt, "1 measurements"))
	assert.Contains(t, txt, "📍 Lab A: 1 tests, 2024-02-01 – 2024-02-01")
	assert.Contains(t, txt, "Avg download: 12.35 Mbps")
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0, s.Total)
	assert.Empty(t, s.Locations)
}
