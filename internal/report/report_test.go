package report

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
	"gonum.org/v1/plot/vg"

	"speedtest-bot/internal/storage"
)

func records(n int) []storage.Record {
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.Local)
	out := make([]storage.Record, n)
	for i := range out {
		out[i] = storage.Record{
			Timestamp:     base.Add(time.Duration(i) * 17 * time.Minute),
			Location:      []string{"Lab A", "Lab B"}[i%2],
			RemoteAddress: "speed.example.org:8080",
			LocalAddress:  "10.0.0.5",
			DownloadMbps:  90 + float64(i),
			UploadMbps:    40 + float64(i)/2,
			LatencyMs:     12.5,
		}
	}
	return out
}

func TestWriteCSV_HeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "filtered.csv")
	recs := records(3)
	require.NoError(t, WriteCSV(path, recs))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, strings.Join(storage.Header, ","), lines[0])
	assert.Equal(t, "2024-06-01 09:00:00,Lab A,speed.example.org:8080,10.0.0.5,90.00,40.00,12.50", lines[1])

	// A second export replaces the first in full.
	require.NoError(t, WriteCSV(path, recs[:1]))
	b, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(b), "\n"))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must be cleaned up")
}

func TestWriteParquet_ReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filtered.parquet")
	recs := records(4)
	require.NoError(t, WriteParquet(path, recs))

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(ParquetRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	require.Equal(t, len(recs), n)
	rows := make([]ParquetRow, n)
	require.NoError(t, pr.Read(&rows))
	assert.Equal(t, "Lab B", rows[1].Location)
	assert.Equal(t, "2024-06-01 09:17:00", rows[1].Date)
	assert.InDelta(t, 91.0, rows[1].DownloadMbps, 1e-9)
	assert.InDelta(t, 12.5, rows[3].PingMs, 1e-9)
}

func TestRenderChart_NoData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.png")
	err := RenderChart(path, nil)
	assert.ErrorIs(t, err, ErrNoData)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRenderChart_WritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.png")
	require.NoError(t, RenderChart(path, records(5)))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), img.Bounds().Dy())

	// Rendering again overwrites in place.
	require.NoError(t, RenderChart(path, records(1)))
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBuildChart_WidensWithHistory(t *testing.T) {
	p, width, err := buildChart(records(40))
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.Y.Min)
	assert.InDelta(t, float64(18*vg.Inch), float64(width), 1e-6)
}
