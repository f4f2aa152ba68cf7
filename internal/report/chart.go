package report

import (
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"speedtest-bot/internal/storage"
)

const labelLayout = "2006-01-02 15:04"

var (
	downloadColor = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	uploadColor   = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}
	pingColor     = color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff}
)

// RenderChart draws one group of download/upload/ping bars per record and
// writes the PNG to path, replacing the previous chart.
func RenderChart(path string, recs []storage.Record) error {
	if len(recs) == 0 {
		return ErrNoData
	}
	p, width, err := buildChart(recs)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(width, 6*vg.Inch, "png")
	if err != nil {
		return err
	}
	return writeAtomic(path, func(w io.Writer) error {
		_, err := wt.WriteTo(w)
		return err
	})
}

func buildChart(recs []storage.Record) (*plot.Plot, vg.Length, error) {
	n := len(recs)
	down := make(plotter.Values, n)
	up := make(plotter.Values, n)
	ping := make(plotter.Values, n)
	labels := make([]string, n)
	for i, rec := range recs {
		down[i] = rec.DownloadMbps
		up[i] = rec.UploadMbps
		ping[i] = rec.LatencyMs
		labels[i] = rec.Timestamp.Format(labelLayout)
	}

	p := plot.New()
	p.Title.Text = "Speed test history"
	p.Y.Label.Text = "Mbps / ms"
	p.Y.Min = 0

	// Groups get narrower as history grows; the image widens to compensate.
	barWidth := vg.Points(math.Max(3, math.Min(14, 480/float64(n*3))))
	series := []struct {
		name   string
		values plotter.Values
		color  color.Color
		offset vg.Length
	}{
		{"Download (Mbps)", down, downloadColor, -barWidth},
		{"Upload (Mbps)", up, uploadColor, 0},
		{"Ping (ms)", ping, pingColor, barWidth},
	}
	for _, s := range series {
		bars, err := plotter.NewBarChart(s.values, barWidth)
		if err != nil {
			return nil, 0, err
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = s.color
		bars.Offset = s.offset
		p.Add(bars)
		p.Legend.Add(s.name, bars)
	}
	p.Legend.Top = true
	p.Legend.Left = true

	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter

	width := vg.Length(math.Min(60, math.Max(8, 0.45*float64(n)))) * vg.Inch
	return p, width, nil
}
