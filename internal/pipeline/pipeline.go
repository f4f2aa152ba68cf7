package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"speedtest-bot/internal/analytics"
	"speedtest-bot/internal/location"
	"speedtest-bot/internal/measure"
	"speedtest-bot/internal/metrics"
	"speedtest-bot/internal/report"
	"speedtest-bot/internal/storage"
)

const (
	MsgMeasurementFailed = "An error occurred while running the speed test."
	MsgStoreFailed       = "The speed test finished but its result could not be saved."
	MsgNoData            = "No speed test data has been recorded yet."
	MsgNoDataForLocation = "No speed test data for location: %s"
	MsgReadFailed        = "Something went wrong while reading the speed test log."
)

type Kind int

const (
	KindText Kind = iota
	KindDocument
	KindPhoto
)

// Outcome is what a caller gets back from every operation: a message, and
// for exports and charts the produced file. Err keeps the classified cause
// for logging and tests; it never needs to be shown to the caller.
type Outcome struct {
	Kind     Kind
	Text     string
	FileName string
	Data     []byte
	Err      error
}

type Measurer interface {
	Measure(ctx context.Context) (measure.Result, error)
}

type Paths struct {
	Export  string
	Parquet string
	Chart   string
}

// Pipeline resolves locations, runs measurements, records them and answers
// queries over the record log.
type Pipeline struct {
	resolver *location.Resolver
	measurer Measurer
	store    storage.Store
	metrics  *metrics.Exporter
	paths    Paths
	timeout  time.Duration
	logger   zerolog.Logger

	// Derived files live at fixed paths; one report is produced at a time so
	// the bytes returned belong to the request that wrote them.
	reportMu sync.Mutex
}

func New(resolver *location.Resolver, measurer Measurer, store storage.Store, m *metrics.Exporter, paths Paths, timeout time.Duration, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		resolver: resolver,
		measurer: measurer,
		store:    store,
		metrics:  m,
		paths:    paths,
		timeout:  timeout,
		logger:   logger.With().Str("component", "pipeline").Logger(),
	}
}

// ResolveLocation exposes the caller's effective location so handlers can
// announce it before the measurement starts.
func (p *Pipeline) ResolveLocation(callerID int64, text string) string {
	return p.resolver.Resolve(callerID, text)
}

// MeasureAndRecord resolves the caller's location tag, measures and appends
// the result.
func (p *Pipeline) MeasureAndRecord(ctx context.Context, callerID int64, locationText string) Outcome {
	return p.MeasureAt(ctx, p.resolver.Resolve(callerID, locationText))
}

// MeasureAt measures and records under an already resolved location tag.
func (p *Pipeline) MeasureAt(ctx context.Context, loc string) Outcome {
	log := p.logger.With().Str("run_id", uuid.NewString()).Str("location", loc).Logger()
	log.Info().Msg("speed test started")

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := p.measurer.Measure(ctx)
	if err != nil {
		if !errors.Is(err, measure.ErrMeasurementFailed) {
			err = fmt.Errorf("%w: %w", measure.ErrMeasurementFailed, err)
		}
		p.metrics.MeasurementFailed("provider")
		log.Error().Err(err).Msg("speed test failed")
		return Outcome{Text: MsgMeasurementFailed, Err: err}
	}
	took := time.Since(start)

	rec, err := p.store.Append(storage.Record{
		Location:      loc,
		RemoteAddress: res.RemoteAddress,
		LocalAddress:  res.LocalAddress,
		DownloadMbps:  res.DownloadMbps,
		UploadMbps:    res.UploadMbps,
		LatencyMs:     res.LatencyMs,
	})
	if err != nil {
		p.metrics.MeasurementFailed("store")
		log.Error().Err(err).Msg("failed to append record")
		return Outcome{Text: MsgStoreFailed, Err: err}
	}

	p.metrics.ObserveMeasurement(loc, rec.DownloadMbps, rec.UploadMbps, rec.LatencyMs, took)
	log.Info().Dur("took", took).Msg("speed test recorded")
	return Outcome{Text: FormatSummary(rec)}
}

// ExportFiltered writes the records for locationText (all records when
// empty) to the derived CSV export and returns it.
func (p *Pipeline) ExportFiltered(locationText string) Outcome {
	return p.export("csv", p.paths.Export, strings.TrimSpace(locationText), report.WriteCSV)
}

// ExportParquet is ExportFiltered with a Parquet file.
func (p *Pipeline) ExportParquet(locationText string) Outcome {
	return p.export("parquet", p.paths.Parquet, strings.TrimSpace(locationText), report.WriteParquet)
}

func (p *Pipeline) export(kind, path, loc string, write func(string, []storage.Record) error) Outcome {
	recs, out, ok := p.scan(kind, loc)
	if !ok {
		return out
	}

	p.reportMu.Lock()
	defer p.reportMu.Unlock()
	if err := write(path, recs); err != nil {
		return p.reportFailed(kind, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p.reportFailed(kind, err)
	}
	p.metrics.Report(kind, "ok")

	caption := fmt.Sprintf("%d records", len(recs))
	if loc != "" {
		caption = fmt.Sprintf("%d records for %s", len(recs), loc)
	}
	return Outcome{Kind: KindDocument, Text: caption, FileName: filepath.Base(path), Data: data}
}

// RenderChart draws every record as a grouped bar chart.
func (p *Pipeline) RenderChart() Outcome {
	recs, out, ok := p.scan("chart", "")
	if !ok {
		return out
	}

	p.reportMu.Lock()
	defer p.reportMu.Unlock()
	if err := report.RenderChart(p.paths.Chart, recs); err != nil {
		return p.reportFailed("chart", err)
	}
	data, err := os.ReadFile(p.paths.Chart)
	if err != nil {
		return p.reportFailed("chart", err)
	}
	p.metrics.Report("chart", "ok")
	return Outcome{
		Kind:     KindPhoto,
		Text:     fmt.Sprintf("Speed test history, %d measurements", len(recs)),
		FileName: filepath.Base(p.paths.Chart),
		Data:     data,
	}
}

// Stats summarizes the records for locationText, or all of them.
func (p *Pipeline) Stats(locationText string) Outcome {
	recs, out, ok := p.scan("stats", strings.TrimSpace(locationText))
	if !ok {
		return out
	}
	p.metrics.Report("stats", "ok")
	return Outcome{Text: analytics.Summarize(recs).Text()}
}

// scan reads the store and turns every empty or failed read into the
// outcome the caller should see.
func (p *Pipeline) scan(kind, loc string) ([]storage.Record, Outcome, bool) {
	recs, err := p.store.Scan(loc)
	switch {
	case errors.Is(err, storage.ErrNoStore):
		p.metrics.Report(kind, "no_data")
		return nil, Outcome{Text: MsgNoData, Err: err}, false
	case errors.Is(err, storage.ErrNoMatchingRecords):
		p.metrics.Report(kind, "no_match")
		return nil, Outcome{Text: fmt.Sprintf(MsgNoDataForLocation, loc), Err: err}, false
	case err != nil:
		p.metrics.Report(kind, "error")
		p.logger.Error().Err(err).Str("kind", kind).Msg("failed to scan store")
		return nil, Outcome{Text: MsgReadFailed, Err: err}, false
	case len(recs) == 0:
		p.metrics.Report(kind, "no_data")
		return nil, Outcome{Text: MsgNoData, Err: report.ErrNoData}, false
	}
	return recs, Outcome{}, true
}

func (p *Pipeline) reportFailed(kind string, err error) Outcome {
	p.metrics.Report(kind, "error")
	p.logger.Error().Err(err).Str("kind", kind).Msg("failed to build report")
	return Outcome{Text: MsgReadFailed, Err: err}
}

// FormatSummary renders a recorded measurement for the caller.
func FormatSummary(rec storage.Record) string {
	return fmt.Sprintf(`📊 Speed Test Result 📊
- Location: %s
- Public IP: %s
- Local IP: %s
- Download: %.2f Mbps
- Upload: %.2f Mbps
- Ping: %.2f ms`,
		rec.Location,
		rec.RemoteAddress,
		rec.LocalAddress,
		rec.DownloadMbps,
		rec.UploadMbps,
		rec.LatencyMs,
	)
}
