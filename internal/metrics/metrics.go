package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MaxLocationLabels bounds the distinct location label values; later
// locations are reported as OtherLocation.
const (
	MaxLocationLabels = 32
	OtherLocation     = "other"
)

// Exporter publishes measurement and report metrics.
// A nil *Exporter is valid and records nothing.
type Exporter struct {
	registry *prometheus.Registry

	mu        sync.Mutex
	locations map[string]struct{}

	throughputGauge   *prometheus.GaugeVec
	latencyGauge      *prometheus.GaugeVec
	latencyHistogram  *prometheus.HistogramVec
	measureCounter    *prometheus.CounterVec
	durationHistogram prometheus.Histogram
	reportCounter     *prometheus.CounterVec
}

func New() *Exporter {
	e := &Exporter{
		registry:  prometheus.NewRegistry(),
		locations: make(map[string]struct{}),
		throughputGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "speedtest_last_throughput_mbps",
				Help: "Throughput of the latest measurement in Mbps",
			},
			[]string{"location", "direction"},
		),
		latencyGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "speedtest_last_latency_ms",
				Help: "Latency of the latest measurement in milliseconds",
			},
			[]string{"location"},
		),
		latencyHistogram: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "speedtest_latency_ms",
				Help:    "Measured latency in milliseconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1ms to ~2s
			},
			[]string{"location"},
		),
		measureCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "speedtest_measurements_total",
				Help: "Total number of measurements by outcome",
			},
			[]string{"status"},
		),
		durationHistogram: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "speedtest_measurement_duration_seconds",
				Help:    "Wall time of a full measurement",
				Buckets: prometheus.LinearBuckets(5, 5, 12),
			},
		),
		reportCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "speedtest_reports_total",
				Help: "Exports and charts served, by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
	}

	e.registry.MustRegister(
		e.throughputGauge,
		e.latencyGauge,
		e.latencyHistogram,
		e.measureCounter,
		e.durationHistogram,
		e.reportCounter,
	)
	return e
}

// ObserveMeasurement records a successful measurement.
func (e *Exporter) ObserveMeasurement(location string, downloadMbps, uploadMbps, latencyMs float64, took time.Duration) {
	if e == nil {
		return
	}
	location = e.locationLabel(location)
	e.throughputGauge.WithLabelValues(location, "download").Set(downloadMbps)
	e.throughputGauge.WithLabelValues(location, "upload").Set(uploadMbps)
	e.latencyGauge.WithLabelValues(location).Set(latencyMs)
	e.latencyHistogram.WithLabelValues(location).Observe(latencyMs)
	e.measureCounter.WithLabelValues("ok").Inc()
	e.durationHistogram.Observe(took.Seconds())
}

// locationLabel admits the first MaxLocationLabels locations as-is.
func (e *Exporter) locationLabel(location string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.locations[location]; ok {
		return location
	}
	if len(e.locations) >= MaxLocationLabels {
		return OtherLocation
	}
	e.locations[location] = struct{}{}
	return location
}

// MeasurementFailed counts a measurement that produced no record.
func (e *Exporter) MeasurementFailed(stage string) {
	if e == nil {
		return
	}
	e.measureCounter.WithLabelValues(stage).Inc()
}

// Report counts an export or chart request.
func (e *Exporter) Report(kind, outcome string) {
	if e == nil {
		return
	}
	e.reportCounter.WithLabelValues(kind, outcome).Inc()
}

func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (e *Exporter) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
