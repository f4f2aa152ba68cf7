package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExporter_ObserveMeasurement(t *testing.T) {
	e := New()
	e.ObserveMeasurement("Lab A", 95.5, 40.25, 12, 20*time.Second)
	e.ObserveMeasurement("Lab A", 80, 30, 14, 25*time.Second)
	e.MeasurementFailed("provider")

	assert.Equal(t, 80.0, testutil.ToFloat64(e.throughputGauge.WithLabelValues("Lab A", "download")))
	assert.Equal(t, 30.0, testutil.ToFloat64(e.throughputGauge.WithLabelValues("Lab A", "upload")))
	assert.Equal(t, 14.0, testutil.ToFloat64(e.latencyGauge.WithLabelValues("Lab A")))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.measureCounter.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.measureCounter.WithLabelValues("provider")))
}

func TestExporter_NilIsNoop(t *testing.T) {
	var e *Exporter
	assert.NotPanics(t, func() {
		e.ObserveMeasurement("x", 1, 1, 1, time.Second)
		e.MeasurementFailed("store")
		e.Report("chart", "ok")
	})
}

func TestExporter_Handler(t *testing.T) {
	e := New()
	e.Report("csv", "no_data")

	rr := httptest.NewRecorder()
	e.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, `speedtest_reports_total{kind="csv",outcome="no_data"} 1`), body)
}

func TestExporter_LocationLabelsAreCapped(t *testing.T) {
	e := New()
	for i := 0; i < MaxLocationLabels+10; i++ {
		e.ObserveMeasurement(fmt.Sprintf("site-%d", i), 1, 1, 1, time.Second)
	}
	e.ObserveMeasurement("site-0", 5, 5, 5, time.Second)

	assert.Equal(t, MaxLocationLabels+1, testutil.CollectAndCount(e.latencyGauge))
	assert.Equal(t, 5.0, testutil.ToFloat64(e.latencyGauge.WithLabelValues("site-0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.latencyGauge.WithLabelValues(OtherLocation)))
}
