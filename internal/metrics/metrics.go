package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Capture counters
	FramesFetched  atomic.Uint64
	FetchErrors    atomic.Uint64
	FramesDropped  atomic.Uint64
	MeasurementsOK atomic.Uint64
	MeasureMisses  atomic.Uint64 // Cycles where no segment was found
	MeasureErrors  atomic.Uint64

	// Latest measurement
	WidthMicroMM atomic.Uint64 // Physical width in micrometres (gauges are integers here)
	PixelLength  atomic.Uint64

	// Monitoring / actuation
	AlertCycles     atomic.Uint64 // Below-threshold measurement cycles
	InflateRequests atomic.Uint64
	InflateErrors   atomic.Uint64

	// Notification dispatch
	NotificationsSent    atomic.Uint64
	NotificationsDropped atomic.Uint64

	// Latency tracking
	FetchLatencyMs   atomic.Uint64
	MeasureLatencyMs atomic.Uint64

	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	gauge := func(name, help string, load func() uint64) {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: name, Help: help},
			func() float64 { return float64(load()) },
		))
	}

	gauge("tapemon_frames_fetched_total", "Total frames fetched from the camera", m.FramesFetched.Load)
	gauge("tapemon_fetch_errors_total", "Total camera fetch errors", m.FetchErrors.Load)
	gauge("tapemon_frames_dropped_total", "Total frames dropped before measurement", m.FramesDropped.Load)
	gauge("tapemon_measurements_ok_total", "Total successful width measurements", m.MeasurementsOK.Load)
	gauge("tapemon_measurement_misses_total", "Total cycles with no detectable segment", m.MeasureMisses.Load)
	gauge("tapemon_measurement_errors_total", "Total measurement pipeline errors", m.MeasureErrors.Load)

	gauge("tapemon_width_micrometres", "Latest measured width in micrometres", m.WidthMicroMM.Load)
	gauge("tapemon_pixel_length", "Latest measured segment length in pixels", m.PixelLength.Load)

	gauge("tapemon_alert_cycles_total", "Total below-threshold measurement cycles", m.AlertCycles.Load)
	gauge("tapemon_inflate_requests_total", "Total corrective inflate requests", m.InflateRequests.Load)
	gauge("tapemon_inflate_errors_total", "Total failed inflate requests", m.InflateErrors.Load)

	gauge("tapemon_notifications_sent_total", "Total webhook notifications transmitted", m.NotificationsSent.Load)
	gauge("tapemon_notifications_dropped_total", "Total notifications dropped by the rate limiter", m.NotificationsDropped.Load)

	gauge("tapemon_fetch_latency_ms", "Latest camera fetch latency in milliseconds", m.FetchLatencyMs.Load)
	gauge("tapemon_measure_latency_ms", "Latest measurement latency in milliseconds", m.MeasureLatencyMs.Load)
}

// RecordWidth stores the latest measurement values
func (m *Metrics) RecordWidth(widthMM float64, pixels int) {
	if widthMM > 0 {
		m.WidthMicroMM.Store(uint64(widthMM * 1000))
	}
	m.PixelLength.Store(uint64(pixels))
}

// UpdateFetchLatency stores the latest camera round-trip time
func (m *Metrics) UpdateFetchLatency(d time.Duration) {
	m.FetchLatencyMs.Store(uint64(d.Milliseconds()))
}

// UpdateMeasureLatency stores the latest pipeline processing time
func (m *Metrics) UpdateMeasureLatency(d time.Duration) {
	m.MeasureLatencyMs.Store(uint64(d.Milliseconds()))
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server
func (m *Metrics) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
