package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	renders        *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	frameBytes     *prometheus.HistogramVec
	cacheEvents    *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	sessions       prometheus.Gauge
	framesPushed   prometheus.Counter
}

// New creates a recorder registered on reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		renders: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finchart_renders_total",
				Help: "Chart renders by output format and result",
			},
			[]string{"format", "result"},
		),
		renderDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finchart_render_duration_seconds",
				Help:    "Time spent drawing and encoding one chart",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"format"},
		),
		frameBytes: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finchart_frame_bytes",
				Help:    "Encoded chart size in bytes",
				Buckets: prometheus.ExponentialBuckets(1_000, 2, 12),
			},
			[]string{"format"},
		),
		cacheEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finchart_cache_events_total",
				Help: "Render cache lookups by result (hit, miss, lock_busy)",
			},
			[]string{"result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finchart_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finchart_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "finchart_stream_sessions",
			Help: "Open chart stream sessions",
		}),
		framesPushed: f.NewCounter(prometheus.CounterOpts{
			Name: "finchart_stream_frames_total",
			Help: "Frames pushed to stream sessions",
		}),
	}
}

// RecordRender records one render attempt. result is "ok", "cached" or "error".
func (r *Recorder) RecordRender(format, result string, d time.Duration, bytes int) {
	r.renders.WithLabelValues(format, result).Inc()
	if result == "ok" {
		r.renderDuration.WithLabelValues(format).Observe(d.Seconds())
		r.frameBytes.WithLabelValues(format).Observe(float64(bytes))
	}
}

// RecordCache records a cache lookup result.
func (r *Recorder) RecordCache(result string) {
	r.cacheEvents.WithLabelValues(result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) SetStreamSessions(n int) {
	r.sessions.Set(float64(n))
}

func (r *Recorder) RecordFramePushed() {
	r.framesPushed.Inc()
}
