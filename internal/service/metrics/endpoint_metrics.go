package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Endpoint tracks latency and failures of the chart API endpoints.
type Endpoint struct {
	Latency *prometheus.HistogramVec
	Errors  *prometheus.CounterVec
	Limited *prometheus.CounterVec
}

func NewEndpoint(reg prometheus.Registerer) *Endpoint {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Endpoint{
		Latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "finchart",
				Subsystem: "api",
				Name:      "latency_seconds",
				Help:      "Latency of chart API endpoints",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		Errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "finchart",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Errors by chart API endpoint and kind",
			},
			[]string{"endpoint", "kind"},
		),
		Limited: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "finchart",
				Subsystem: "api",
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"endpoint"},
		),
	}
}

// Observe records the latency since start.
func (e *Endpoint) Observe(endpoint string, start time.Time) {
	e.Latency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (e *Endpoint) Fail(endpoint, kind string) {
	e.Errors.WithLabelValues(endpoint, kind).Inc()
}
