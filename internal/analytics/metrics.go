package analytics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for report computations.
type Metrics struct {
	duration *prometheus.HistogramVec
	results  *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the report metrics. A nil registerer uses the default
// Prometheus registerer, registered once per process.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "olaria_report_duration_seconds",
		Help:    "Time spent loading and aggregating a report.",
		Buckets: prometheus.DefBuckets,
	}, []string{"report"})
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "olaria_report_total",
		Help: "Report computations partitioned by report and outcome.",
	}, []string{"report", "outcome"})
	registerer.MustRegister(duration, results)
	return &Metrics{duration: duration, results: results}
}

// Observe records one computation and hands err back untouched.
func (m *Metrics) Observe(report string, start time.Time, err error) error {
	if m == nil {
		return err
	}
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrValidation):
		outcome = "invalid"
	default:
		outcome = "failure"
	}
	m.results.WithLabelValues(report, outcome).Inc()
	m.duration.WithLabelValues(report).Observe(time.Since(start).Seconds())
	return err
}
