package metrics

import (
	"time"

	"mercator-hq/marquee/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// AdmissionMetrics tracks the concurrency limiter.
//
// Metrics:
//   - admission_in_flight
//   - admission_wait_seconds{result}
type AdmissionMetrics struct {
	inFlight prometheus.Gauge
	wait     *prometheus.HistogramVec
}

// NewAdmissionMetrics creates and registers admission metrics.
func NewAdmissionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AdmissionMetrics {
	am := &AdmissionMetrics{
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "admission_in_flight",
				Help:      "Number of requests currently holding an upstream ticket",
			},
		),
		wait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "admission_wait_seconds",
				Help:      "Time spent waiting for an upstream ticket",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15},
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(am.inFlight, am.wait)
	return am
}

// UpdateInFlight sets the in-flight gauge.
func (am *AdmissionMetrics) UpdateInFlight(n int) {
	am.inFlight.Set(float64(n))
}

// RecordWait observes a wait, labelled admitted or timeout.
func (am *AdmissionMetrics) RecordWait(wait time.Duration, admitted bool) {
	result := "admitted"
	if !admitted {
		result = "timeout"
	}
	am.wait.WithLabelValues(result).Observe(wait.Seconds())
}
