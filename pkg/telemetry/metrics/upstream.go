package metrics

import (
	"time"

	"mercator-hq/marquee/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// UpstreamMetrics tracks attempts against origins.
//
// Metrics:
//   - upstream_attempts_total{origin,outcome}
//   - upstream_attempt_duration_seconds{origin}
//   - failovers_total{route}
type UpstreamMetrics struct {
	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	failoversTotal  *prometheus.CounterVec
}

// NewUpstreamMetrics creates and registers upstream metrics.
func NewUpstreamMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *UpstreamMetrics {
	um := &UpstreamMetrics{
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_attempts_total",
				Help:      "Total number of upstream attempts by outcome",
			},
			[]string{"origin", "outcome"},
		),
		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_attempt_duration_seconds",
				Help:      "Duration of a single upstream attempt in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"origin"},
		),
		failoversTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "failovers_total",
				Help:      "Total number of requests served past their first candidate",
			},
			[]string{"route"},
		),
	}

	registry.MustRegister(um.attemptsTotal, um.attemptDuration, um.failoversTotal)
	return um
}

// RecordAttempt records one origin attempt.
func (um *UpstreamMetrics) RecordAttempt(origin, outcome string, duration time.Duration) {
	um.attemptsTotal.WithLabelValues(origin, outcome).Inc()
	um.attemptDuration.WithLabelValues(origin).Observe(duration.Seconds())
}

// RecordFailover increments the failover counter.
func (um *UpstreamMetrics) RecordFailover(route string) {
	um.failoversTotal.WithLabelValues(route).Inc()
}
