package metrics

import (
	"strconv"
	"time"

	"mercator-hq/marquee/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks client-facing requests.
//
// Metrics:
//   - requests_total{route,class,status,cache}
//   - request_duration_seconds{route,class}
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewRequestMetrics creates and registers request metrics.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of proxied requests",
			},
			[]string{"route", "class", "status", "cache"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "End-to-end request duration in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"route", "class"},
		),
	}

	registry.MustRegister(rm.requestsTotal, rm.requestDuration)
	return rm
}

// RecordRequest records one completed request.
func (rm *RequestMetrics) RecordRequest(route, class string, status int, cacheOutcome string, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(route, class, strconv.Itoa(status), cacheOutcome).Inc()
	rm.requestDuration.WithLabelValues(route, class).Observe(duration.Seconds())
}
