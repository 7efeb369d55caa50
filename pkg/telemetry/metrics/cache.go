package metrics

import (
	"mercator-hq/marquee/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics tracks response cache behaviour per store.
//
// Metrics:
//   - cache_hits_total{cache}
//   - cache_misses_total{cache}
//   - cache_entries{cache}
//   - cache_evictions_total{cache,reason}
type CacheMetrics struct {
	hitsTotal      *prometheus.CounterVec
	missesTotal    *prometheus.CounterVec
	entries        *prometheus.GaugeVec
	evictionsTotal *prometheus.CounterVec
}

// NewCacheMetrics creates and registers cache metrics.
func NewCacheMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CacheMetrics {
	cm := &CacheMetrics{
		hitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"cache"},
		),
		missesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"cache"},
		),
		entries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_entries",
				Help:      "Current number of entries in cache",
			},
			[]string{"cache"},
		),
		evictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_evictions_total",
				Help:      "Total number of cache evictions by reason",
			},
			[]string{"cache", "reason"},
		),
	}

	registry.MustRegister(cm.hitsTotal, cm.missesTotal, cm.entries, cm.evictionsTotal)
	return cm
}

// RecordHit increments the hit counter.
//
// Parameters:
//   - cacheName: Name of the store (e.g., "memory", "durable")
//
// Example:
//
//	cm.RecordHit("memory")
func (cm *CacheMetrics) RecordHit(cacheName string) {
	cm.hitsTotal.WithLabelValues(cacheName).Inc()
}

// RecordMiss increments the miss counter.
func (cm *CacheMetrics) RecordMiss(cacheName string) {
	cm.missesTotal.WithLabelValues(cacheName).Inc()
}

// RecordEviction increments the eviction counter.
func (cm *CacheMetrics) RecordEviction(cacheName, reason string) {
	cm.evictionsTotal.WithLabelValues(cacheName, reason).Inc()
}

// UpdateSize sets the entry gauge.
func (cm *CacheMetrics) UpdateSize(cacheName string, size int) {
	cm.entries.WithLabelValues(cacheName).Set(float64(size))
}
