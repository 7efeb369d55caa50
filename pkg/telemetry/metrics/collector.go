package metrics

import (
	"time"

	"mercator-hq/marquee/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector records all edge metrics into one registry.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requestMetrics   *RequestMetrics
	cacheMetrics     *CacheMetrics
	upstreamMetrics  *UpstreamMetrics
	admissionMetrics *AdmissionMetrics
}

// NewCollector creates a Collector. If registry is nil a fresh registry is
// created with the Go runtime and process collectors attached.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = append([]float64(nil), config.DefaultRequestDurationBuckets...)
	}

	return &Collector{
		config:           cfg,
		registry:         registry,
		requestMetrics:   NewRequestMetrics(cfg, registry),
		cacheMetrics:     NewCacheMetrics(cfg, registry),
		upstreamMetrics:  NewUpstreamMetrics(cfg, registry),
		admissionMetrics: NewAdmissionMetrics(cfg, registry),
	}
}

// RecordRequest records a completed client request.
//
// cacheOutcome is "hit", "miss" or "bypass".
func (c *Collector) RecordRequest(route, class string, status int, cacheOutcome string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.RecordRequest(route, class, status, cacheOutcome, duration)
}

// RecordCacheHit records a cache hit for the named store.
func (c *Collector) RecordCacheHit(cacheName string) {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.RecordHit(cacheName)
}

// RecordCacheMiss records a cache miss for the named store.
func (c *Collector) RecordCacheMiss(cacheName string) {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.RecordMiss(cacheName)
}

// RecordCacheEviction records an entry removed for capacity or expiry.
func (c *Collector) RecordCacheEviction(cacheName, reason string) {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.RecordEviction(cacheName, reason)
}

// UpdateCacheSize sets the live entry count of the named store.
func (c *Collector) UpdateCacheSize(cacheName string, size int) {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.UpdateSize(cacheName, size)
}

// RecordUpstreamAttempt records one attempt against an origin.
//
// outcome is "accepted", "rejected", "timeout" or "error".
func (c *Collector) RecordUpstreamAttempt(origin, outcome string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.upstreamMetrics.RecordAttempt(origin, outcome, duration)
}

// RecordFailover records that a request moved past its first candidate.
func (c *Collector) RecordFailover(route string) {
	if !c.config.Enabled {
		return
	}
	c.upstreamMetrics.RecordFailover(route)
}

// UpdateAdmissionInFlight sets the number of held tickets.
func (c *Collector) UpdateAdmissionInFlight(n int) {
	if !c.config.Enabled {
		return
	}
	c.admissionMetrics.UpdateInFlight(n)
}

// RecordAdmissionWait records how long a request waited for a ticket.
func (c *Collector) RecordAdmissionWait(wait time.Duration, admitted bool) {
	if !c.config.Enabled {
		return
	}
	c.admissionMetrics.RecordWait(wait, admitted)
}

// Registry returns the registry backing this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
