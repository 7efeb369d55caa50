// Package metrics exposes Prometheus metrics for the edge.
//
// A single Collector owns a registry and the per-concern metric groups:
// requests, cache, upstream attempts and admission. The Collector satisfies
// cache.Recorder and admission.Observer so those packages report without
// importing Prometheus. All recording methods are no-ops when metrics are
// disabled in configuration.
//
// Metric names are prefixed with the configured namespace and subsystem,
// for example marquee_edge_requests_total.
package metrics
