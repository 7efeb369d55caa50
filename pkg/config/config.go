package config

import "time"

// Config is the root configuration structure for the marquee edge proxy.
type Config struct {
	// Proxy contains inbound HTTP server settings.
	Proxy ProxyConfig `yaml:"proxy"`

	// Upstream contains outbound client settings shared by all routes.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Admission bounds concurrent proxy operations.
	Admission AdmissionConfig `yaml:"admission"`

	// Routes maps path prefixes to origins and cache policy.
	Routes []RouteConfig `yaml:"routes"`

	// Cache configures the transient and durable response stores.
	Cache CacheConfig `yaml:"cache"`

	// Telemetry contains logging, metrics, tracing and health settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Watch enables hot reload of routes and log level when the file changes.
	Watch WatchConfig `yaml:"watch"`
}

// ProxyConfig contains the inbound server configuration.
type ProxyConfig struct {
	// ListenAddress is the address the server binds to (e.g. "0.0.0.0:8080").
	ListenAddress string `yaml:"listen_address"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// CORS controls the cross-origin headers on every response and the
	// answer to preflight requests.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains cross-origin settings.
type CORSConfig struct {
	AllowOrigin  string `yaml:"allow_origin"`
	AllowMethods string `yaml:"allow_methods"`
	AllowHeaders string `yaml:"allow_headers"`

	// MaxAge is how long browsers may cache a preflight answer, in seconds.
	MaxAge int `yaml:"max_age"`
}

// UpstreamConfig contains outbound HTTP client settings.
type UpstreamConfig struct {
	// Timeout bounds each upstream attempt up to the point the response is
	// accepted: headers, plus the in-memory read of a cacheable body. An
	// attempt that exceeds it is treated as a failed candidate.
	Timeout time.Duration `yaml:"timeout"`

	// StreamIdleTimeout aborts a relayed body that makes no read progress
	// for this long. It replaces Timeout once a response is streamed.
	StreamIdleTimeout time.Duration `yaml:"stream_idle_timeout"`

	DialTimeout         time.Duration `yaml:"dial_timeout"`
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`

	// MaxCacheableBytes is the largest body written to the cache. Larger
	// responses are relayed but not stored.
	MaxCacheableBytes int64 `yaml:"max_cacheable_bytes"`

	// MaxRequestBodyBytes bounds forwarded request bodies.
	MaxRequestBodyBytes int64 `yaml:"max_request_body_bytes"`

	// Region selects region-tagged origins. Origins without a region are
	// always eligible.
	Region string `yaml:"region"`

	// UserAgent replaces the client User-Agent when set.
	UserAgent string `yaml:"user_agent"`
}

// AdmissionConfig bounds concurrent proxy operations.
type AdmissionConfig struct {
	// MaxConcurrent is the number of proxy operations allowed at once.
	MaxConcurrent int `yaml:"max_concurrent"`

	// WaitTimeout bounds the wait for a slot. Zero waits indefinitely.
	WaitTimeout time.Duration `yaml:"wait_timeout"`
}

// Route classes.
const (
	ClassAPI   = "api"
	ClassMedia = "media"
)

// Store names referenced by RouteConfig.Store.
const (
	StoreMemory  = "memory"
	StoreDurable = "durable"
)

// RouteConfig describes one resource class.
type RouteConfig struct {
	// Name identifies the route in logs and metrics.
	Name string `yaml:"name"`

	// Class is "api" or "media".
	Class string `yaml:"class"`

	// Prefixes are the request path prefixes served by this route.
	Prefixes []string `yaml:"prefixes"`

	// Origins are the upstream candidates, tried in ascending priority.
	Origins []OriginConfig `yaml:"origins"`

	// TTL is how long successful responses are cached and the max-age
	// advertised to clients.
	TTL time.Duration `yaml:"ttl"`

	// Cache enables the response cache for this route.
	Cache *bool `yaml:"cache"`

	// Store selects the response store: "memory" or "durable".
	Store string `yaml:"store"`

	// Failover tries every origin in order until one answers 200. When
	// false only the primary origin is used and its status is relayed as is.
	Failover bool `yaml:"failover"`

	// FollowRedirects makes the client follow upstream redirects instead
	// of relaying them.
	FollowRedirects bool `yaml:"follow_redirects"`
}

// CacheEnabled reports whether responses on this route are cached.
func (r RouteConfig) CacheEnabled() bool {
	return r.Cache == nil || *r.Cache
}

// OriginConfig is one upstream origin.
type OriginConfig struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Priority int    `yaml:"priority"`
	Region   string `yaml:"region"`
}

// CacheConfig configures the response stores.
type CacheConfig struct {
	Memory  MemoryCacheConfig  `yaml:"memory"`
	Durable DurableCacheConfig `yaml:"durable"`
}

// MemoryCacheConfig configures the in-process store.
type MemoryCacheConfig struct {
	// MaxEntries bounds the store; the oldest-stored entries are evicted first.
	MaxEntries int `yaml:"max_entries"`
}

// DurableCacheConfig configures the persistent store.
type DurableCacheConfig struct {
	Enabled bool `yaml:"enabled"`

	// Backend is "sqlite" or "redis".
	Backend string `yaml:"backend"`

	MaxEntries int `yaml:"max_entries"`

	// Compress stores snapshots zstd-compressed when that makes them smaller.
	Compress bool `yaml:"compress"`

	// SweepSchedule is a cron expression for removing expired entries.
	// Empty disables scheduled sweeps.
	SweepSchedule string `yaml:"sweep_schedule"`

	SQLite SQLiteCacheConfig `yaml:"sqlite"`
	Redis  RedisCacheConfig  `yaml:"redis"`
}

// SQLiteCacheConfig configures the SQLite durable backend.
type SQLiteCacheConfig struct {
	Path string `yaml:"path"`

	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	Driver string `yaml:"driver"`

	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RedisCacheConfig configures the Redis durable backend.
type RedisCacheConfig struct {
	Address     string        `yaml:"address"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	KeyPrefix   string        `yaml:"key_prefix"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Health  HealthConfig  `yaml:"health"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is where the metrics handler is mounted.
	Path string `yaml:"path"`

	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`

	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP/gRPC collector address.
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// Sampler is "always", "never" or "ratio".
	Sampler string `yaml:"sampler"`

	SampleRatio float64 `yaml:"sample_ratio"`

	ServiceName string `yaml:"service_name"`
}

// HealthConfig contains health endpoint settings.
type HealthConfig struct {
	Enabled       bool   `yaml:"enabled"`
	LivenessPath  string `yaml:"liveness_path"`
	ReadinessPath string `yaml:"readiness_path"`
}

// WatchConfig controls configuration hot reload.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}
