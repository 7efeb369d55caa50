package config

import "time"

// Default values for configuration fields.
const (
	// Proxy defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// CORS defaults
	DefaultCORSAllowOrigin  = "*"
	DefaultCORSAllowMethods = "GET,HEAD,OPTIONS"
	DefaultCORSAllowHeaders = "*"
	DefaultCORSMaxAge       = 86400

	// Upstream defaults
	DefaultUpstreamTimeout         = 15 * time.Second
	DefaultUpstreamStreamIdle      = 60 * time.Second
	DefaultUpstreamDialTimeout     = 5 * time.Second
	DefaultUpstreamMaxIdleConns    = 100
	DefaultUpstreamMaxIdlePerHost  = 10
	DefaultUpstreamIdleConnTimeout = 90 * time.Second
	DefaultUpstreamMaxCacheable    = int64(16 << 20) // 16MB
	DefaultUpstreamMaxRequestBody  = int64(1 << 20)  // 1MB

	// Admission defaults
	DefaultAdmissionMaxConcurrent = 5

	// Route defaults
	DefaultAPIOrigin   = "https://api.themoviedb.org"
	DefaultMediaOrigin = "https://image.tmdb.org"
	DefaultAPITTL      = 600 * time.Second
	DefaultMediaTTL    = 86400 * time.Second

	// Cache defaults
	DefaultMemoryMaxEntries     = 1000
	DefaultDurableEnabled       = true
	DefaultDurableBackend       = "sqlite"
	DefaultDurableMaxEntries    = 10000
	DefaultDurableCompress      = true
	DefaultDurableSweepSchedule = "*/10 * * * *"
	DefaultSQLitePath           = "data/cache.db"
	DefaultSQLiteDriver         = "sqlite"
	DefaultSQLiteBusyTimeout    = 5 * time.Second
	DefaultRedisAddress         = "127.0.0.1:6379"
	DefaultRedisKeyPrefix       = "marquee:cache:"
	DefaultRedisDialTimeout     = 5 * time.Second

	// Telemetry defaults
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultMetricsEnabled     = true
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "marquee"
	DefaultMetricsSubsystem   = "edge"
	DefaultTracingEnabled     = false
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingServiceName = "marquee"
	DefaultHealthEnabled      = true
	DefaultLivenessPath       = "/health"
	DefaultReadinessPath      = "/ready"

	// Watch defaults
	DefaultWatchDebounce = 250 * time.Millisecond
)

// DefaultRequestDurationBuckets covers cache hits (sub-millisecond) through
// slow upstream attempts near the 15s timeout.
var DefaultRequestDurationBuckets = []float64{0.001, 0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15}

// Default returns a configuration with every field set to its default.
// LoadConfig decodes the file on top of this value, so fields absent from
// the file keep their defaults, including booleans that default to true.
func Default() *Config {
	cfg := &Config{}
	cfg.Cache.Durable.Enabled = DefaultDurableEnabled
	cfg.Cache.Durable.Compress = DefaultDurableCompress
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Tracing.Enabled = DefaultTracingEnabled
	cfg.Telemetry.Tracing.Insecure = true
	cfg.Telemetry.Health.Enabled = DefaultHealthEnabled
	ApplyDefaults(cfg)
	return cfg
}

// DefaultRoutes reproduces the standard deployment: API calls proxied to a
// single origin with a short TTL, images cached for a day in the durable
// store when it is enabled.
func DefaultRoutes() []RouteConfig {
	return []RouteConfig{
		{
			Name:     "api",
			Class:    ClassAPI,
			Prefixes: []string{"/3/", "/4/"},
			Origins: []OriginConfig{
				{Name: "tmdb-api", URL: DefaultAPIOrigin, Priority: 0},
			},
			TTL:             DefaultAPITTL,
			Store:           StoreMemory,
			Failover:        false,
			FollowRedirects: false,
		},
		{
			Name:     "media",
			Class:    ClassMedia,
			Prefixes: []string{"/t/p/"},
			Origins: []OriginConfig{
				{Name: "tmdb-image", URL: DefaultMediaOrigin, Priority: 0},
			},
			TTL:             DefaultMediaTTL,
			Failover:        true,
			FollowRedirects: true,
		},
	}
}

// ApplyDefaults fills zero-valued fields with their defaults. Booleans are
// left untouched; see Default.
func ApplyDefaults(cfg *Config) {
	applyProxyDefaults(&cfg.Proxy)
	applyUpstreamDefaults(&cfg.Upstream)

	if cfg.Admission.MaxConcurrent == 0 {
		cfg.Admission.MaxConcurrent = DefaultAdmissionMaxConcurrent
	}

	if len(cfg.Routes) == 0 {
		cfg.Routes = DefaultRoutes()
	}
	for i := range cfg.Routes {
		applyRouteDefaults(&cfg.Routes[i], cfg.Cache.Durable.Enabled)
	}

	applyCacheDefaults(&cfg.Cache)
	applyTelemetryDefaults(&cfg.Telemetry)

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = DefaultWatchDebounce
	}
}

func applyProxyDefaults(p *ProxyConfig) {
	if p.ListenAddress == "" {
		p.ListenAddress = DefaultListenAddress
	}
	if p.ReadTimeout == 0 {
		p.ReadTimeout = DefaultReadTimeout
	}
	if p.WriteTimeout == 0 {
		p.WriteTimeout = DefaultWriteTimeout
	}
	if p.IdleTimeout == 0 {
		p.IdleTimeout = DefaultIdleTimeout
	}
	if p.ShutdownTimeout == 0 {
		p.ShutdownTimeout = DefaultShutdownTimeout
	}
	if p.MaxHeaderBytes == 0 {
		p.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	if p.CORS.AllowOrigin == "" {
		p.CORS.AllowOrigin = DefaultCORSAllowOrigin
	}
	if p.CORS.AllowMethods == "" {
		p.CORS.AllowMethods = DefaultCORSAllowMethods
	}
	if p.CORS.AllowHeaders == "" {
		p.CORS.AllowHeaders = DefaultCORSAllowHeaders
	}
	if p.CORS.MaxAge == 0 {
		p.CORS.MaxAge = DefaultCORSMaxAge
	}
}

func applyUpstreamDefaults(u *UpstreamConfig) {
	if u.Timeout == 0 {
		u.Timeout = DefaultUpstreamTimeout
	}
	if u.StreamIdleTimeout == 0 {
		u.StreamIdleTimeout = DefaultUpstreamStreamIdle
	}
	if u.DialTimeout == 0 {
		u.DialTimeout = DefaultUpstreamDialTimeout
	}
	if u.MaxIdleConns == 0 {
		u.MaxIdleConns = DefaultUpstreamMaxIdleConns
	}
	if u.MaxIdleConnsPerHost == 0 {
		u.MaxIdleConnsPerHost = DefaultUpstreamMaxIdlePerHost
	}
	if u.IdleConnTimeout == 0 {
		u.IdleConnTimeout = DefaultUpstreamIdleConnTimeout
	}
	if u.MaxCacheableBytes == 0 {
		u.MaxCacheableBytes = DefaultUpstreamMaxCacheable
	}
	if u.MaxRequestBodyBytes == 0 {
		u.MaxRequestBodyBytes = DefaultUpstreamMaxRequestBody
	}
}

func applyRouteDefaults(r *RouteConfig, durableEnabled bool) {
	if r.Class == "" {
		r.Class = ClassAPI
	}
	if r.TTL == 0 {
		if r.Class == ClassMedia {
			r.TTL = DefaultMediaTTL
		} else {
			r.TTL = DefaultAPITTL
		}
	}
	if r.Store == "" {
		if r.Class == ClassMedia && durableEnabled {
			r.Store = StoreDurable
		} else {
			r.Store = StoreMemory
		}
	}
	for i := range r.Origins {
		if r.Origins[i].Name == "" {
			r.Origins[i].Name = r.Origins[i].URL
		}
	}
}

func applyCacheDefaults(c *CacheConfig) {
	if c.Memory.MaxEntries == 0 {
		c.Memory.MaxEntries = DefaultMemoryMaxEntries
	}

	d := &c.Durable
	if d.Backend == "" {
		d.Backend = DefaultDurableBackend
	}
	if d.MaxEntries == 0 {
		d.MaxEntries = DefaultDurableMaxEntries
	}
	if d.SweepSchedule == "" {
		d.SweepSchedule = DefaultDurableSweepSchedule
	}
	if d.SQLite.Path == "" {
		d.SQLite.Path = DefaultSQLitePath
	}
	if d.SQLite.Driver == "" {
		d.SQLite.Driver = DefaultSQLiteDriver
	}
	if d.SQLite.BusyTimeout == 0 {
		d.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if d.Redis.Address == "" {
		d.Redis.Address = DefaultRedisAddress
	}
	if d.Redis.KeyPrefix == "" {
		d.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if d.Redis.DialTimeout == 0 {
		d.Redis.DialTimeout = DefaultRedisDialTimeout
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLogLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLogFormat
	}

	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if t.Metrics.Subsystem == "" {
		t.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(t.Metrics.RequestDurationBuckets) == 0 {
		t.Metrics.RequestDurationBuckets = append([]float64(nil), DefaultRequestDurationBuckets...)
	}

	if t.Tracing.Endpoint == "" {
		t.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultTracingServiceName
	}

	if t.Health.LivenessPath == "" {
		t.Health.LivenessPath = DefaultLivenessPath
	}
	if t.Health.ReadinessPath == "" {
		t.Health.ReadinessPath = DefaultReadinessPath
	}
}
