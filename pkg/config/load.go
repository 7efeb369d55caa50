package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "MARQUEE_"

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded on top of Default, then validated. Environment
// variables are not consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// parse decodes YAML onto the defaults. Unknown keys are rejected so typos
// do not silently fall back to defaults.
func parse(data []byte) (*Config, error) {
	cfg := Default()
	cfg.Routes = nil

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention MARQUEE_SECTION_FIELD (e.g., MARQUEE_PROXY_LISTEN_ADDRESS) and
// always take precedence over the file.
//
// The loading sequence is:
// 1. Load YAML from file on top of defaults
// 2. Apply environment variable overrides
// 3. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies MARQUEE_SECTION_FIELD overrides.
func applyEnvOverrides(cfg *Config) {
	// Proxy overrides
	envString("PROXY_LISTEN_ADDRESS", &cfg.Proxy.ListenAddress)
	envDuration("PROXY_READ_TIMEOUT", &cfg.Proxy.ReadTimeout)
	envDuration("PROXY_WRITE_TIMEOUT", &cfg.Proxy.WriteTimeout)
	envDuration("PROXY_IDLE_TIMEOUT", &cfg.Proxy.IdleTimeout)
	envDuration("PROXY_SHUTDOWN_TIMEOUT", &cfg.Proxy.ShutdownTimeout)
	envInt("PROXY_MAX_HEADER_BYTES", &cfg.Proxy.MaxHeaderBytes)
	envString("PROXY_CORS_ALLOW_ORIGIN", &cfg.Proxy.CORS.AllowOrigin)

	// Upstream overrides
	envDuration("UPSTREAM_TIMEOUT", &cfg.Upstream.Timeout)
	envDuration("UPSTREAM_STREAM_IDLE_TIMEOUT", &cfg.Upstream.StreamIdleTimeout)
	envInt64("UPSTREAM_MAX_CACHEABLE_BYTES", &cfg.Upstream.MaxCacheableBytes)
	envInt64("UPSTREAM_MAX_REQUEST_BODY_BYTES", &cfg.Upstream.MaxRequestBodyBytes)
	envString("UPSTREAM_REGION", &cfg.Upstream.Region)
	envString("UPSTREAM_USER_AGENT", &cfg.Upstream.UserAgent)

	// Admission overrides
	envInt("ADMISSION_MAX_CONCURRENT", &cfg.Admission.MaxConcurrent)
	envDuration("ADMISSION_WAIT_TIMEOUT", &cfg.Admission.WaitTimeout)

	// Cache overrides
	envInt("CACHE_MEMORY_MAX_ENTRIES", &cfg.Cache.Memory.MaxEntries)
	envBool("CACHE_DURABLE_ENABLED", &cfg.Cache.Durable.Enabled)
	envString("CACHE_DURABLE_BACKEND", &cfg.Cache.Durable.Backend)
	envInt("CACHE_DURABLE_MAX_ENTRIES", &cfg.Cache.Durable.MaxEntries)
	envBool("CACHE_DURABLE_COMPRESS", &cfg.Cache.Durable.Compress)
	envString("CACHE_DURABLE_SWEEP_SCHEDULE", &cfg.Cache.Durable.SweepSchedule)
	envString("CACHE_DURABLE_SQLITE_PATH", &cfg.Cache.Durable.SQLite.Path)
	envString("CACHE_DURABLE_SQLITE_DRIVER", &cfg.Cache.Durable.SQLite.Driver)
	envString("CACHE_DURABLE_REDIS_ADDRESS", &cfg.Cache.Durable.Redis.Address)
	envString("CACHE_DURABLE_REDIS_PASSWORD", &cfg.Cache.Durable.Redis.Password)
	envInt("CACHE_DURABLE_REDIS_DB", &cfg.Cache.Durable.Redis.DB)
	envString("CACHE_DURABLE_REDIS_KEY_PREFIX", &cfg.Cache.Durable.Redis.KeyPrefix)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envFloat("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)

	// Watch overrides
	envBool("WATCH_ENABLED", &cfg.Watch.Enabled)
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envInt64(name string, dst *int64) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			*dst = i
		}
	}
}

func envFloat(name string, dst *float64) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
