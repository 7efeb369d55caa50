package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "proxy.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks the whole configuration and returns a ValidationError
// listing every problem found, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateProxy(&cfg.Proxy)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validateAdmission(&cfg.Admission)...)
	errs = append(errs, validateRoutes(cfg.Routes, &cfg.Cache)...)
	errs = append(errs, validateCache(&cfg.Cache)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateProxy(cfg *ProxyConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "proxy.listen_address", Message: "listen address is required"})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "proxy.listen_address",
			Message: fmt.Sprintf("invalid listen address format: %v", err),
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.read_timeout", Message: "must not be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.write_timeout", Message: "must not be negative"})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{Field: "proxy.max_header_bytes", Message: "must not be negative"})
	}
	if cfg.MaxHeaderBytes > 10*1024*1024 {
		errs = append(errs, FieldError{
			Field:   "proxy.max_header_bytes",
			Message: "max header bytes exceeds reasonable limit (10MB)",
		})
	}
	if cfg.CORS.MaxAge < 0 {
		errs = append(errs, FieldError{Field: "proxy.cors.max_age", Message: "must not be negative"})
	}

	return errs
}

func validateUpstream(cfg *UpstreamConfig) []FieldError {
	var errs []FieldError

	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{Field: "upstream.timeout", Message: "must be positive"})
	}
	if cfg.StreamIdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "upstream.stream_idle_timeout", Message: "must not be negative"})
	}
	if cfg.MaxCacheableBytes < 0 {
		errs = append(errs, FieldError{Field: "upstream.max_cacheable_bytes", Message: "must not be negative"})
	}
	if cfg.MaxRequestBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "upstream.max_request_body_bytes", Message: "must not be negative"})
	}

	return errs
}

func validateAdmission(cfg *AdmissionConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxConcurrent < 1 {
		errs = append(errs, FieldError{Field: "admission.max_concurrent", Message: "must be at least 1"})
	}
	if cfg.WaitTimeout < 0 {
		errs = append(errs, FieldError{Field: "admission.wait_timeout", Message: "must not be negative"})
	}

	return errs
}

func validateRoutes(routes []RouteConfig, cache *CacheConfig) []FieldError {
	var errs []FieldError

	if len(routes) == 0 {
		return append(errs, FieldError{Field: "routes", Message: "at least one route must be configured"})
	}

	names := make(map[string]bool)
	prefixes := make(map[string]string)

	for i, r := range routes {
		field := fmt.Sprintf("routes[%d]", i)

		if r.Name == "" {
			errs = append(errs, FieldError{Field: field + ".name", Message: "name is required"})
		} else if names[r.Name] {
			errs = append(errs, FieldError{Field: field + ".name", Message: fmt.Sprintf("duplicate route name %q", r.Name)})
		}
		names[r.Name] = true

		if r.Class != ClassAPI && r.Class != ClassMedia {
			errs = append(errs, FieldError{
				Field:   field + ".class",
				Message: fmt.Sprintf("invalid class %q (must be api or media)", r.Class),
			})
		}

		if len(r.Prefixes) == 0 {
			errs = append(errs, FieldError{Field: field + ".prefixes", Message: "at least one prefix is required"})
		}
		for j, p := range r.Prefixes {
			pf := fmt.Sprintf("%s.prefixes[%d]", field, j)
			if !strings.HasPrefix(p, "/") {
				errs = append(errs, FieldError{Field: pf, Message: "prefix must start with /"})
			}
			if owner, dup := prefixes[p]; dup {
				errs = append(errs, FieldError{Field: pf, Message: fmt.Sprintf("prefix %q already used by route %q", p, owner)})
			}
			prefixes[p] = r.Name
		}

		if len(r.Origins) == 0 {
			errs = append(errs, FieldError{Field: field + ".origins", Message: "at least one origin is required"})
		}
		for j, o := range r.Origins {
			of := fmt.Sprintf("%s.origins[%d]", field, j)
			u, err := url.Parse(o.URL)
			switch {
			case o.URL == "":
				errs = append(errs, FieldError{Field: of + ".url", Message: "url is required"})
			case err != nil:
				errs = append(errs, FieldError{Field: of + ".url", Message: fmt.Sprintf("invalid URL format: %v", err)})
			case u.Scheme != "http" && u.Scheme != "https":
				errs = append(errs, FieldError{Field: of + ".url", Message: "URL scheme must be http or https"})
			case u.Host == "":
				errs = append(errs, FieldError{Field: of + ".url", Message: "URL must include a host"})
			}
			if o.Priority < 0 {
				errs = append(errs, FieldError{Field: of + ".priority", Message: "must not be negative"})
			}
		}

		if r.TTL < 0 {
			errs = append(errs, FieldError{Field: field + ".ttl", Message: "must not be negative"})
		}

		switch r.Store {
		case StoreMemory:
		case StoreDurable:
			if r.CacheEnabled() && !cache.Durable.Enabled {
				errs = append(errs, FieldError{
					Field:   field + ".store",
					Message: "durable store selected but cache.durable.enabled is false",
				})
			}
		default:
			errs = append(errs, FieldError{
				Field:   field + ".store",
				Message: fmt.Sprintf("invalid store %q (must be memory or durable)", r.Store),
			})
		}
	}

	return errs
}

func validateCache(cfg *CacheConfig) []FieldError {
	var errs []FieldError

	if cfg.Memory.MaxEntries < 1 {
		errs = append(errs, FieldError{Field: "cache.memory.max_entries", Message: "must be at least 1"})
	}

	d := cfg.Durable
	if !d.Enabled {
		return errs
	}

	if d.MaxEntries < 1 {
		errs = append(errs, FieldError{Field: "cache.durable.max_entries", Message: "must be at least 1"})
	}
	if d.SweepSchedule != "" {
		if _, err := cron.ParseStandard(d.SweepSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "cache.durable.sweep_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	switch d.Backend {
	case "sqlite":
		if d.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "cache.durable.sqlite.path", Message: "path is required"})
		}
		if d.SQLite.Driver != "sqlite" && d.SQLite.Driver != "sqlite3" {
			errs = append(errs, FieldError{
				Field:   "cache.durable.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q (must be sqlite or sqlite3)", d.SQLite.Driver),
			})
		}
	case "redis":
		if d.Redis.Address == "" {
			errs = append(errs, FieldError{Field: "cache.durable.redis.address", Message: "address is required"})
		}
		if d.Redis.DB < 0 {
			errs = append(errs, FieldError{Field: "cache.durable.redis.db", Message: "must not be negative"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "cache.durable.backend",
			Message: fmt.Sprintf("invalid backend %q (must be sqlite or redis)", d.Backend),
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be debug, info, warn, or error)", cfg.Logging.Level),
		})
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be json or text)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "path must start with /"})
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
		}
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q (must be always, never, or ratio)", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "must be between 0 and 1"})
		}
	}

	return errs
}
