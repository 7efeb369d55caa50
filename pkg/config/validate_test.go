package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate_DefaultIsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default configuration invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantField string
	}{
		{
			name:      "bad listen address",
			modify:    func(c *Config) { c.Proxy.ListenAddress = "8080" },
			wantField: "proxy.listen_address",
		},
		{
			name:      "zero upstream timeout",
			modify:    func(c *Config) { c.Upstream.Timeout = 0 },
			wantField: "upstream.timeout",
		},
		{
			name:      "negative stream idle timeout",
			modify:    func(c *Config) { c.Upstream.StreamIdleTimeout = -time.Second },
			wantField: "upstream.stream_idle_timeout",
		},
		{
			name:      "no routes",
			modify:    func(c *Config) { c.Routes = nil },
			wantField: "routes",
		},
		{
			name:      "duplicate route name",
			modify:    func(c *Config) { c.Routes[1].Name = c.Routes[0].Name },
			wantField: "routes[1].name",
		},
		{
			name:      "unknown class",
			modify:    func(c *Config) { c.Routes[0].Class = "video" },
			wantField: "routes[0].class",
		},
		{
			name:      "prefix without slash",
			modify:    func(c *Config) { c.Routes[0].Prefixes = []string{"3/"} },
			wantField: "routes[0].prefixes[0]",
		},
		{
			name:      "prefix shared by two routes",
			modify:    func(c *Config) { c.Routes[1].Prefixes = []string{"/3/"} },
			wantField: "routes[1].prefixes[0]",
		},
		{
			name:      "origin without scheme",
			modify:    func(c *Config) { c.Routes[0].Origins[0].URL = "api.themoviedb.org" },
			wantField: "routes[0].origins[0].url",
		},
		{
			name:      "no origins",
			modify:    func(c *Config) { c.Routes[0].Origins = nil },
			wantField: "routes[0].origins",
		},
		{
			name:      "durable store while disabled",
			modify:    func(c *Config) { c.Cache.Durable.Enabled = false },
			wantField: "routes[1].store",
		},
		{
			name:      "unknown store",
			modify:    func(c *Config) { c.Routes[0].Store = "disk" },
			wantField: "routes[0].store",
		},
		{
			name:      "bad sweep schedule",
			modify:    func(c *Config) { c.Cache.Durable.SweepSchedule = "every tuesday" },
			wantField: "cache.durable.sweep_schedule",
		},
		{
			name:      "unknown durable backend",
			modify:    func(c *Config) { c.Cache.Durable.Backend = "memcached" },
			wantField: "cache.durable.backend",
		},
		{
			name:      "unknown sqlite driver",
			modify:    func(c *Config) { c.Cache.Durable.SQLite.Driver = "pgx" },
			wantField: "cache.durable.sqlite.driver",
		},
		{
			name:      "bad log level",
			modify:    func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			wantField: "telemetry.logging.level",
		},
		{
			name: "bad sample ratio",
			modify: func(c *Config) {
				c.Telemetry.Tracing.Enabled = true
				c.Telemetry.Tracing.SampleRatio = 2
			},
			wantField: "telemetry.tracing.sample_ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := Validate(cfg)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}

			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error for %s, got %v", tt.wantField, verr.Errors)
			}
		})
	}
}

func TestValidationError_Format(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if single.Error() != "configuration validation failed: a: bad" {
		t.Errorf("single error = %q", single.Error())
	}

	multi := ValidationError{Errors: []FieldError{{Field: "a", Message: "x"}, {Field: "b", Message: "y"}}}
	if !strings.Contains(multi.Error(), "2 errors") || !strings.Contains(multi.Error(), "  - b: y") {
		t.Errorf("multi error = %q", multi.Error())
	}
}
