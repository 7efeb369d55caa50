package telemetry

import (
	"context"
	"fmt"
	"io"
	"time"

	"mercator-hq/marquee/pkg/config"
	"mercator-hq/marquee/pkg/telemetry/health"
	"mercator-hq/marquee/pkg/telemetry/logging"
	"mercator-hq/marquee/pkg/telemetry/metrics"
	"mercator-hq/marquee/pkg/telemetry/tracing"

	"github.com/prometheus/client_golang/prometheus"
)

// Telemetry groups the observability components built from configuration.
type Telemetry struct {
	Logger  *logging.Logger
	Metrics *metrics.Collector
	Tracer  *tracing.Tracer
	Health  *health.Checker
}

// New builds every component. logOut receives log records.
func New(cfg *config.TelemetryConfig, logOut io.Writer) (*Telemetry, error) {
	logger, err := logging.New(cfg.Logging, logOut)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	tracer, err := tracing.New(&cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	return &Telemetry{
		Logger:  logger,
		Metrics: metrics.NewCollector(&cfg.Metrics, nil),
		Tracer:  tracer,
		Health:  health.New(5 * time.Second),
	}, nil
}

// NewForTest builds telemetry that discards logs, records metrics into a
// private registry and traces nothing.
func NewForTest(w io.Writer) *Telemetry {
	logger, _ := logging.New(config.LoggingConfig{Level: "debug", Format: "text"}, w)
	return &Telemetry{
		Logger:  logger,
		Metrics: metrics.NewCollector(&config.MetricsConfig{Enabled: true}, prometheus.NewRegistry()),
		Tracer:  tracing.Noop(),
		Health:  health.New(time.Second),
	}
}

// Shutdown flushes the tracer.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.Tracer.Shutdown(ctx)
}
