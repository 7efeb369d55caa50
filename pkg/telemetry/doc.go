// Package telemetry bundles the edge's observability: structured logging,
// Prometheus metrics, OpenTelemetry tracing and health endpoints.
//
// Each concern lives in its own subpackage. New builds all of them from the
// telemetry section of the configuration so the run command wires a single
// value:
//
//	tel, err := telemetry.New(&cfg.Telemetry, os.Stderr)
//	if err != nil {
//		return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	tel.Logger.Install()
//	tel.Metrics.RecordCacheHit("memory")
package telemetry
