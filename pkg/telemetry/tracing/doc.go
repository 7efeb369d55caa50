// Package tracing wires OpenTelemetry spans into the edge pipeline.
//
// When tracing is disabled the package hands out a noop tracer, so callers
// never branch on configuration. When enabled, spans are exported over
// OTLP/gRPC and W3C Trace Context is installed as the global propagator:
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	if err != nil {
//		return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "edge.request")
//	defer span.End()
//
// Upstream calls carry the current trace context via Inject, and incoming
// requests are joined to a caller's trace via Extract.
package tracing
