// Package server provides the inbound HTTP server for the edge proxy.
//
// The server ties the edge handler to the operational endpoints and the
// middleware chain, and manages the listener lifecycle.
//
// # Endpoints
//
//	GET  /            plain "OK" for load balancer checks
//	GET  /health      liveness
//	GET  /ready       readiness (503 while draining or a check fails)
//	GET  /version     build information
//	GET  /metrics     Prometheus exposition, when metrics are enabled
//	*    everything   the edge handler
//
// The health and metrics paths come from configuration.
//
// # Middleware
//
// Requests pass through, outermost first:
//
//  1. Recovery: panics become 500 JSON errors
//  2. Request ID: assigns X-Request-ID
//  3. Access logging
//  4. Trace context extraction
//  5. Request body limit
//
// # Graceful Shutdown
//
// Start blocks until ctx is cancelled, SIGINT or SIGTERM arrives, or
// Shutdown is called. Readiness flips to draining first so load balancers
// stop sending traffic, then in-flight requests get ShutdownTimeout to
// finish:
//
//	srv := server.NewServer(server.Options{
//	    Proxy:     &cfg.Proxy,
//	    Telemetry: tel,
//	    Edge:      edge,
//	})
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
