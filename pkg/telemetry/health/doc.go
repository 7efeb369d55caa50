// Package health serves the liveness and readiness endpoints.
//
// Liveness only reports that the process answers. Readiness runs every
// registered check concurrently, each under its own timeout, and reports
// 503 when any check fails or when the server is draining for shutdown.
package health
