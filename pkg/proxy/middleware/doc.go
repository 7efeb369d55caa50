// Package middleware provides the HTTP middleware wrapped around the edge
// handler.
//
// The server chains them outermost first:
//
//	handler = RecoveryMiddleware(handler)
//	handler = LoggingMiddleware(handler)
//	handler = PreflightMiddleware(policy, maxAge)(handler)
//	handler = BodyLimitMiddleware(maxBytes)(handler)
//	handler = RequestIDMiddleware(handler)
//
// Request IDs are stored with the logging package so every log line for a
// request carries the same request_id field.
package middleware
