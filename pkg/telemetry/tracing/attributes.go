package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys. Edge-specific keys live under "marquee.".
const (
	AttrHTTPMethod = "http.method"
	AttrHTTPTarget = "http.target"
	AttrHTTPStatus = "http.status_code"

	AttrRequestID = "marquee.request_id"
	AttrRoute     = "marquee.route"
	AttrClass     = "marquee.route.class"

	AttrCacheKey     = "marquee.cache.key"
	AttrCacheStore   = "marquee.cache.store"
	AttrCacheOutcome = "marquee.cache.outcome"

	AttrOrigin      = "marquee.origin"
	AttrOriginURL   = "marquee.origin.url"
	AttrAttempt     = "marquee.attempt"
	AttrAttempts    = "marquee.attempts"
	AttrAdmissionMs = "marquee.admission.wait_ms"
)

// SetRouteAttributes tags span with the resolved route.
func SetRouteAttributes(span trace.Span, route, class string) {
	span.SetAttributes(
		attribute.String(AttrRoute, route),
		attribute.String(AttrClass, class),
	)
}

// SetCacheAttributes tags span with the cache lookup result.
func SetCacheAttributes(span trace.Span, store, key, outcome string) {
	span.SetAttributes(
		attribute.String(AttrCacheStore, store),
		attribute.String(AttrCacheKey, key),
		attribute.String(AttrCacheOutcome, outcome),
	)
}

// SetOriginAttributes tags an upstream attempt span.
func SetOriginAttributes(span trace.Span, origin, target string, attempt int) {
	span.SetAttributes(
		attribute.String(AttrOrigin, origin),
		attribute.String(AttrOriginURL, target),
		attribute.Int(AttrAttempt, attempt),
	)
}
