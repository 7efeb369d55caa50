package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	routeKey     contextKey = "route"
)

// WithRequestID stores the request ID in ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the request ID in ctx, or "".
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithRoute stores the resolved route name in ctx.
func WithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, routeKey, route)
}

// GetRoute returns the route name in ctx, or "".
func GetRoute(ctx context.Context) string {
	if v, ok := ctx.Value(routeKey).(string); ok {
		return v
	}
	return ""
}

// FromContext returns base annotated with the request fields in ctx.
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	var args []any
	if id := GetRequestID(ctx); id != "" {
		args = append(args, "request_id", id)
	}
	if route := GetRoute(ctx); route != "" {
		args = append(args, "route", route)
	}
	if len(args) == 0 {
		return base
	}
	return base.With(args...)
}
