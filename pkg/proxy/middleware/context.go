package middleware

import (
	"context"
	"time"
)

type contextKey string

// StartTimeKey stores the time the request entered the middleware chain.
const StartTimeKey contextKey = "start_time"

// GetStartTime returns the request start time, or the zero time.
func GetStartTime(ctx context.Context) time.Time {
	if startTime, ok := ctx.Value(StartTimeKey).(time.Time); ok {
		return startTime
	}
	return time.Time{}
}
