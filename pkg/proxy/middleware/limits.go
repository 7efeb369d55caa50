package middleware

import (
	"fmt"
	"net/http"

	"mercator-hq/marquee/pkg/proxy/types"
)

// BodyLimitMiddleware rejects requests whose declared body exceeds maxBytes
// with 413 and caps undeclared bodies with http.MaxBytesReader. A
// non-positive maxBytes disables the limit.
func BodyLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeError(w, types.NewErrorResponse(
					fmt.Sprintf("request body exceeds %d bytes", maxBytes),
					types.ErrorTypeRequestTooLarge,
					types.CodeRequestTooLarge,
				))
				return
			}
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
