package middleware

import (
	"net/http"
	"strconv"

	"mercator-hq/marquee/pkg/proxy/header"
)

// PreflightMiddleware answers every OPTIONS request with 200 and the CORS
// header set. Preflights never reach the proxy pipeline.
func PreflightMiddleware(policy header.CORSPolicy, maxAge int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			header.ApplyCORS(h, policy)
			if maxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(maxAge))
			}
			h.Set("Content-Length", "0")
			w.WriteHeader(http.StatusOK)
		})
	}
}
