package cache

import (
	"net/http"
	"strings"
)

// BuildKey derives the cache key for a request. The key is the method
// followed by the absolute target URL exactly as given.
func BuildKey(method, absoluteURL string) string {
	return strings.ToUpper(method) + " " + absoluteURL
}

// Cacheable reports whether a request may be served from or written to the
// cache. Only bodiless GET and HEAD requests qualify.
func Cacheable(method string, hasBody bool) bool {
	if hasBody {
		return false
	}
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead:
		return true
	default:
		return false
	}
}
