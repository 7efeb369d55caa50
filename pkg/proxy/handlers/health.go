package handlers

import (
	"net/http"
)

// RootHandler answers the bare root path for load balancer checks.
type RootHandler struct{}

// NewRootHandler creates a root health handler.
func NewRootHandler() *RootHandler {
	return &RootHandler{}
}

// ServeHTTP writes "OK" for GET and the headers alone for HEAD.
func (h *RootHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Length", "2")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write([]byte("OK"))
	}
}
