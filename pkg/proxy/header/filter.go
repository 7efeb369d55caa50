// Package header implements the header hygiene applied at the proxy
// boundary: hop-by-hop removal in both directions and the response policy
// headers (CORS and Cache-Control) set on egress.
package header

import (
	"net/http"
	"strconv"
)

// Side identifies which leg of the proxy a header set belongs to.
type Side int

const (
	// Request is the inbound client request being forwarded upstream.
	Request Side = iota
	// Response is the upstream response being relayed to the client.
	Response
)

// hopByHop lists headers that only describe a single connection leg.
// Keys are in canonical MIME form.
var hopByHop = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Transfer-Encoding":   {},
	"Proxy-Connection":    {},
	"Upgrade":             {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailers":            {},
	"Trailer":             {},
}

// CORSPolicy holds the cross-origin values written on every relayed response.
type CORSPolicy struct {
	AllowOrigin  string
	AllowMethods string
	AllowHeaders string
}

// DefaultCORSPolicy matches the public, read-only nature of the proxied API.
func DefaultCORSPolicy() CORSPolicy {
	return CORSPolicy{
		AllowOrigin:  "*",
		AllowMethods: "GET,HEAD,OPTIONS",
		AllowHeaders: "*",
	}
}

// IsHopByHop reports whether name is removed by StripHopByHop on the given side.
func IsHopByHop(name string, side Side) bool {
	canonical := http.CanonicalHeaderKey(name)
	if _, ok := hopByHop[canonical]; ok {
		return true
	}
	return side == Request && canonical == "Host"
}

// StripHopByHop returns a copy of h without hop-by-hop headers. On the
// request side Host is removed as well so the transport derives it from the
// target URL. The input is never modified and value order is preserved.
func StripHopByHop(h http.Header, side Side) http.Header {
	out := make(http.Header, len(h))
	for name, values := range h {
		if IsHopByHop(name, side) {
			continue
		}
		canonical := http.CanonicalHeaderKey(name)
		out[canonical] = append(out[canonical], values...)
	}
	return out
}

// ApplyResponsePolicy returns a copy of h with the CORS headers and a public
// Cache-Control of ttlSeconds. Only those four keys are overwritten; every
// other header, including Content-Type, ETag and Last-Modified, is kept.
func ApplyResponsePolicy(h http.Header, ttlSeconds int, cors CORSPolicy) http.Header {
	out := h.Clone()
	if out == nil {
		out = make(http.Header)
	}
	ApplyCORS(out, cors)
	if ttlSeconds < 0 {
		ttlSeconds = 0
	}
	out.Set("Cache-Control", "public, max-age="+strconv.Itoa(ttlSeconds))
	return out
}

// ApplyCORS overwrites the CORS headers of h in place.
func ApplyCORS(h http.Header, cors CORSPolicy) {
	origin := cors.AllowOrigin
	if origin == "" {
		origin = "*"
	}
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", cors.AllowMethods)
	h.Set("Access-Control-Allow-Headers", cors.AllowHeaders)
}
