package routing

import (
	"net/url"
	"strings"
	"time"
)

// Origin is one configured upstream.
type Origin struct {
	Name     string
	BaseURL  *url.URL
	Priority int
	Region   string
}

// Candidate is an origin offered to the pipeline for one request.
type Candidate struct {
	Name     string
	BaseURL  *url.URL
	Priority int
}

// Target returns the absolute upstream URL for an escaped request path and
// raw query. The query is appended verbatim so the result is byte-stable.
func (c Candidate) Target(escapedPath, rawQuery string) string {
	base := *c.BaseURL
	base.RawQuery = ""
	base.Fragment = ""

	var b strings.Builder
	b.WriteString(strings.TrimRight(base.String(), "/"))
	if !strings.HasPrefix(escapedPath, "/") {
		b.WriteByte('/')
	}
	b.WriteString(escapedPath)
	if rawQuery != "" {
		b.WriteByte('?')
		b.WriteString(rawQuery)
	}
	return b.String()
}

// Route is a resolved routing decision: where to send the request and how
// to cache the answer.
type Route struct {
	Name     string
	Class    string
	Prefixes []string

	// Selector yields the ordered origin candidates.
	Selector *Selector

	// TTL is both the cache lifetime and the advertised max-age.
	TTL time.Duration

	// Cache enables the response cache.
	Cache bool

	// Store names the response store used when Cache is set.
	Store string

	// Failover tries candidates in order and accepts only an exact 200.
	Failover bool

	// FollowRedirects lets the upstream client follow 3xx responses.
	FollowRedirects bool
}

// TTLSeconds returns the TTL as whole seconds for Cache-Control.
func (r *Route) TTLSeconds() int {
	return int(r.TTL / time.Second)
}

// RoutingStats is a snapshot of resolution counters.
type RoutingStats struct {
	TotalRequests    int64
	RequestsPerRoute map[string]int64
	Unmatched        int64
	Reloads          int64
	LastResetTime    time.Time
}
