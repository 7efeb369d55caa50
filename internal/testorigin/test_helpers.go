package testorigin

import (
	"net/url"
	"testing"
	"time"

	"mercator-hq/marquee/pkg/config"
	"mercator-hq/marquee/pkg/routing"
)

// Origin builds a routing origin pointing at baseURL.
func Origin(t *testing.T, name, baseURL string, priority int) routing.Origin {
	t.Helper()

	u, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("parse origin url %q: %v", baseURL, err)
	}
	return routing.Origin{Name: name, BaseURL: u, Priority: priority}
}

// Route builds a cached API route over origins. Failover routes accept only
// an exact 200 from each candidate.
func Route(name string, failover bool, ttl time.Duration, origins ...routing.Origin) *routing.Route {
	return &routing.Route{
		Name:     name,
		Class:    config.ClassAPI,
		Prefixes: []string{"/"},
		Selector: routing.NewSelector(origins, "", failover),
		TTL:      ttl,
		Cache:    true,
		Store:    config.StoreMemory,
		Failover: failover,
	}
}

// MediaRoute builds a failover media route that follows redirects.
func MediaRoute(name string, ttl time.Duration, origins ...routing.Origin) *routing.Route {
	r := Route(name, true, ttl, origins...)
	r.Class = config.ClassMedia
	r.FollowRedirects = true
	return r
}
