package routing

import (
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"

	"mercator-hq/marquee/pkg/config"
)

type prefixEntry struct {
	prefix string
	route  *Route
}

// table is immutable once published.
type table struct {
	routes   []*Route
	byName   map[string]*Route
	prefixes []prefixEntry // longest first
}

func newTable(routes []*Route) (*table, error) {
	t := &table{
		routes: routes,
		byName: make(map[string]*Route, len(routes)),
	}
	seen := make(map[string]string)
	for _, r := range routes {
		t.byName[r.Name] = r
		for _, p := range r.Prefixes {
			if owner, dup := seen[p]; dup {
				return nil, fmt.Errorf("%w: %q claimed by %q and %q", ErrDuplicatePrefix, p, owner, r.Name)
			}
			seen[p] = r.Name
			t.prefixes = append(t.prefixes, prefixEntry{prefix: p, route: r})
		}
	}
	sort.SliceStable(t.prefixes, func(i, j int) bool {
		return len(t.prefixes[i].prefix) > len(t.prefixes[j].prefix)
	})
	return t, nil
}

// Router resolves request paths to routes.
type Router struct {
	table  atomic.Pointer[table]
	stats  *AtomicRoutingStats
	logger *slog.Logger
}

// NewRouter creates a Router over routes.
func NewRouter(routes []*Route) (*Router, error) {
	t, err := newTable(routes)
	if err != nil {
		return nil, err
	}
	r := &Router{
		stats:  NewAtomicRoutingStats(),
		logger: slog.Default().With("component", "routing.router"),
	}
	r.table.Store(t)
	return r, nil
}

// Resolve returns the route whose prefix is the longest match for path.
func (r *Router) Resolve(path string) (*Route, error) {
	t := r.table.Load()
	for _, e := range t.prefixes {
		if strings.HasPrefix(path, e.prefix) {
			r.stats.recordMatch(e.route.Name)
			return e.route, nil
		}
	}
	r.stats.recordMiss()
	return nil, &RouteNotFoundError{Path: path}
}

// Reload atomically replaces the route table. On error the current table
// stays in place.
func (r *Router) Reload(routes []*Route) error {
	t, err := newTable(routes)
	if err != nil {
		return err
	}
	r.table.Store(t)
	r.stats.recordReload()
	r.logger.Info("route table reloaded", "routes", len(routes), "prefixes", len(t.prefixes))
	return nil
}

// Routes returns the current routes in configured order.
func (r *Router) Routes() []*Route {
	return append([]*Route(nil), r.table.Load().routes...)
}

// Route looks up a route by name.
func (r *Router) Route(name string) (*Route, bool) {
	route, ok := r.table.Load().byName[name]
	return route, ok
}

// Len returns the number of routes.
func (r *Router) Len() int {
	return len(r.table.Load().routes)
}

// Stats returns resolution counters.
func (r *Router) Stats() *RoutingStats {
	return r.stats.Snapshot()
}

// BuildRoutes turns validated route configuration into routes. Origins are
// filtered by region; a route left without origins is an error.
func BuildRoutes(cfgs []config.RouteConfig, region string) ([]*Route, error) {
	routes := make([]*Route, 0, len(cfgs))
	for _, rc := range cfgs {
		origins := make([]Origin, 0, len(rc.Origins))
		for i, oc := range rc.Origins {
			u, err := url.Parse(oc.URL)
			if err != nil {
				return nil, fmt.Errorf("route %q origin %d: %w", rc.Name, i, err)
			}
			name := oc.Name
			if name == "" {
				name = u.Host
			}
			origins = append(origins, Origin{
				Name:     name,
				BaseURL:  u,
				Priority: oc.Priority,
				Region:   oc.Region,
			})
		}

		sel := NewSelector(origins, region, rc.Failover)
		if sel.Len() == 0 {
			return nil, &NoCandidatesError{Route: rc.Name, Region: region}
		}

		routes = append(routes, &Route{
			Name:            rc.Name,
			Class:           rc.Class,
			Prefixes:        append([]string(nil), rc.Prefixes...),
			Selector:        sel,
			TTL:             rc.TTL,
			Cache:           rc.CacheEnabled(),
			Store:           rc.Store,
			Failover:        rc.Failover,
			FollowRedirects: rc.FollowRedirects,
		})
	}
	return routes, nil
}
