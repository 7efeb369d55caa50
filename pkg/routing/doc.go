// Package routing decides which upstream origins and cache policy apply to
// an inbound path.
//
// A Router holds an immutable route table behind an atomic pointer. Resolve
// picks the route with the longest matching path prefix; Reload swaps in a
// new table built from configuration without disturbing requests that
// already resolved against the old one.
//
// Each Route owns a Selector, the origin selector of the edge: it yields the
// route's origins as candidates sorted by ascending priority. Routes without
// failover always yield exactly one candidate.
package routing
