package routing

import (
	"errors"
	"fmt"
)

var (
	// ErrRouteNotFound is returned when no route prefix matches a path.
	ErrRouteNotFound = errors.New("route not found")

	// ErrNoCandidates is returned when a route has no usable origin.
	ErrNoCandidates = errors.New("no origin candidates")

	// ErrDuplicatePrefix is returned when two routes claim the same prefix.
	ErrDuplicatePrefix = errors.New("duplicate route prefix")
)

// RouteNotFoundError records the path that failed to resolve.
type RouteNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("no route for path %q", e.Path)
}

// Is implements error matching for errors.Is().
func (e *RouteNotFoundError) Is(target error) bool {
	return target == ErrRouteNotFound
}

// NoCandidatesError is returned when region filtering or configuration
// leaves a route without origins.
type NoCandidatesError struct {
	Route  string
	Region string
}

// Error implements the error interface.
func (e *NoCandidatesError) Error() string {
	if e.Region != "" {
		return fmt.Sprintf("route %q has no origins for region %q", e.Route, e.Region)
	}
	return fmt.Sprintf("route %q has no origins", e.Route)
}

// Is implements error matching for errors.Is().
func (e *NoCandidatesError) Is(target error) bool {
	return target == ErrNoCandidates
}
