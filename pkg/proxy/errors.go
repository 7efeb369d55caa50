package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"mercator-hq/marquee/pkg/admission"
	"mercator-hq/marquee/pkg/proxy/types"
	"mercator-hq/marquee/pkg/routing"
)

var (
	// ErrUpstreamUnreachable marks a transport fault against one candidate.
	ErrUpstreamUnreachable = errors.New("upstream unreachable")

	// ErrUpstreamStatus marks a candidate rejected for its status code.
	ErrUpstreamStatus = errors.New("upstream rejected")

	// ErrAllCandidatesExhausted means no candidate produced an accepted response.
	ErrAllCandidatesExhausted = errors.New("all candidates exhausted")
)

// UpstreamUnreachableError is a transport-level failure against one origin.
type UpstreamUnreachableError struct {
	Origin string
	Err    error
}

// Error implements the error interface.
func (e *UpstreamUnreachableError) Error() string {
	return fmt.Sprintf("origin %s unreachable: %v", e.Origin, e.Err)
}

// Is implements error matching for errors.Is().
func (e *UpstreamUnreachableError) Is(target error) bool {
	return target == ErrUpstreamUnreachable
}

// Unwrap returns the transport error.
func (e *UpstreamUnreachableError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the attempt ran out of time.
func (e *UpstreamUnreachableError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// UpstreamStatusError is a failover candidate that answered with anything
// other than 200.
type UpstreamStatusError struct {
	Origin     string
	StatusCode int
}

// Error implements the error interface.
func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("origin %s answered %d", e.Origin, e.StatusCode)
}

// Is implements error matching for errors.Is().
func (e *UpstreamStatusError) Is(target error) bool {
	return target == ErrUpstreamStatus
}

// AllCandidatesExhaustedError carries the per-candidate failures in
// attempt order.
type AllCandidatesExhaustedError struct {
	Route    string
	Attempts []error
}

// Error implements the error interface.
func (e *AllCandidatesExhaustedError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, err := range e.Attempts {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("route %s: all %d candidates failed (%s)", e.Route, len(e.Attempts), strings.Join(parts, "; "))
}

// Is implements error matching for errors.Is().
func (e *AllCandidatesExhaustedError) Is(target error) bool {
	return target == ErrAllCandidatesExhausted
}

// Unwrap exposes the individual attempt errors.
func (e *AllCandidatesExhaustedError) Unwrap() []error {
	return e.Attempts
}

// AllNotFound reports whether every candidate answered 404.
func (e *AllCandidatesExhaustedError) AllNotFound() bool {
	if len(e.Attempts) == 0 {
		return false
	}
	for _, err := range e.Attempts {
		var se *UpstreamStatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
			return false
		}
	}
	return true
}

// AllTimedOut reports whether every attempt ran out of time.
func (e *AllCandidatesExhaustedError) AllTimedOut() bool {
	if len(e.Attempts) == 0 {
		return false
	}
	for _, err := range e.Attempts {
		var ue *UpstreamUnreachableError
		if !errors.As(err, &ue) || !ue.Timeout() {
			return false
		}
	}
	return true
}

// HandleError maps a request-fatal error onto the JSON error envelope.
//
// Unknown errors map to an internal error with a generic message.
//
// Example usage:
//
//	if err != nil {
//	    errResp := HandleError(err)
//	    w.WriteHeader(errResp.Error.HTTPStatusCode())
//	    json.NewEncoder(w).Encode(errResp)
//	    return
//	}
func HandleError(err error) *types.ErrorResponse {
	var exhausted *AllCandidatesExhaustedError
	if errors.As(err, &exhausted) {
		switch {
		case exhausted.AllNotFound():
			return types.NewNotFoundError("Resource not found on any origin", types.CodeNotFound)
		case exhausted.AllTimedOut():
			return types.NewGatewayTimeoutError("Upstream origins timed out")
		default:
			return types.NewBadGatewayError("All upstream origins failed")
		}
	}

	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return types.NewErrorResponse(
			fmt.Sprintf("request body exceeds %d bytes", maxBytes.Limit),
			types.ErrorTypeRequestTooLarge,
			types.CodeRequestTooLarge,
		)
	}

	switch {
	case errors.Is(err, routing.ErrRouteNotFound):
		return types.NewNotFoundError("No route for this path", types.CodeRouteNotFound)
	case errors.Is(err, admission.ErrAdmissionTimeout):
		return types.NewServiceUnavailableError("Too many requests in flight, try again", types.CodeAdmissionTimeout)
	case errors.Is(err, routing.ErrNoCandidates):
		return types.NewBadGatewayError("No upstream origin available")
	}

	return types.NewServerError("An internal error occurred. Please try again later.")
}
