package router

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrRouterDisposed is returned by operations invoked after Dispose.
var ErrRouterDisposed = errors.New("router: disposed")

// RouteError is an HTTP-flavored error produced by the engine (404 when no
// route matches, 405 when a submission targets a route without an action) or
// by loaders and actions that want a status attached to their failure.
//
// RouteErrors are never thrown out of the state machine; they land in the
// committed state's Errors map keyed by the nearest boundary route id.
type RouteError struct {
	Status     int
	StatusText string
	Data       any

	// internal marks errors synthesized by the engine itself, as opposed
	// to values surfaced from user loaders/actions.
	internal bool
}

// Error implements the error interface.
func (e *RouteError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.StatusText, e.Data)
	}
	return fmt.Sprintf("%d %s", e.Status, e.StatusText)
}

// Internal reports whether the engine itself produced this error.
func (e *RouteError) Internal() bool { return e.internal }

// NewRouteError builds a RouteError with the given status and payload.
func NewRouteError(status int, data any) *RouteError {
	return &RouteError{Status: status, StatusText: http.StatusText(status), Data: data}
}

// IsRouteError unwraps err into a *RouteError if possible.
func IsRouteError(err error) (*RouteError, bool) {
	var re *RouteError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

func notFoundError(pathname string) *RouteError {
	return &RouteError{
		Status:     http.StatusNotFound,
		StatusText: http.StatusText(http.StatusNotFound),
		Data:       fmt.Sprintf("No route matches URL %q", pathname),
		internal:   true,
	}
}

func methodNotAllowedError(method, pathname, routeID string) *RouteError {
	return &RouteError{
		Status:     http.StatusMethodNotAllowed,
		StatusText: http.StatusText(http.StatusMethodNotAllowed),
		Data: fmt.Sprintf("You made a %s request to %q but did not provide an action for route %q, so there is no way to handle the request",
			method, pathname, routeID),
		internal: true,
	}
}

func badRequestError(detail string) *RouteError {
	return &RouteError{
		Status:     http.StatusBadRequest,
		StatusText: http.StatusText(http.StatusBadRequest),
		Data:       detail,
		internal:   true,
	}
}
