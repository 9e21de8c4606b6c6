// Package route implements the declarative route tree, its conversion into a
// flat addressable form, and URL-to-route matching.
//
// Matching works in three phases: the nested tree is flattened into branches
// (one per route that can stand on its own), branches are scored and ranked,
// and the ranked branches are tried in order against the pathname. The first
// branch whose entire ancestor chain matches wins.
package route

import (
	"context"
	"net/http"
	"net/url"
)

// Params holds the parameter values captured while matching a pathname.
// Keys are fixed per pattern; the wildcard capture is stored under "*".
type Params map[string]string

// Get returns the value for name, or "" when absent.
func (p Params) Get(name string) string { return p[name] }

// Has reports whether name was captured.
func (p Params) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// FormMethod is the verb of a submission or data request.
type FormMethod string

// Submission verbs. Get never drives a mutation submission.
const (
	FormMethodGet    FormMethod = "get"
	FormMethodPost   FormMethod = "post"
	FormMethodPut    FormMethod = "put"
	FormMethodPatch  FormMethod = "patch"
	FormMethodDelete FormMethod = "delete"
)

// IsMutation reports whether the method drives an action rather than loaders.
func (m FormMethod) IsMutation() bool {
	switch m {
	case FormMethodPost, FormMethodPut, FormMethodPatch, FormMethodDelete:
		return true
	}
	return false
}

// Submission is a pending mutation: the verb, target action path, encoding
// and body payload that will drive an action call.
type Submission struct {
	Method  FormMethod
	Action  string
	Enctype string
	Body    url.Values
}

// Request is the request-like descriptor handed to loaders and actions.
// Cancellation travels separately via the context argument.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   url.Values
}

// LoaderArgs carries the inputs to a loader call.
type LoaderArgs struct {
	Request *Request
	Params  Params
	RouteID string
}

// ActionArgs carries the inputs to an action call.
type ActionArgs = LoaderArgs

// Loader fetches data for a route. It may return a plain value, a
// *router.Response, a *deferred.Data, or a redirect; errors are captured
// into the state's errors map, never propagated out of the engine.
type Loader func(ctx context.Context, args LoaderArgs) (any, error)

// Action mutates data for a route. Result handling matches Loader.
type Action func(ctx context.Context, args ActionArgs) (any, error)

// RevalidateArgs is the fixed argument struct for ShouldRevalidate
// predicates. DefaultShouldRevalidate is the engine's computed default;
// predicates that only want to opt out of specific cases return it
// unchanged for everything else.
type RevalidateArgs struct {
	CurrentURL    *url.URL
	CurrentParams Params
	NextURL       *url.URL
	NextParams    Params

	Submission   *Submission
	ActionResult any

	DefaultShouldRevalidate bool
}

// ShouldRevalidateFunc lets a route opt in or out of data revalidation.
type ShouldRevalidateFunc func(args RevalidateArgs) bool

// Route is a node in the declarative route tree.
type Route struct {
	// ID optionally pins the route's identifier. When empty, conversion
	// derives one from the route's position in the tree.
	ID string

	// Path is the relative path pattern. Pathless routes still group
	// their children (layout routes) but contribute no branch.
	Path string

	// Index marks an index route. An index route must not have children.
	Index bool

	// CaseSensitive makes this route's own segment match case-sensitively.
	CaseSensitive bool

	Loader           Loader
	Action           Action
	ShouldRevalidate ShouldRevalidateFunc

	// HasErrorBoundary marks this route as owning an error boundary.
	// Loader and action errors surface at the nearest flagged ancestor.
	HasErrorBoundary bool

	// Handle is opaque data carried through to matches untouched.
	Handle any

	Children []Route
}

// DataRoute is a Route decorated with a stable, globally unique identifier.
// Build them with ConvertRoutesToDataRoutes; the tree is immutable after
// conversion.
type DataRoute struct {
	ID            string
	Path          string
	Index         bool
	CaseSensitive bool

	Loader           Loader
	Action           Action
	ShouldRevalidate ShouldRevalidateFunc

	HasErrorBoundary bool
	Handle           any

	Children []*DataRoute
}

// Match is the result of testing one route of a branch against a pathname.
// An ordered slice of matches (root to leaf) is the unit of "what matched".
type Match struct {
	// Params are the captured parameters, merged across ancestors.
	Params Params

	// Pathname is the portion of the URL matched so far, including this
	// route's own segment.
	Pathname string

	// PathnameBase is Pathname excluding any trailing wildcard capture
	// and trailing slashes. Descendants match against what follows it.
	PathnameBase string

	// Route is the matched route definition.
	Route *DataRoute
}
