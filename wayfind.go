// Package wayfind provides the public API for the Wayfind navigation
// runtime.
//
// This is the recommended import for most applications:
//
//	import "github.com/wayfind-dev/wayfind"
//
// Usage:
//
//	h := wayfind.NewMemoryHistory(wayfind.WithInitialEntries("/"))
//	r, err := wayfind.New(wayfind.Init{
//	    History: h,
//	    Routes: []wayfind.Route{
//	        {Path: "/", Loader: rootLoader, Children: []wayfind.Route{
//	            {Path: "tasks/:id", Loader: taskLoader, Action: taskAction},
//	        }},
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer r.Dispose()
//	unsubscribe := r.Subscribe(func(st wayfind.State) { render(st) })
//	defer unsubscribe()
//	r.Initialize()
//	r.Navigate("/tasks/42")
package wayfind

import (
	"github.com/wayfind-dev/wayfind/pkg/deferred"
	"github.com/wayfind-dev/wayfind/pkg/history"
	"github.com/wayfind-dev/wayfind/pkg/route"
	"github.com/wayfind-dev/wayfind/pkg/router"
)

// =============================================================================
// Router (re-export from pkg/router)
// =============================================================================

// Router is the navigation state machine.
type Router = router.Router

// Init bundles the inputs required to construct a Router.
type Init = router.Init

// State is the full navigation state delivered to subscribers.
type State = router.State

// Subscriber observes committed state replacements.
type Subscriber = router.Subscriber

// Navigation describes the in-flight transition, if any.
type Navigation = router.Navigation

// Fetcher is the observable state of one keyed fetcher.
type Fetcher = router.Fetcher

// Fetcher phases.
const (
	FetcherStateIdle       = router.FetcherStateIdle
	FetcherStateLoading    = router.FetcherStateLoading
	FetcherStateSubmitting = router.FetcherStateSubmitting
)

// HydrationData seeds the initial state with pre-resolved data.
type HydrationData = router.HydrationData

// ScrollHandler saves and restores scroll positions across navigations.
type ScrollHandler = router.ScrollHandler

// RouteError is a status-carrying error produced by the router or thrown
// from loaders and actions via NewResponse.
type RouteError = router.RouteError

// Redirect instructs the router to navigate elsewhere when returned from a
// loader or action.
type Redirect = router.Redirect

// New builds a Router from a route tree and a history collaborator.
var New = router.New

// NewRedirect returns a 302 redirect to location.
var NewRedirect = router.NewRedirect

// NewRouteError builds a keyed route-level error.
var NewRouteError = router.NewRouteError

// IsRouteError reports whether err carries a RouteError and returns it.
var IsRouteError = router.IsRouteError

// Navigation option re-exports.
var (
	WithReplace            = router.WithReplace
	WithState              = router.WithState
	WithSubmission         = router.WithSubmission
	WithPreventScrollReset = router.WithPreventScrollReset
	WithFetchSubmission    = router.WithFetchSubmission
)

// Router option re-exports.
var (
	WithLogger         = router.WithLogger
	WithMetrics        = router.WithMetrics
	WithTracerProvider = router.WithTracerProvider
	WithScrollHandler  = router.WithScrollHandler
)

// =============================================================================
// Routes and matching (re-export from pkg/route)
// =============================================================================

// Route is a user-supplied route definition.
type Route = route.Route

// DataRoute is a converted route with a stable id.
type DataRoute = route.DataRoute

// Match pairs a route with the URL segments it consumed.
type Match = route.Match

// Params holds decoded dynamic segment values.
type Params = route.Params

// Submission describes a form submission driving a navigation or fetcher.
type Submission = route.Submission

// LoaderArgs carries the inputs of a loader or action call.
type LoaderArgs = route.LoaderArgs

// MatchRoutes matches a location against a route tree.
var MatchRoutes = route.MatchRoutes

// MatchPath matches a single pattern against a pathname.
var MatchPath = route.MatchPath

// GeneratePath interpolates params into a route pattern.
var GeneratePath = route.GeneratePath

// CanonicalizePath normalizes a pathname the way Navigate does.
var CanonicalizePath = route.CanonicalizePath

// Errors for destinations rejected by canonicalization, and for
// operations invoked after Dispose.
var (
	ErrBackslashInPath      = route.ErrBackslashInPath
	ErrNullByteInPath       = route.ErrNullByteInPath
	ErrInvalidPercentEscape = route.ErrInvalidPercentEscape
	ErrPathEscapesRoot      = route.ErrPathEscapesRoot
	ErrRouterDisposed       = router.ErrRouterDisposed
)

// =============================================================================
// History (re-export from pkg/history)
// =============================================================================

// History abstracts the session history stack.
type History = history.History

// Location is a history entry with a unique key.
type Location = history.Location

// Path is the pathname/search/hash triple of a location.
type Path = history.Path

// NewMemoryHistory returns an in-memory history, the default for tests and
// non-browser hosts.
var NewMemoryHistory = history.NewMemoryHistory

// Memory history option re-exports.
var (
	WithInitialEntries = history.WithInitialEntries
	WithInitialIndex   = history.WithInitialIndex
)

// =============================================================================
// Deferred data (re-export from pkg/deferred)
// =============================================================================

// Deferred tracks a record of eagerly returned values and still-pending
// promises produced by a loader.
type Deferred = deferred.Data

// Promise is a single in-flight deferred value.
type Promise = deferred.Promise

// NewDeferred wraps a record whose values may include promises.
var NewDeferred = deferred.New

// Defer starts fn and returns a Promise for its result.
var Defer = deferred.Go
