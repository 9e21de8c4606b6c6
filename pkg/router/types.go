// Package router implements the navigation state machine: it owns the
// observable navigation state, drives navigations and submissions through
// route matching and loader/action invocation, follows redirects, applies
// the revalidation policy, and runs independent keyed fetcher operations
// concurrently with the main navigation.
package router

import (
	"github.com/wayfind-dev/wayfind/pkg/deferred"
	"github.com/wayfind-dev/wayfind/pkg/history"
	"github.com/wayfind-dev/wayfind/pkg/route"
)

// Convenience aliases so embedders rarely need to import pkg/route directly.
type (
	// Submission is a pending mutation driving an action call.
	Submission = route.Submission

	// Params holds captured route parameters.
	Params = route.Params
)

// NavigationState is the phase of the main navigation.
type NavigationState string

const (
	NavigationStateIdle       NavigationState = "idle"
	NavigationStateLoading    NavigationState = "loading"
	NavigationStateSubmitting NavigationState = "submitting"
)

// Navigation describes the in-flight main navigation. Location and
// Submission are only meaningful outside the idle state.
type Navigation struct {
	State      NavigationState
	Location   history.Location
	Submission *route.Submission
}

// IdleNavigation is the navigation value between navigations.
var IdleNavigation = Navigation{State: NavigationStateIdle}

// RevalidationState is the phase of an explicit revalidation.
type RevalidationState string

const (
	RevalidationIdle    RevalidationState = "idle"
	RevalidationLoading RevalidationState = "loading"
)

// FetcherState is the phase of one keyed fetcher.
type FetcherState string

const (
	FetcherStateIdle       FetcherState = "idle"
	FetcherStateLoading    FetcherState = "loading"
	FetcherStateSubmitting FetcherState = "submitting"
)

// Fetcher is the observable state of one independent, keyed data operation.
type Fetcher struct {
	State      FetcherState
	Data       any
	Submission *route.Submission
}

// IdleFetcher is the state of a fetcher with no operation in flight.
var IdleFetcher = Fetcher{State: FetcherStateIdle}

// State is the full observable router state. It is replaced wholesale on
// every committed change and broadcast to subscribers; it is never mutated
// in place.
type State struct {
	// HistoryAction is the kind of the navigation that produced Location.
	HistoryAction history.Action

	// Location is the current committed location.
	Location history.Location

	// Matches is the current match chain, root to leaf.
	Matches []*route.Match

	// Initialized is false until the first data load settles.
	Initialized bool

	// Navigation is the in-flight main navigation, if any.
	Navigation Navigation

	// Revalidation tracks explicit Revalidate calls.
	Revalidation RevalidationState

	// LoaderData maps route id to that route's committed loader result.
	// Routes with partially-resolved data hold a *deferred.Data value.
	LoaderData map[string]any

	// ActionData maps route id to the most recent action result. Cleared
	// on the next completed navigation.
	ActionData map[string]any

	// Errors maps boundary route id to the error captured for it. This is
	// the sole channel through which failures reach the consumer.
	Errors map[string]error

	// Fetchers maps fetcher key to that fetcher's state.
	Fetchers map[string]Fetcher

	// RestoreScrollPosition is the saved scroll position to restore for
	// this location, when a ScrollHandler is installed and has one.
	RestoreScrollPosition *int

	// PreventScrollReset is set when the committing navigation asked to
	// keep the current scroll position.
	PreventScrollReset bool
}

// GetFetcher returns the fetcher for key, or IdleFetcher when absent.
// The value receiver keeps it callable on the value State() returns.
func (s State) GetFetcher(key string) Fetcher {
	if f, ok := s.Fetchers[key]; ok {
		return f
	}
	return IdleFetcher
}

// DeferredData returns the route's loader data as a *deferred.Data if it is
// (or was) partially resolved.
func (s State) DeferredData(routeID string) (*deferred.Data, bool) {
	dd, ok := s.LoaderData[routeID].(*deferred.Data)
	return dd, ok
}

// Subscriber receives every committed state replacement, synchronously.
type Subscriber func(State)

// ScrollHandler is the external collaborator that persists and recalls
// scroll positions. The engine saves on navigation start and asks for a
// position to restore when committing.
type ScrollHandler interface {
	SaveScrollPosition(location history.Location, matches []*route.Match)
	GetScrollPosition(location history.Location) (position int, ok bool)
}

// HydrationData pre-populates state for a router whose first load already
// happened elsewhere (e.g. server-rendered payloads).
type HydrationData struct {
	LoaderData map[string]any
	ActionData map[string]any
	Errors     map[string]error
}

// Init carries the constructor inputs for New.
type Init struct {
	// Routes is the declarative route tree. Required.
	Routes []route.Route

	// History is the session-history collaborator. Required.
	History history.History

	// Basename is stripped from every matched pathname and prefixed onto
	// every resolved destination. Defaults to "/".
	Basename string

	// HydrationData marks the router initialized with the given data.
	HydrationData *HydrationData
}

// NavigateOptions configures a Navigate call.
type NavigateOptions struct {
	// Replace replaces the current history entry instead of pushing.
	Replace bool

	// State is the opaque history state for the new entry.
	State any

	// Submission drives an action call before loaders run.
	Submission *route.Submission

	// PreventScrollReset keeps the current scroll position on commit.
	PreventScrollReset bool
}

// NavigateOption is a functional option for Navigate.
type NavigateOption func(*NavigateOptions)

// WithReplace replaces the current history entry instead of pushing.
func WithReplace() NavigateOption {
	return func(o *NavigateOptions) { o.Replace = true }
}

// WithState sets the opaque history state for the new entry.
func WithState(state any) NavigateOption {
	return func(o *NavigateOptions) { o.State = state }
}

// WithSubmission attaches a submission, turning the navigation into a
// mutation (action call followed by revalidation).
func WithSubmission(s *route.Submission) NavigateOption {
	return func(o *NavigateOptions) { o.Submission = s }
}

// WithPreventScrollReset keeps the current scroll position on commit.
func WithPreventScrollReset() NavigateOption {
	return func(o *NavigateOptions) { o.PreventScrollReset = true }
}

// FetchOptions configures a Fetch call.
type FetchOptions struct {
	// Submission turns the fetch into a mutation: the target action runs,
	// then the routes the revalidation policy selects are reloaded.
	Submission *route.Submission
}

// FetchOption is a functional option for Fetch.
type FetchOption func(*FetchOptions)

// WithFetchSubmission attaches a submission to the fetch.
func WithFetchSubmission(s *route.Submission) FetchOption {
	return func(o *FetchOptions) { o.Submission = s }
}
