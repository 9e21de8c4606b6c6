package router

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wayfind-dev/wayfind/pkg/deferred"
	"github.com/wayfind-dev/wayfind/pkg/history"
	"github.com/wayfind-dev/wayfind/pkg/route"
)

// Router is the navigation state machine. It owns the current State, drives
// navigations through matching, action/loader invocation, redirects and
// revalidation, and runs keyed fetchers concurrently with the main
// navigation.
//
// At most one main navigation is in flight; starting a new one cancels the
// previous one's context, and the superseded navigation's results are
// discarded. All state transitions happen through a single replace-and-notify
// step, so subscribers never observe partial states.
type Router struct {
	routes   []*route.DataRoute
	history  history.History
	basename string

	log     *zap.Logger
	metrics *metrics
	tracer  trace.Tracer
	scroll  ScrollHandler

	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu               sync.Mutex
	state            State
	subscribers      map[int]Subscriber
	nextSubscriberID int
	disposed         bool
	unlistenHistory  func()

	// Per-navigation bookkeeping, reset on every commit.
	pendingAction               history.Action
	pendingNavCtx               context.Context
	pendingNavCancel            context.CancelFunc
	pendingPreventScrollReset   bool
	isUninterruptedRevalidation bool

	// Revalidation bookkeeping.
	isRevalidationRequired  bool
	cancelledDeferredRoutes map[string]struct{}
	cancelledFetcherLoads   map[string]struct{}
	activeDeferreds         map[string]*deferred.Data

	// Fetcher bookkeeping.
	fetchControllers        map[string]*fetchController
	fetchLoadMatches        map[string]*fetchLoadEntry
	fetchReloadIDs          map[string]uint64
	fetchRedirectIDs        map[string]struct{}
	incrementingLoadID      uint64
	pendingNavigationLoadID uint64
}

type fetchController struct {
	ctx    context.Context
	cancel context.CancelFunc
}

type fetchLoadEntry struct {
	routeID string
	path    string
}

// navOpts carries the internal inputs of one startNavigation call.
type navOpts struct {
	submission         *route.Submission
	overrideNavigation *Navigation
	replace            bool
	preventScrollReset bool
	uninterrupted      bool
}

// commit describes the state changes of a settling navigation.
type commit struct {
	matches    []*route.Match
	loaderData map[string]any
	errors     map[string]error
	actionData map[string]any
	fetchers   map[string]Fetcher

	// keepData retains loaderData/actionData/errors unchanged (fragment-only
	// navigations).
	keepData bool

	metricResult string
}

// New builds a Router from the given route tree and history collaborator.
// Configuration problems (duplicate route ids, index routes with children,
// invalid absolute paths) are fatal here rather than at navigation time.
func New(init Init, opts ...Option) (*Router, error) {
	if init.History == nil {
		return nil, errors.New("router: history is required")
	}
	if len(init.Routes) == 0 {
		return nil, errors.New("router: at least one route is required")
	}
	dataRoutes, err := route.ConvertRoutesToDataRoutes(init.Routes)
	if err != nil {
		return nil, err
	}
	basename := init.Basename
	if basename == "" {
		basename = "/"
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	r := &Router{
		routes:                  dataRoutes,
		history:                 init.History,
		basename:                basename,
		log:                     cfg.log,
		metrics:                 cfg.metrics,
		tracer:                  cfg.tracer,
		scroll:                  cfg.scroll,
		rootCtx:                 rootCtx,
		rootCancel:              rootCancel,
		subscribers:             make(map[int]Subscriber),
		pendingAction:           history.ActionPop,
		cancelledDeferredRoutes: make(map[string]struct{}),
		cancelledFetcherLoads:   make(map[string]struct{}),
		activeDeferreds:         make(map[string]*deferred.Data),
		fetchControllers:        make(map[string]*fetchController),
		fetchLoadMatches:        make(map[string]*fetchLoadEntry),
		fetchReloadIDs:          make(map[string]uint64),
		fetchRedirectIDs:        make(map[string]struct{}),
	}

	loc := init.History.Location()
	st := State{
		HistoryAction: init.History.Action(),
		Location:      loc,
		Navigation:    IdleNavigation,
		Revalidation:  RevalidationIdle,
		LoaderData:    make(map[string]any),
		Fetchers:      make(map[string]Fetcher),
	}

	matches := route.MatchRoutesWithLogger(dataRoutes, loc.Path, basename, cfg.log)
	if matches == nil {
		shortMatches, boundaryID := shortCircuitMatches(dataRoutes)
		st.Matches = shortMatches
		st.Initialized = true
		st.Errors = map[string]error{boundaryID: notFoundError(loc.Pathname)}
	} else {
		st.Matches = matches
		switch {
		case init.HydrationData != nil:
			st.Initialized = true
			st.LoaderData = copyAnyMap(init.HydrationData.LoaderData)
			if len(init.HydrationData.ActionData) > 0 {
				st.ActionData = copyAnyMap(init.HydrationData.ActionData)
			}
			if len(init.HydrationData.Errors) > 0 {
				st.Errors = copyErrorMap(init.HydrationData.Errors)
			}
		default:
			st.Initialized = !matchesHaveLoaders(matches)
		}
	}
	r.state = st
	return r, nil
}

// Initialize wires the history listener and, when the router is not yet
// initialized, runs the initial data load. It blocks until that load
// settles; subscribe beforehand to observe intermediate states.
func (r *Router) Initialize() *Router {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return r
	}
	r.unlistenHistory = r.history.Listen(func(u history.Update) {
		r.startNavigation(history.ActionPop, u.Location, navOpts{})
	})
	needsLoad := !r.state.Initialized
	loc := r.state.Location
	r.mu.Unlock()

	if needsLoad {
		r.startNavigation(history.ActionPop, loc, navOpts{})
	}
	return r
}

// State returns the current committed state.
func (r *Router) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Routes returns the converted route tree.
func (r *Router) Routes() []*route.DataRoute { return r.routes }

// Basename returns the configured basename.
func (r *Router) Basename() string { return r.basename }

// Subscribe registers a subscriber invoked synchronously with every
// committed state replacement. The returned function unsubscribes.
func (r *Router) Subscribe(fn Subscriber) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSubscriberID
	r.nextSubscriberID++
	r.subscribers[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subscribers, id)
	}
}

// Navigate resolves to against the active matches and starts a navigation.
// It blocks until the navigation settles, is superseded, or redirects into
// a new navigation (in which case it blocks until that one settles).
func (r *Router) Navigate(to string, opts ...NavigateOption) error {
	var o NavigateOptions
	for _, opt := range opts {
		opt(&o)
	}

	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return ErrRouterDisposed
	}
	path := r.normalizeToLocked(history.ParsePath(to))
	pathname, err := route.CanonicalizePath(path.Pathname)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	path.Pathname = pathname
	submission := o.Submission
	if submission != nil && !submission.Method.IsMutation() {
		// GET submissions serialize the body into the search string and
		// run as plain loading navigations.
		if len(submission.Body) > 0 {
			path.Search = "?" + submission.Body.Encode()
		}
		submission = nil
	}
	location := history.CreateLocation(r.state.Location, path, o.State, "")
	action := history.ActionPush
	if o.Replace || history.CreatePath(path) == history.CreatePath(r.state.Location.Path) {
		action = history.ActionReplace
	}
	r.mu.Unlock()

	r.startNavigation(action, location, navOpts{
		submission:         submission,
		replace:            action == history.ActionReplace,
		preventScrollReset: o.PreventScrollReset,
	})
	return nil
}

// Go traverses the history stack; the resulting pop event drives a
// navigation through the history listener.
func (r *Router) Go(delta int) { r.history.Go(delta) }

// CreateHref returns the href for a destination, resolved the same way
// Navigate would resolve it.
func (r *Router) CreateHref(to string) string {
	r.mu.Lock()
	path := r.normalizeToLocked(history.ParsePath(to))
	r.mu.Unlock()
	return r.history.CreateHref(path)
}

// Revalidate re-runs the loaders for the current matches. If a navigation is
// in flight it is restarted with revalidation forced; otherwise the current
// location reloads in place without touching history.
func (r *Router) Revalidate() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.interruptActiveLoadsLocked()
	st := r.state
	st.Revalidation = RevalidationLoading
	notify := r.updateStateLocked(st)
	nav := st.Navigation
	action := r.pendingAction
	loc := st.Location
	if nav.State == NavigationStateIdle {
		action = st.HistoryAction
	} else {
		loc = nav.Location
	}
	r.mu.Unlock()
	notify()

	if nav.State == NavigationStateIdle {
		r.startNavigation(action, loc, navOpts{uninterrupted: true})
		return
	}
	override := nav
	r.startNavigation(action, loc, navOpts{overrideNavigation: &override})
}

// Dispose shuts the router down: the history listener is removed, all
// in-flight work is aborted, active deferreds are cancelled, and all
// subscribers are dropped. The router is unusable afterwards.
func (r *Router) Dispose() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.disposed = true
	if r.unlistenHistory != nil {
		r.unlistenHistory()
		r.unlistenHistory = nil
	}
	if r.pendingNavCancel != nil {
		r.pendingNavCancel()
		r.pendingNavCancel = nil
		r.pendingNavCtx = nil
	}
	for key := range r.fetchControllers {
		r.abortFetcherLocked(key)
	}
	dds := make([]*deferred.Data, 0, len(r.activeDeferreds))
	for id, dd := range r.activeDeferreds {
		dds = append(dds, dd)
		delete(r.activeDeferreds, id)
	}
	r.subscribers = make(map[int]Subscriber)
	r.rootCancel()
	r.mu.Unlock()

	for _, dd := range dds {
		dd.Cancel()
	}
}

// updateStateLocked replaces the state wholesale and returns the notifier
// to run after the lock is released. Subscribers are invoked synchronously
// in subscription order.
func (r *Router) updateStateLocked(st State) func() {
	r.state = st
	ids := make([]int, 0, len(r.subscribers))
	for id := range r.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]Subscriber, len(ids))
	for i, id := range ids {
		subs[i] = r.subscribers[id]
	}
	return func() {
		for _, fn := range subs {
			fn(st)
		}
	}
}

// startNavigation is the single entry point for every navigation: user
// navigations, history pops, redirects and revalidations.
func (r *Router) startNavigation(action history.Action, location history.Location, opts navOpts) {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}

	// Interrupt any in-flight navigation; its results are discarded.
	if r.pendingNavCancel != nil {
		r.pendingNavCancel()
		r.pendingNavCancel = nil
		r.pendingNavCtx = nil
	}
	if r.scroll != nil {
		r.scroll.SaveScrollPosition(r.state.Location, r.state.Matches)
	}
	r.pendingAction = action
	r.pendingPreventScrollReset = opts.preventScrollReset
	r.isUninterruptedRevalidation = opts.uninterrupted

	matches := route.MatchRoutesWithLogger(r.routes, location.Path, r.basename, r.log)

	if matches == nil {
		// Nothing matched: record a 404 against the root-most boundary
		// and settle immediately.
		shortMatches, boundaryID := shortCircuitMatches(r.routes)
		r.cancelActiveDeferredsLocked(nil)
		notify := r.completeNavigationLocked(location, commit{
			matches:      shortMatches,
			loaderData:   map[string]any{},
			errors:       map[string]error{boundaryID: notFoundError(location.Pathname)},
			metricResult: navResultNotFound,
		})
		r.mu.Unlock()
		notify()
		return
	}

	// Fragment-only changes reuse all current data.
	if r.state.Initialized && opts.submission == nil && isHashChangeOnly(r.state.Location.Path, location.Path) {
		notify := r.completeNavigationLocked(location, commit{matches: matches, keepData: true})
		r.mu.Unlock()
		notify()
		return
	}

	ctx, cancel := context.WithCancel(r.rootCtx)
	ctx, span := r.tracer.Start(ctx, "router.navigate", trace.WithAttributes(
		attribute.String("wayfind.pathname", location.Pathname),
		attribute.String("wayfind.history_action", string(action)),
	))
	defer span.End()
	// The staleness guards compare against this exact context, so it must
	// be the span-wrapped one handed to handleAction and handleLoaders.
	r.pendingNavCtx, r.pendingNavCancel = ctx, cancel
	r.mu.Unlock()

	var pendingActionData map[string]any
	var pendingError map[string]error
	if opts.submission != nil && opts.submission.Method.IsMutation() {
		outcome := r.handleAction(ctx, location, opts.submission, matches, opts.replace)
		if outcome.shortCircuited {
			return
		}
		pendingActionData = outcome.actionData
		pendingError = outcome.errors
	}

	r.handleLoaders(ctx, location, matches, opts, pendingActionData, pendingError)
}

type actionOutcome struct {
	shortCircuited bool
	actionData     map[string]any
	errors         map[string]error
}

// handleAction runs the matched leaf's action for a mutation submission.
func (r *Router) handleAction(ctx context.Context, location history.Location, submission *route.Submission, matches []*route.Match, replace bool) actionOutcome {
	r.mu.Lock()
	if r.pendingNavCtx != ctx || r.disposed {
		r.mu.Unlock()
		return actionOutcome{shortCircuited: true}
	}
	// Mutations invalidate everything: cancel in-flight deferreds and
	// fetcher loads and force revalidation of all matched routes.
	r.interruptActiveLoadsLocked()
	st := r.state
	st.Navigation = Navigation{State: NavigationStateSubmitting, Location: location, Submission: submission}
	notify := r.updateStateLocked(st)
	r.mu.Unlock()
	notify()

	actionMatch := getTargetMatch(matches, location.Path)
	var result dataResult
	if actionMatch.Route.Action == nil {
		result = errorResult(methodNotAllowedError(string(submission.Method), location.Pathname, actionMatch.Route.ID))
	} else {
		req := createRequest(location.Path, submission)
		result = r.callHandler(ctx, handlerAction, req, actionMatch, matches)
	}
	if ctx.Err() != nil {
		return actionOutcome{shortCircuited: true}
	}

	switch result.typ {
	case resultRedirect:
		r.startRedirectNavigation(ctx, result.redirect, submission, replace)
		return actionOutcome{shortCircuited: true}
	case resultDeferred:
		result = errorResult(badRequestError("deferred data is not supported in actions"))
		fallthrough
	case resultError:
		boundary := findNearestBoundary(matches, actionMatch.Route.ID)
		r.mu.Lock()
		if !replace {
			// Push so the back button returns to the pre-submission form.
			r.pendingAction = history.ActionPush
		}
		r.mu.Unlock()
		return actionOutcome{errors: map[string]error{boundary.Route.ID: result.err}}
	default:
		return actionOutcome{actionData: map[string]any{actionMatch.Route.ID: result.data}}
	}
}

// handleLoaders runs the revalidation policy, dispatches the selected
// loaders (and revalidating fetcher loads) in parallel, joins them, applies
// redirects, and commits the merged result.
func (r *Router) handleLoaders(ctx context.Context, location history.Location, matches []*route.Match, opts navOpts, pendingActionData map[string]any, pendingError map[string]error) {
	r.mu.Lock()
	if r.pendingNavCtx != ctx || r.disposed {
		r.mu.Unlock()
		return
	}

	loadingNavigation := Navigation{State: NavigationStateLoading, Location: location, Submission: opts.submission}
	if opts.overrideNavigation != nil {
		loadingNavigation = *opts.overrideNavigation
	}
	activeSubmission := opts.submission
	if activeSubmission == nil {
		activeSubmission = loadingNavigation.Submission
	}

	r.incrementingLoadID++
	r.pendingNavigationLoadID = r.incrementingLoadID

	matchesToLoad, revalidatingFetchers := r.getMatchesToLoadLocked(location, matches, activeSubmission, pendingActionData, pendingError)

	// Deferreds for routes that are gone, or that are about to reload,
	// are dead weight.
	r.cancelActiveDeferredsLocked(func(routeID string) bool {
		if !matchesContainRoute(matches, routeID) {
			return true
		}
		return matchesContainRoute(matchesToLoad, routeID)
	})

	if len(matchesToLoad) == 0 && len(revalidatingFetchers) == 0 {
		notify := r.completeNavigationLocked(location, commit{
			matches:    matches,
			loaderData: map[string]any{},
			errors:     pendingError,
			actionData: pendingActionData,
		})
		r.mu.Unlock()
		notify()
		return
	}

	var notify func()
	if !r.isUninterruptedRevalidation {
		st := r.state
		st.Navigation = loadingNavigation
		if pendingActionData != nil {
			st.ActionData = pendingActionData
		}
		if len(revalidatingFetchers) > 0 {
			fetchers := copyFetchers(st.Fetchers)
			for _, rf := range revalidatingFetchers {
				fetchers[rf.key] = Fetcher{State: FetcherStateLoading, Data: fetchers[rf.key].Data}
			}
			st.Fetchers = fetchers
		}
		notify = r.updateStateLocked(st)
	}
	r.mu.Unlock()
	if notify != nil {
		notify()
	}

	navResults, fetcherResults := r.callLoadersAndResolveDeferreds(ctx, location, matches, matchesToLoad, revalidatingFetchers)
	if ctx.Err() != nil {
		return
	}

	all := append(append([]dataResult(nil), navResults...), fetcherResults...)
	if redirect := findRedirect(all); redirect != nil {
		r.startRedirectNavigation(ctx, redirect, activeSubmission, opts.replace)
		return
	}

	r.mu.Lock()
	if r.pendingNavCtx != ctx || r.disposed {
		r.mu.Unlock()
		return
	}
	loaderData, errs, fetchers := r.processLoaderDataLocked(matches, matchesToLoad, navResults, pendingError, revalidatingFetchers, fetcherResults)
	notify = r.completeNavigationLocked(location, commit{
		matches:    matches,
		loaderData: loaderData,
		errors:     errs,
		actionData: pendingActionData,
		fetchers:   fetchers,
	})
	r.mu.Unlock()
	notify()
}

// completeNavigationLocked commits a settling navigation: it replaces the
// state, persists history exactly once (push/replace/no-op depending on the
// recorded action kind), resolves scroll restoration and resets all
// per-navigation bookkeeping. Returns the subscriber notifier.
func (r *Router) completeNavigationLocked(location history.Location, c commit) func() {
	st := r.state
	st.HistoryAction = r.pendingAction
	st.Location = location
	st.Matches = c.matches
	st.Initialized = true
	st.Navigation = IdleNavigation
	st.Revalidation = RevalidationIdle

	if !c.keepData {
		if c.loaderData != nil {
			st.LoaderData = mergeLoaderData(r.state.LoaderData, c.loaderData, c.matches, c.errors)
		}
		st.ActionData = c.actionData
		st.Errors = c.errors
	}
	if c.fetchers != nil {
		st.Fetchers = c.fetchers
	}

	// Fetchers parked in loading while their redirect navigated land now.
	if len(r.fetchRedirectIDs) > 0 {
		fetchers := copyFetchers(st.Fetchers)
		for key := range r.fetchRedirectIDs {
			if f, ok := fetchers[key]; ok && f.State == FetcherStateLoading {
				fetchers[key] = Fetcher{State: FetcherStateIdle, Data: f.Data}
			}
			delete(r.fetchRedirectIDs, key)
		}
		st.Fetchers = fetchers
	}

	// History is only touched once the navigation has fully settled.
	if !r.isUninterruptedRevalidation {
		switch r.pendingAction {
		case history.ActionPush:
			r.history.Push(location.Path, location.State)
		case history.ActionReplace:
			r.history.Replace(location.Path, location.State)
		}
	}

	st.PreventScrollReset = r.pendingPreventScrollReset
	st.RestoreScrollPosition = nil
	if r.scroll != nil && !r.pendingPreventScrollReset {
		if pos, ok := r.scroll.GetScrollPosition(location); ok {
			p := pos
			st.RestoreScrollPosition = &p
		}
	}

	if r.metrics != nil {
		result := c.metricResult
		if result == "" {
			result = navResultCompleted
		}
		r.metrics.navigations.WithLabelValues(result).Inc()
	}

	if r.pendingNavCancel != nil {
		r.pendingNavCancel()
	}
	r.pendingNavCtx, r.pendingNavCancel = nil, nil
	r.pendingAction = history.ActionPop
	r.pendingPreventScrollReset = false
	r.isRevalidationRequired = false
	r.isUninterruptedRevalidation = false
	r.cancelledDeferredRoutes = make(map[string]struct{})
	r.cancelledFetcherLoads = make(map[string]struct{})

	return r.updateStateLocked(st)
}

// startRedirectNavigation restarts navigation at a redirect target. guard,
// when non-nil, must still be the pending navigation context; fetcher
// redirects pass nil since they are not the main navigation.
func (r *Router) startRedirectNavigation(guard context.Context, redirect *Redirect, submission *route.Submission, replace bool) {
	r.mu.Lock()
	if r.disposed || (guard != nil && r.pendingNavCtx != guard) {
		r.mu.Unlock()
		return
	}
	if redirect.Revalidate {
		r.isRevalidationRequired = true
	}
	redirectLocation := history.CreateLocation(r.state.Location, history.ParsePath(redirect.Location), nil, "")
	r.mu.Unlock()

	r.log.Debug("following redirect",
		zap.Int("status", redirect.Status),
		zap.String("location", redirect.Location))
	if r.metrics != nil {
		r.metrics.navigations.WithLabelValues(navResultRedirected).Inc()
	}

	action := history.ActionPush
	if replace {
		action = history.ActionReplace
	}
	var override *Navigation
	if submission != nil {
		override = &Navigation{State: NavigationStateLoading, Location: redirectLocation, Submission: submission}
	}
	r.startNavigation(action, redirectLocation, navOpts{overrideNavigation: override, replace: replace})
}

// interruptActiveLoadsLocked cancels all in-flight deferreds and fetcher
// loads and forces revalidation; called for submissions and explicit
// revalidations.
func (r *Router) interruptActiveLoadsLocked() {
	r.isRevalidationRequired = true
	r.cancelActiveDeferredsLocked(nil)
	for key, f := range r.state.Fetchers {
		if f.State != FetcherStateLoading {
			continue
		}
		r.abortFetcherLocked(key)
		r.cancelledFetcherLoads[key] = struct{}{}
	}
}

// cancelActiveDeferredsLocked cancels active deferreds matching the
// predicate (all of them when nil) and records their routes so the
// revalidation policy reloads them.
func (r *Router) cancelActiveDeferredsLocked(predicate func(routeID string) bool) {
	for id, dd := range r.activeDeferreds {
		if predicate != nil && !predicate(id) {
			continue
		}
		dd.Cancel()
		r.cancelledDeferredRoutes[id] = struct{}{}
		delete(r.activeDeferreds, id)
	}
}

type handlerType string

const (
	handlerLoader handlerType = "loader"
	handlerAction handlerType = "action"
)

// callHandler invokes one loader or action and interprets its result.
// Relative redirect locations are resolved here, against the pathnames
// contributed by the matched ancestors, and basename-prefixed.
func (r *Router) callHandler(ctx context.Context, typ handlerType, req *route.Request, match *route.Match, matches []*route.Match) dataResult {
	ctx, span := r.tracer.Start(ctx, "router."+string(typ), trace.WithAttributes(
		attribute.String("wayfind.route_id", match.Route.ID),
		attribute.String("wayfind.pathname", req.URL.Path),
	))
	defer span.End()
	start := time.Now()

	args := route.LoaderArgs{Request: req, Params: match.Params, RouteID: match.Route.ID}
	var value any
	var err error
	if typ == handlerAction {
		value, err = match.Route.Action(ctx, args)
	} else {
		value, err = match.Route.Loader(ctx, args)
	}
	if r.metrics != nil {
		r.metrics.handlerSeconds.WithLabelValues(string(typ), match.Route.ID).Observe(time.Since(start).Seconds())
	}

	res := convertResult(value, err)
	switch res.typ {
	case resultError:
		span.SetStatus(codes.Error, res.err.Error())
	case resultRedirect:
		res.redirect = r.normalizeRedirect(res.redirect, match, matches, req)
		span.SetAttributes(attribute.String("wayfind.redirect", res.redirect.Location))
	}
	return res
}

// normalizeRedirect resolves a relative redirect location against the
// path-contributing matches up to and including the redirecting route.
func (r *Router) normalizeRedirect(redirect *Redirect, match *route.Match, matches []*route.Match, req *route.Request) *Redirect {
	if strings.Contains(redirect.Location, "://") {
		return redirect
	}
	active := matches
	for i, m := range matches {
		if m.Route.ID == match.Route.ID {
			active = matches[:i+1]
			break
		}
	}
	fromPathname := req.URL.Path
	if stripped, ok := route.StripBasename(fromPathname, r.basename); ok {
		fromPathname = stripped
	}
	resolved := route.ResolveTo(history.ParsePath(redirect.Location), pathContributingPathnames(active), fromPathname)
	if r.basename != "/" {
		resolved.Pathname = route.JoinPaths(r.basename, resolved.Pathname)
	}
	out := *redirect
	out.Location = history.CreatePath(resolved)
	return &out
}

// normalizeToLocked resolves a destination against the active matches and
// prefixes the basename.
func (r *Router) normalizeToLocked(to history.Path) history.Path {
	locPathname := r.state.Location.Pathname
	if stripped, ok := route.StripBasename(locPathname, r.basename); ok {
		locPathname = stripped
	}
	path := route.ResolveTo(to, pathContributingPathnames(r.state.Matches), locPathname)
	if r.basename != "/" {
		path.Pathname = route.JoinPaths(r.basename, path.Pathname)
	}
	return path
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func createRequest(path history.Path, submission *route.Submission) *route.Request {
	u := &url.URL{Path: path.Pathname, RawQuery: strings.TrimPrefix(path.Search, "?")}
	req := &route.Request{Method: http.MethodGet, URL: u, Header: make(http.Header)}
	if submission != nil {
		req.Method = strings.ToUpper(string(submission.Method))
		req.Body = submission.Body
		if submission.Enctype != "" {
			req.Header.Set("Content-Type", submission.Enctype)
		}
	}
	return req
}

func matchesHaveLoaders(matches []*route.Match) bool {
	for _, m := range matches {
		if m.Route.Loader != nil {
			return true
		}
	}
	return false
}

func matchesContainRoute(matches []*route.Match, routeID string) bool {
	for _, m := range matches {
		if m.Route.ID == routeID {
			return true
		}
	}
	return false
}

// shortCircuitMatches synthesizes the single match used when nothing
// matches: the root-most path-bearing or index route, or a shim when even
// that does not exist.
func shortCircuitMatches(routes []*route.DataRoute) ([]*route.Match, string) {
	var target *route.DataRoute
	for _, dr := range routes {
		if dr.Index || dr.Path == "" || dr.Path == "/" {
			target = dr
			break
		}
	}
	if target == nil {
		target = &route.DataRoute{ID: "__shim-error-route__"}
	}
	m := &route.Match{
		Params:       route.Params{},
		Pathname:     "",
		PathnameBase: "",
		Route:        target,
	}
	return []*route.Match{m}, target.ID
}

func isHashChangeOnly(a, b history.Path) bool {
	return a.Pathname == b.Pathname && a.Search == b.Search && a.Hash != b.Hash
}

// pathContributingMatches filters to the matches that actually own a
// non-empty path segment (the root match always contributes).
func pathContributingMatches(matches []*route.Match) []*route.Match {
	out := make([]*route.Match, 0, len(matches))
	for i, m := range matches {
		if i == 0 || m.Route.Path != "" {
			out = append(out, m)
		}
	}
	return out
}

func pathContributingPathnames(matches []*route.Match) []string {
	contributing := pathContributingMatches(matches)
	out := make([]string, len(contributing))
	for i, m := range contributing {
		out[i] = m.PathnameBase
	}
	return out
}

// getTargetMatch picks the match whose action/loader an operation targets:
// the leaf index route when the URL carries a naked ?index, otherwise the
// deepest path-contributing match.
func getTargetMatch(matches []*route.Match, path history.Path) *route.Match {
	last := matches[len(matches)-1]
	if last.Route.Index && hasNakedIndexQuery(path.Search) {
		return last
	}
	contributing := pathContributingMatches(matches)
	return contributing[len(contributing)-1]
}

func hasNakedIndexQuery(search string) bool {
	values, err := url.ParseQuery(strings.TrimPrefix(search, "?"))
	if err != nil {
		return false
	}
	for _, v := range values["index"] {
		if v == "" {
			return true
		}
	}
	return false
}

// findNearestBoundary walks the match chain from the attributed route
// upward (inclusive) to the nearest error-boundary route, defaulting to the
// root match.
func findNearestBoundary(matches []*route.Match, routeID string) *route.Match {
	eligible := matches
	for i, m := range matches {
		if m.Route.ID == routeID {
			eligible = matches[:i+1]
			break
		}
	}
	for i := len(eligible) - 1; i >= 0; i-- {
		if eligible[i].Route.HasErrorBoundary {
			return eligible[i]
		}
	}
	return matches[0]
}

// mergeLoaderData keeps data for routes that were not reloaded, up to (and
// not past) the first route with an error.
func mergeLoaderData(current, updated map[string]any, matches []*route.Match, errs map[string]error) map[string]any {
	merged := make(map[string]any, len(updated))
	for k, v := range updated {
		merged[k] = v
	}
	for _, m := range matches {
		id := m.Route.ID
		if _, reloaded := updated[id]; !reloaded {
			if v, ok := current[id]; ok {
				merged[id] = v
			}
		}
		if errs != nil {
			if _, isErr := errs[id]; isErr {
				break
			}
		}
	}
	return merged
}

func copyAnyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyErrorMap(in map[string]error) map[string]error {
	out := make(map[string]error, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyFetchers(in map[string]Fetcher) map[string]Fetcher {
	out := make(map[string]Fetcher, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
