package router

import (
	"context"

	"github.com/google/uuid"

	"github.com/wayfind-dev/wayfind/pkg/history"
	"github.com/wayfind-dev/wayfind/pkg/route"
)

// Fetch starts a keyed fetcher against href, attributed to routeID for
// error boundary purposes. An empty key gets a generated one; the key is
// returned either way. Re-issuing a fetch under an existing key aborts the
// in-flight operation for that key first.
//
// The fetch runs concurrently with the main navigation; Fetch returns as
// soon as it is dispatched. Observe it through Subscribe or GetFetcher.
func (r *Router) Fetch(key, routeID, href string, opts ...FetchOption) (string, error) {
	var o FetchOptions
	for _, opt := range opts {
		opt(&o)
	}

	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return "", ErrRouterDisposed
	}
	if key == "" {
		key = uuid.NewString()
	}

	path := r.normalizeToLocked(history.ParsePath(href))
	pathname, err := route.CanonicalizePath(path.Pathname)
	if err != nil {
		r.mu.Unlock()
		return "", err
	}
	path.Pathname = pathname
	matches := route.MatchRoutesWithLogger(r.routes, path, r.basename, r.log)
	if matches == nil {
		notify := r.setFetcherErrorLocked(key, routeID, notFoundError(path.Pathname))
		r.mu.Unlock()
		notify()
		return key, nil
	}
	match := getTargetMatch(matches, path)

	r.abortFetcherLocked(key)
	ctx, cancel := context.WithCancel(r.rootCtx)
	fc := &fetchController{ctx: ctx, cancel: cancel}
	r.fetchControllers[key] = fc

	submission := o.Submission
	if submission != nil && !submission.Method.IsMutation() {
		if len(submission.Body) > 0 {
			path.Search = "?" + submission.Body.Encode()
		}
		submission = nil
	}

	if submission != nil {
		st := r.state
		fetchers := copyFetchers(st.Fetchers)
		fetchers[key] = Fetcher{State: FetcherStateSubmitting, Data: fetchers[key].Data, Submission: submission}
		st.Fetchers = fetchers
		notify := r.updateStateLocked(st)
		if r.metrics != nil {
			r.metrics.activeFetchers.Inc()
		}
		r.mu.Unlock()
		notify()

		go r.handleFetcherAction(fc, key, routeID, path, match, matches, submission)
		return key, nil
	}

	r.fetchLoadMatches[key] = &fetchLoadEntry{routeID: routeID, path: history.CreatePath(path)}
	st := r.state
	fetchers := copyFetchers(st.Fetchers)
	fetchers[key] = Fetcher{State: FetcherStateLoading, Data: fetchers[key].Data}
	st.Fetchers = fetchers
	notify := r.updateStateLocked(st)
	if r.metrics != nil {
		r.metrics.activeFetchers.Inc()
	}
	r.mu.Unlock()
	notify()

	go r.handleFetcherLoader(fc, key, routeID, path, match, matches)
	return key, nil
}

// GetFetcher returns the fetcher for key, or the idle zero fetcher.
func (r *Router) GetFetcher(key string) Fetcher {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.GetFetcher(key)
}

// DeleteFetcher aborts any in-flight operation for key and drops the
// fetcher and all of its bookkeeping.
func (r *Router) DeleteFetcher(key string) {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.abortFetcherLocked(key)
	delete(r.fetchLoadMatches, key)
	delete(r.fetchReloadIDs, key)
	delete(r.fetchRedirectIDs, key)
	st := r.state
	if _, ok := st.Fetchers[key]; ok {
		fetchers := copyFetchers(st.Fetchers)
		delete(fetchers, key)
		st.Fetchers = fetchers
	}
	notify := r.updateStateLocked(st)
	r.mu.Unlock()
	notify()
}

// handleFetcherLoader runs a fetcher GET: call the loader, settle deferred
// data fully, and land the result unless the fetch was superseded.
func (r *Router) handleFetcherLoader(fc *fetchController, key, routeID string, path history.Path, match *route.Match, matches []*route.Match) {
	req := createRequest(path, nil)
	result := r.callHandler(fc.ctx, handlerLoader, req, match, matches)
	if result.typ == resultDeferred {
		result = resolveDeferredResult(fc.ctx, result.deferredData, true)
	}

	r.mu.Lock()
	if r.disposed || r.fetchControllers[key] != fc || fc.ctx.Err() != nil {
		r.mu.Unlock()
		return
	}
	r.releaseFetcherLocked(key)

	if result.typ == resultRedirect {
		r.fetchRedirectIDs[key] = struct{}{}
		r.mu.Unlock()
		r.startRedirectNavigation(nil, result.redirect, nil, false)
		return
	}

	var notify func()
	if result.typ == resultError {
		notify = r.setFetcherErrorLocked(key, routeID, result.err)
	} else {
		st := r.state
		fetchers := copyFetchers(st.Fetchers)
		fetchers[key] = Fetcher{State: FetcherStateIdle, Data: result.data}
		st.Fetchers = fetchers
		notify = r.updateStateLocked(st)
	}
	r.mu.Unlock()
	notify()
}

// handleFetcherAction runs a fetcher mutation: the action, then a
// revalidation of the active matches and any other loaded fetchers. The
// load id assigned before revalidation decides staleness against
// navigations that start afterwards.
func (r *Router) handleFetcherAction(fc *fetchController, key, routeID string, path history.Path, match *route.Match, matches []*route.Match, submission *route.Submission) {
	r.mu.Lock()
	if r.disposed || r.fetchControllers[key] != fc {
		r.mu.Unlock()
		return
	}
	// Fetcher mutations invalidate everything, same as navigation
	// submissions.
	r.interruptActiveLoadsLocked()
	delete(r.cancelledFetcherLoads, key)
	r.mu.Unlock()

	var result dataResult
	if match.Route.Action == nil {
		result = errorResult(methodNotAllowedError(string(submission.Method), path.Pathname, match.Route.ID))
	} else {
		req := createRequest(path, submission)
		result = r.callHandler(fc.ctx, handlerAction, req, match, matches)
	}
	if result.typ == resultDeferred {
		result = errorResult(badRequestError("deferred data is not supported in actions"))
	}

	r.mu.Lock()
	if r.disposed || r.fetchControllers[key] != fc || fc.ctx.Err() != nil {
		r.mu.Unlock()
		return
	}

	if result.typ == resultRedirect {
		// Park the fetcher in loading until the redirect navigation
		// settles; completeNavigation lands it idle.
		r.fetchRedirectIDs[key] = struct{}{}
		r.releaseFetcherLocked(key)
		st := r.state
		fetchers := copyFetchers(st.Fetchers)
		fetchers[key] = Fetcher{State: FetcherStateLoading, Data: fetchers[key].Data, Submission: submission}
		st.Fetchers = fetchers
		notify := r.updateStateLocked(st)
		r.mu.Unlock()
		notify()
		r.startRedirectNavigation(nil, result.redirect, submission, false)
		return
	}

	if result.typ == resultError {
		r.releaseFetcherLocked(key)
		notify := r.setFetcherErrorLocked(key, routeID, result.err)
		r.mu.Unlock()
		notify()
		return
	}

	// Action succeeded; revalidate with the action data visible on the
	// fetcher while loads run.
	r.incrementingLoadID++
	loadID := r.incrementingLoadID
	r.fetchReloadIDs[key] = loadID

	nextLocation := r.state.Location
	if r.state.Navigation.State != NavigationStateIdle {
		nextLocation = r.state.Navigation.Location
	}
	nextMatches := route.MatchRoutesWithLogger(r.routes, nextLocation.Path, r.basename, r.log)
	if nextMatches == nil {
		nextMatches = r.state.Matches
	}

	pendingActionData := map[string]any{match.Route.ID: result.data}
	matchesToLoad, revalidating := r.getMatchesToLoadLocked(nextLocation, nextMatches, submission, pendingActionData, nil)
	filtered := revalidating[:0]
	for _, rf := range revalidating {
		if rf.key != key {
			filtered = append(filtered, rf)
		}
	}
	revalidating = filtered

	st := r.state
	fetchers := copyFetchers(st.Fetchers)
	fetchers[key] = Fetcher{State: FetcherStateLoading, Data: result.data, Submission: submission}
	for _, rf := range revalidating {
		fetchers[rf.key] = Fetcher{State: FetcherStateLoading, Data: fetchers[rf.key].Data}
	}
	st.Fetchers = fetchers
	notify := r.updateStateLocked(st)
	r.mu.Unlock()
	notify()

	navResults, fetcherResults := r.callLoadersAndResolveDeferreds(fc.ctx, nextLocation, nextMatches, matchesToLoad, revalidating)

	r.mu.Lock()
	if r.disposed || r.fetchControllers[key] != fc || fc.ctx.Err() != nil {
		r.mu.Unlock()
		return
	}
	r.releaseFetcherLocked(key)
	if r.fetchReloadIDs[key] == loadID {
		delete(r.fetchReloadIDs, key)
	}

	all := append(append([]dataResult(nil), navResults...), fetcherResults...)
	if redirect := findRedirect(all); redirect != nil {
		r.fetchRedirectIDs[key] = struct{}{}
		st := r.state
		fetchers := copyFetchers(st.Fetchers)
		fetchers[key] = Fetcher{State: FetcherStateLoading, Data: result.data, Submission: submission}
		st.Fetchers = fetchers
		notify := r.updateStateLocked(st)
		r.mu.Unlock()
		notify()
		r.startRedirectNavigation(nil, redirect, submission, false)
		return
	}

	loaderData, errs, nextFetchers := r.processLoaderDataLocked(nextMatches, matchesToLoad, navResults, nil, revalidating, fetcherResults)
	nextFetchers[key] = Fetcher{State: FetcherStateIdle, Data: result.data}

	st = r.state
	st.Fetchers = nextFetchers
	if r.pendingNavigationLoadID > loadID {
		// A navigation load started after this fetch began; its commit
		// carries the authoritative loader data, so only the fetcher
		// itself lands here.
		notify = r.updateStateLocked(st)
		r.mu.Unlock()
		notify()
		return
	}
	st.LoaderData = mergeLoaderData(r.state.LoaderData, loaderData, nextMatches, errs)
	st.Errors = errs
	r.abortStaleFetchLoadsLocked(loadID, &st)
	notify = r.updateStateLocked(st)
	r.mu.Unlock()
	notify()
}

// abortStaleFetchLoadsLocked aborts fetcher loads whose load id predates
// the one that just landed; their in-flight data is already superseded.
func (r *Router) abortStaleFetchLoadsLocked(landedID uint64, st *State) {
	var stale []string
	for key, id := range r.fetchReloadIDs {
		if id < landedID {
			stale = append(stale, key)
		}
	}
	if len(stale) == 0 {
		return
	}
	fetchers := copyFetchers(st.Fetchers)
	for _, key := range stale {
		r.abortFetcherLocked(key)
		delete(r.fetchReloadIDs, key)
		if f, ok := fetchers[key]; ok && f.State != FetcherStateIdle {
			fetchers[key] = Fetcher{State: FetcherStateIdle, Data: f.Data}
		}
	}
	st.Fetchers = fetchers
}

// abortFetcherLocked cancels the in-flight operation for key, if any.
func (r *Router) abortFetcherLocked(key string) {
	if fc, ok := r.fetchControllers[key]; ok {
		fc.cancel()
		r.releaseFetcherLocked(key)
	}
}

// releaseFetcherLocked retires key's controller and settles the active
// fetcher gauge.
func (r *Router) releaseFetcherLocked(key string) {
	if _, ok := r.fetchControllers[key]; !ok {
		return
	}
	delete(r.fetchControllers, key)
	if r.metrics != nil {
		r.metrics.activeFetchers.Dec()
	}
}

// setFetcherErrorLocked routes a fetcher failure to the nearest error
// boundary of the attributed route and removes the fetcher.
func (r *Router) setFetcherErrorLocked(key, routeID string, err error) func() {
	boundaryID := routeID
	if len(r.state.Matches) > 0 {
		boundaryID = findNearestBoundary(r.state.Matches, routeID).Route.ID
	}
	st := r.state
	errs := copyErrorMap(st.Errors)
	errs[boundaryID] = err
	st.Errors = errs
	fetchers := copyFetchers(st.Fetchers)
	delete(fetchers, key)
	st.Fetchers = fetchers
	delete(r.fetchLoadMatches, key)
	return r.updateStateLocked(st)
}
