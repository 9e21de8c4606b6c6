package router

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/wayfind-dev/wayfind/pkg/deferred"
	"github.com/wayfind-dev/wayfind/pkg/history"
	"github.com/wayfind-dev/wayfind/pkg/route"
)

var errDeferredAborted = errors.New("router: deferred data aborted")

// revalidatingFetcher is an idle fetcher whose route opted in (or was
// forced) to reload alongside the current navigation.
type revalidatingFetcher struct {
	key     string
	routeID string
	path    string
	match   *route.Match
	matches []*route.Match
}

// getMatchesToLoadLocked applies the revalidation policy: which matched
// routes run their loader for this navigation, and which previously loaded
// fetchers reload alongside it.
//
// A route always reloads when it is newly matched or has no data yet, or
// when its deferred data was cancelled. Otherwise the default is to reload
// when revalidation was forced (submission, explicit revalidate, redirect
// opt-in), when the navigation re-targets the same URL, when the search
// string changed, or when the route's own pathname or splat portion
// changed. Routes with a ShouldRevalidate override get the final say over
// that default.
func (r *Router) getMatchesToLoadLocked(location history.Location, matches []*route.Match, submission *route.Submission, pendingActionData map[string]any, pendingError map[string]error) ([]*route.Match, []revalidatingFetcher) {
	currentURL := r.state.Location.Path.URL()
	nextURL := location.Path.URL()

	var actionResult any
	for _, v := range pendingActionData {
		actionResult = v
	}

	// An action error stops the load chain at its boundary; routes below
	// it are not loaded.
	boundaryMatches := matches
	if pendingError != nil {
		var boundaryID string
		for id := range pendingError {
			boundaryID = id
		}
		for i, m := range matches {
			if m.Route.ID == boundaryID {
				boundaryMatches = matches[:i+1]
				break
			}
		}
	}

	var currentParams, nextParams route.Params
	if len(r.state.Matches) > 0 {
		currentParams = r.state.Matches[len(r.state.Matches)-1].Params
	}
	if len(matches) > 0 {
		nextParams = matches[len(matches)-1].Params
	}

	baseDefault := r.isRevalidationRequired ||
		currentURL.String() == nextURL.String() ||
		currentURL.RawQuery != nextURL.RawQuery

	var toLoad []*route.Match
	for index, m := range boundaryMatches {
		if m.Route.Loader == nil {
			continue
		}
		var currentMatch *route.Match
		if index < len(r.state.Matches) {
			currentMatch = r.state.Matches[index]
		}
		isNew := currentMatch == nil || currentMatch.Route.ID != m.Route.ID
		_, hasData := r.state.LoaderData[m.Route.ID]
		if isNew || !hasData {
			toLoad = append(toLoad, m)
			continue
		}
		if _, cancelled := r.cancelledDeferredRoutes[m.Route.ID]; cancelled {
			toLoad = append(toLoad, m)
			continue
		}

		def := baseDefault ||
			currentMatch.Pathname != m.Pathname ||
			(strings.HasSuffix(currentMatch.Route.Path, "*") && currentMatch.Params["*"] != m.Params["*"])

		if m.Route.ShouldRevalidate != nil {
			args := route.RevalidateArgs{
				CurrentURL:              currentURL,
				CurrentParams:           currentParams,
				NextURL:                 nextURL,
				NextParams:              nextParams,
				Submission:              submission,
				ActionResult:            actionResult,
				DefaultShouldRevalidate: def,
			}
			if m.Route.ShouldRevalidate(args) {
				toLoad = append(toLoad, m)
			}
			continue
		}
		if def {
			toLoad = append(toLoad, m)
		}
	}

	var fetchers []revalidatingFetcher
	for key, entry := range r.fetchLoadMatches {
		fPath := history.ParsePath(entry.path)
		fMatches := route.MatchRoutesWithLogger(r.routes, fPath, r.basename, r.log)
		if fMatches == nil {
			continue
		}
		fMatch := getTargetMatch(fMatches, fPath)
		if fMatch.Route.Loader == nil {
			continue
		}

		shouldLoad := false
		if _, cancelled := r.cancelledFetcherLoads[key]; cancelled {
			shouldLoad = true
		} else if fMatch.Route.ShouldRevalidate != nil {
			args := route.RevalidateArgs{
				CurrentURL:              currentURL,
				CurrentParams:           currentParams,
				NextURL:                 nextURL,
				NextParams:              nextParams,
				Submission:              submission,
				ActionResult:            actionResult,
				DefaultShouldRevalidate: baseDefault,
			}
			shouldLoad = fMatch.Route.ShouldRevalidate(args)
		} else {
			shouldLoad = baseDefault
		}
		if shouldLoad {
			fetchers = append(fetchers, revalidatingFetcher{
				key:     key,
				routeID: entry.routeID,
				path:    entry.path,
				match:   fMatch,
				matches: fMatches,
			})
		}
	}
	sort.Slice(fetchers, func(i, j int) bool { return fetchers[i].key < fetchers[j].key })

	return toLoad, fetchers
}

// callLoadersAndResolveDeferreds runs the selected loaders and fetcher
// loads in parallel, joins them, and settles deferred results that cannot
// stay live: a deferred for a route being revalidated in place resolves to
// completion before commit, and fetcher loads always materialize fully.
func (r *Router) callLoadersAndResolveDeferreds(ctx context.Context, location history.Location, matches, matchesToLoad []*route.Match, revalidating []revalidatingFetcher) ([]dataResult, []dataResult) {
	navResults := make([]dataResult, len(matchesToLoad))
	fetcherResults := make([]dataResult, len(revalidating))

	var wg sync.WaitGroup
	for i, m := range matchesToLoad {
		wg.Add(1)
		go func(i int, m *route.Match) {
			defer wg.Done()
			req := createRequest(location.Path, nil)
			navResults[i] = r.callHandler(ctx, handlerLoader, req, m, matches)
		}(i, m)
	}
	for i, rf := range revalidating {
		wg.Add(1)
		go func(i int, rf revalidatingFetcher) {
			defer wg.Done()
			req := createRequest(history.ParsePath(rf.path), nil)
			fetcherResults[i] = r.callHandler(ctx, handlerLoader, req, rf.match, rf.matches)
		}(i, rf)
	}
	wg.Wait()

	r.mu.Lock()
	currentMatches := r.state.Matches
	currentLoaderData := r.state.LoaderData
	r.mu.Unlock()

	for i := range navResults {
		res := &navResults[i]
		if res.typ != resultDeferred {
			continue
		}
		routeID := matchesToLoad[i].Route.ID
		_, hasData := currentLoaderData[routeID]
		if matchesContainRoute(currentMatches, routeID) && hasData {
			// In-place revalidation: the route already renders data, so
			// the fresh deferred settles before commit instead of
			// replacing live values with new pending ones.
			*res = resolveDeferredResult(ctx, res.deferredData, false)
		}
	}
	for i := range fetcherResults {
		res := &fetcherResults[i]
		if res.typ == resultDeferred {
			*res = resolveDeferredResult(ctx, res.deferredData, true)
		}
	}
	return navResults, fetcherResults
}

// resolveDeferredResult blocks until every key of dd settles. With unwrap
// set the settled record collapses to its plain values, re-raising the
// first keyed error.
func resolveDeferredResult(ctx context.Context, dd *deferred.Data, unwrap bool) dataResult {
	if aborted := dd.ResolveData(ctx); aborted {
		return errorResult(errDeferredAborted)
	}
	if unwrap {
		data, err := dd.UnwrappedData()
		if err != nil {
			return errorResult(err)
		}
		return dataResult{typ: resultData, data: data}
	}
	return dataResult{typ: resultData, data: dd}
}

// processLoaderDataLocked folds the joined results into loader data, keyed
// errors (first error per boundary wins, action errors override) and the
// next fetcher map. Deferreds still pending at commit are tracked for
// cancellation on interrupt.
func (r *Router) processLoaderDataLocked(matches, matchesToLoad []*route.Match, navResults []dataResult, pendingError map[string]error, revalidating []revalidatingFetcher, fetcherResults []dataResult) (map[string]any, map[string]error, map[string]Fetcher) {
	loaderData := make(map[string]any)
	var errs map[string]error
	setErr := func(boundaryID string, err error) {
		if errs == nil {
			errs = make(map[string]error)
		}
		if _, exists := errs[boundaryID]; !exists {
			errs[boundaryID] = err
		}
	}

	for i, m := range matchesToLoad {
		res := navResults[i]
		id := m.Route.ID
		switch res.typ {
		case resultError:
			setErr(findNearestBoundary(matches, id).Route.ID, res.err)
			delete(r.activeDeferreds, id)
		case resultDeferred:
			dd := res.deferredData
			loaderData[id] = dd
			if !dd.Done() {
				r.trackDeferredLocked(id, dd)
			}
		default:
			loaderData[id] = res.data
		}
	}

	// The action error owns its boundary outright.
	for id, err := range pendingError {
		if errs == nil {
			errs = make(map[string]error)
		}
		errs[id] = err
	}

	fetchers := copyFetchers(r.state.Fetchers)
	for i, rf := range revalidating {
		res := fetcherResults[i]
		if res.typ == resultError {
			setErr(findNearestBoundary(matches, rf.routeID).Route.ID, res.err)
			delete(fetchers, rf.key)
			delete(r.fetchLoadMatches, rf.key)
			continue
		}
		fetchers[rf.key] = Fetcher{State: FetcherStateIdle, Data: res.data}
	}

	return loaderData, errs, fetchers
}

// trackDeferredLocked keeps a live deferred eligible for cancellation until
// it fully settles on its own.
func (r *Router) trackDeferredLocked(routeID string, dd *deferred.Data) {
	r.activeDeferreds[routeID] = dd
	dd.Subscribe(func(aborted bool, _ string) {
		if !aborted && !dd.Done() {
			return
		}
		// The subscriber can fire under Cancel while the router lock is
		// held; cleanup runs on its own goroutine.
		go func() {
			r.mu.Lock()
			if r.activeDeferreds[routeID] == dd {
				delete(r.activeDeferreds, routeID)
			}
			r.mu.Unlock()
		}()
	})
}
