package router

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfind-dev/wayfind/pkg/route"
)

func TestFetchLoad(t *testing.T) {
	r, _ := newTestRouter(t, []route.Route{
		{ID: "root", Path: "/", Children: []route.Route{
			{ID: "search", Path: "search", Loader: func(ctx context.Context, args route.LoaderArgs) (any, error) {
				return "results for " + args.Request.URL.RawQuery, nil
			}},
		}},
	})
	r.Initialize()

	key, err := r.Fetch("", "root", "/search?q=x")
	require.NoError(t, err)
	require.NotEmpty(t, key, "an empty key gets a generated one")

	st := waitForState(t, r, func(st State) bool {
		return st.GetFetcher(key).State == FetcherStateIdle && st.GetFetcher(key).Data != nil
	})
	assert.Equal(t, "results for q=x", st.GetFetcher(key).Data)
	assert.Equal(t, "/", st.Location.Pathname, "fetchers never move the location")
}

func TestFetchSameKeySupersedes(t *testing.T) {
	firstStarted := make(chan struct{})
	firstCancelled := make(chan struct{})
	var calls atomic.Int64
	r, _ := newTestRouter(t, []route.Route{
		{ID: "root", Path: "/", Children: []route.Route{
			{ID: "data", Path: "data", Loader: func(ctx context.Context, args route.LoaderArgs) (any, error) {
				if calls.Add(1) == 1 {
					close(firstStarted)
					<-ctx.Done()
					close(firstCancelled)
					return "first", ctx.Err()
				}
				return "second", nil
			}},
		}},
	})
	r.Initialize()

	_, err := r.Fetch("k", "root", "/data")
	require.NoError(t, err)
	<-firstStarted

	_, err = r.Fetch("k", "root", "/data")
	require.NoError(t, err)

	select {
	case <-firstCancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("superseded fetch was not aborted")
	}

	st := waitForState(t, r, func(st State) bool {
		return st.GetFetcher("k").State == FetcherStateIdle && st.GetFetcher("k").Data != nil
	})
	assert.Equal(t, "second", st.GetFetcher("k").Data, "only the second fetch may land")
	assert.Empty(t, st.Errors, "the aborted fetch must not surface an error")
}

func TestFetchUnknownPath(t *testing.T) {
	r, _ := newTestRouter(t, []route.Route{
		{ID: "root", Path: "/", HasErrorBoundary: true},
	})
	r.Initialize()

	key, err := r.Fetch("k", "root", "/missing")
	require.NoError(t, err)
	require.Equal(t, "k", key)

	st := r.State()
	require.Contains(t, st.Errors, "root")
	re, ok := IsRouteError(st.Errors["root"])
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, re.Status)
	assert.Equal(t, FetcherStateIdle, st.GetFetcher("k").State, "failed fetcher is removed")
}

func TestFetchSubmissionRevalidatesNavigationData(t *testing.T) {
	var items atomic.Int64
	r, _ := newTestRouter(t, []route.Route{
		{ID: "root", Path: "/", Loader: func(ctx context.Context, args route.LoaderArgs) (any, error) {
			return items.Load(), nil
		}, Children: []route.Route{
			{ID: "items", Path: "items", Action: func(ctx context.Context, args route.ActionArgs) (any, error) {
				return items.Add(1), nil
			}},
		}},
	})
	r.Initialize()
	require.Equal(t, int64(0), r.State().LoaderData["root"])

	sub := &route.Submission{Method: route.FormMethodPost, Action: "/items"}
	key, err := r.Fetch("k", "root", "/items", WithFetchSubmission(sub))
	require.NoError(t, err)

	st := waitForState(t, r, func(st State) bool {
		return st.GetFetcher(key).State == FetcherStateIdle && st.GetFetcher(key).Data != nil
	})
	assert.Equal(t, int64(1), st.GetFetcher(key).Data, "fetcher carries the action result")
	assert.Equal(t, int64(1), st.LoaderData["root"], "fetcher mutations revalidate navigation loader data")
}

func TestFetchSubmissionStatesProgress(t *testing.T) {
	release := make(chan struct{})
	r, _ := newTestRouter(t, []route.Route{
		{ID: "root", Path: "/", Loader: staticLoader("root"), Children: []route.Route{
			{ID: "items", Path: "items", Action: func(ctx context.Context, args route.ActionArgs) (any, error) {
				<-release
				return "done", nil
			}},
		}},
	})
	r.Initialize()

	sub := &route.Submission{Method: route.FormMethodPost, Action: "/items"}
	key, err := r.Fetch("k", "root", "/items", WithFetchSubmission(sub))
	require.NoError(t, err)

	st := r.State()
	f := st.GetFetcher(key)
	assert.Equal(t, FetcherStateSubmitting, f.State)
	require.NotNil(t, f.Submission)
	assert.Equal(t, route.FormMethodPost, f.Submission.Method)

	close(release)
	st = waitForState(t, r, func(st State) bool {
		return st.GetFetcher(key).State == FetcherStateIdle
	})
	assert.Equal(t, "done", st.GetFetcher(key).Data)
	assert.Nil(t, st.GetFetcher(key).Submission, "idle fetchers carry no submission")
}

func TestFetchActionError(t *testing.T) {
	r, _ := newTestRouter(t, []route.Route{
		{ID: "root", Path: "/", HasErrorBoundary: true, Children: []route.Route{
			{ID: "items", Path: "items", Action: func(ctx context.Context, args route.ActionArgs) (any, error) {
				return nil, errors.New("save failed")
			}},
		}},
	})
	r.Initialize()

	sub := &route.Submission{Method: route.FormMethodPost, Action: "/items"}
	key, err := r.Fetch("k", "root", "/items", WithFetchSubmission(sub))
	require.NoError(t, err)

	st := waitForState(t, r, func(st State) bool {
		_, ok := st.Errors["root"]
		return ok
	})
	assert.EqualError(t, st.Errors["root"], "save failed")
	assert.Equal(t, FetcherStateIdle, st.GetFetcher(key).State, "failed fetcher is removed")
}

func TestFetchRedirectStartsNavigation(t *testing.T) {
	r, h := newTestRouter(t, []route.Route{
		{ID: "root", Path: "/", Loader: staticLoader("root"), Children: []route.Route{
			{ID: "login", Path: "login", Action: func(ctx context.Context, args route.ActionArgs) (any, error) {
				return nil, NewRedirect("/welcome")
			}},
			{ID: "welcome", Path: "welcome", Loader: staticLoader("hello")},
		}},
	})
	r.Initialize()

	sub := &route.Submission{Method: route.FormMethodPost, Action: "/login"}
	key, err := r.Fetch("k", "root", "/login", WithFetchSubmission(sub))
	require.NoError(t, err)

	st := waitForState(t, r, func(st State) bool {
		return st.Location.Pathname == "/welcome" && st.Navigation.State == NavigationStateIdle &&
			st.GetFetcher(key).State == FetcherStateIdle
	})
	assert.Equal(t, "hello", st.LoaderData["welcome"])
	assert.Equal(t, "/welcome", h.Location().Pathname)
}

func TestFetcherRevalidatesOnSubmissionNavigation(t *testing.T) {
	var fetcherLoads atomic.Int64
	r, _ := newTestRouter(t, []route.Route{
		{ID: "root", Path: "/", Loader: staticLoader("root"), Action: func(ctx context.Context, args route.ActionArgs) (any, error) {
			return "acted", nil
		}, Children: []route.Route{
			{ID: "feed", Path: "feed", Loader: func(ctx context.Context, args route.LoaderArgs) (any, error) {
				return fetcherLoads.Add(1), nil
			}},
		}},
	})
	r.Initialize()

	key, err := r.Fetch("k", "root", "/feed")
	require.NoError(t, err)
	waitForState(t, r, func(st State) bool {
		return st.GetFetcher(key).State == FetcherStateIdle
	})
	require.Equal(t, int64(1), fetcherLoads.Load())

	// A navigation submission revalidates previously loaded fetchers.
	sub := &route.Submission{Method: route.FormMethodPost, Action: "/"}
	require.NoError(t, r.Navigate("/", WithSubmission(sub)))

	st := waitForState(t, r, func(st State) bool {
		return st.GetFetcher(key).State == FetcherStateIdle && fetcherLoads.Load() == 2
	})
	assert.Equal(t, int64(2), st.GetFetcher(key).Data)
}

func TestDeleteFetcher(t *testing.T) {
	r, _ := newTestRouter(t, []route.Route{
		{ID: "root", Path: "/", Children: []route.Route{
			{ID: "data", Path: "data", Loader: staticLoader("payload")},
		}},
	})
	r.Initialize()

	key, err := r.Fetch("k", "root", "/data")
	require.NoError(t, err)
	waitForState(t, r, func(st State) bool {
		return st.GetFetcher(key).State == FetcherStateIdle && st.GetFetcher(key).Data != nil
	})

	r.DeleteFetcher(key)
	st := r.State()
	_, exists := st.Fetchers[key]
	assert.False(t, exists)
	assert.Equal(t, IdleFetcher, r.GetFetcher(key), "unknown keys read as the idle fetcher")
}
