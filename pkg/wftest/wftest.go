// Package wftest provides helpers for testing code built on the router.
// A Harness wires a router to an in-memory history, records every
// broadcast state, and exposes assertion helpers.
package wftest

import (
	"sync"
	"testing"
	"time"

	"github.com/wayfind-dev/wayfind/pkg/history"
	"github.com/wayfind-dev/wayfind/pkg/route"
	"github.com/wayfind-dev/wayfind/pkg/router"
)

// Builder allows fluent construction of test routers.
type Builder struct {
	t         *testing.T
	routes    []route.Route
	entries   []string
	basename  string
	hydration *router.HydrationData
	opts      []router.Option
}

// New creates a builder bound to the test.
//
// Example:
//
//	h := wftest.New(t).
//	    WithRoutes(route.Route{Path: "/", Children: ...}).
//	    WithInitialEntries("/dashboard").
//	    Build()
func New(t *testing.T) *Builder {
	return &Builder{t: t, entries: []string{"/"}}
}

// WithRoutes sets the route tree.
func (b *Builder) WithRoutes(routes ...route.Route) *Builder {
	b.routes = routes
	return b
}

// WithInitialEntries seeds the history stack; the last entry is current.
func (b *Builder) WithInitialEntries(entries ...string) *Builder {
	b.entries = entries
	return b
}

// WithBasename sets the application basename.
func (b *Builder) WithBasename(basename string) *Builder {
	b.basename = basename
	return b
}

// WithHydration seeds the initial state with pre-resolved data, skipping
// the initial load.
func (b *Builder) WithHydration(hd *router.HydrationData) *Builder {
	b.hydration = hd
	return b
}

// WithOptions appends router options.
func (b *Builder) WithOptions(opts ...router.Option) *Builder {
	b.opts = append(b.opts, opts...)
	return b
}

// Build creates and initializes the router. Disposal is registered as a
// test cleanup.
func (b *Builder) Build() *Harness {
	b.t.Helper()
	hist := history.NewMemoryHistory(history.WithInitialEntries(b.entries...))
	r, err := router.New(router.Init{
		Routes:        b.routes,
		History:       hist,
		Basename:      b.basename,
		HydrationData: b.hydration,
	}, b.opts...)
	if err != nil {
		b.t.Fatalf("router.New: %v", err)
	}
	h := &Harness{T: b.t, Router: r, History: hist}
	r.Subscribe(func(st router.State) {
		h.mu.Lock()
		h.states = append(h.states, st)
		h.mu.Unlock()
	})
	b.t.Cleanup(r.Dispose)
	r.Initialize()
	return h
}

// Harness is a router under test together with its recorded states.
type Harness struct {
	T       *testing.T
	Router  *router.Router
	History *history.MemoryHistory

	mu     sync.Mutex
	states []router.State
}

// States returns a copy of every state broadcast since Build.
func (h *Harness) States() []router.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]router.State, len(h.states))
	copy(out, h.states)
	return out
}

// Navigate navigates and fails the test on error.
func (h *Harness) Navigate(to string, opts ...router.NavigateOption) {
	h.T.Helper()
	if err := h.Router.Navigate(to, opts...); err != nil {
		h.T.Fatalf("Navigate(%q): %v", to, err)
	}
}

// WaitFor polls until the predicate accepts the current state, failing
// the test after two seconds.
func (h *Harness) WaitFor(pred func(router.State) bool) router.State {
	h.T.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		st := h.Router.State()
		if pred(st) {
			return st
		}
		if time.Now().After(deadline) {
			h.T.Fatalf("timed out waiting for state; last state at %s (%s)",
				st.Location.Pathname, st.Navigation.State)
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ExpectLocation asserts the current location pathname.
//
// Example:
//
//	h.Navigate("/settings")
//	h.ExpectLocation("/settings")
func (h *Harness) ExpectLocation(pathname string) {
	h.T.Helper()
	if got := h.Router.State().Location.Pathname; got != pathname {
		h.T.Errorf("location = %q, want %q", got, pathname)
	}
}

// ExpectLoaderData asserts the committed loader data for a route.
func (h *Harness) ExpectLoaderData(routeID string, want any) {
	h.T.Helper()
	got, ok := h.Router.State().LoaderData[routeID]
	if !ok {
		h.T.Errorf("no loader data for route %q", routeID)
		return
	}
	if got != want {
		h.T.Errorf("loader data for %q = %v, want %v", routeID, got, want)
	}
}

// ExpectError asserts that an error is assigned to the given boundary.
func (h *Harness) ExpectError(routeID string) error {
	h.T.Helper()
	err, ok := h.Router.State().Errors[routeID]
	if !ok {
		h.T.Errorf("no error at boundary %q", routeID)
	}
	return err
}

// ExpectNoErrors asserts the state carries no errors.
func (h *Harness) ExpectNoErrors() {
	h.T.Helper()
	if errs := h.Router.State().Errors; len(errs) != 0 {
		h.T.Errorf("unexpected errors: %v", errs)
	}
}
