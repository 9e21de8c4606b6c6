package route

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wayfind-dev/wayfind/pkg/history"
)

func matchedIDs(matches []*Match) []string {
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.Route.ID
	}
	return ids
}

func mustConvert(t *testing.T, routes []Route) []*DataRoute {
	t.Helper()
	dataRoutes, err := ConvertRoutesToDataRoutes(routes)
	if err != nil {
		t.Fatalf("ConvertRoutesToDataRoutes: %v", err)
	}
	return dataRoutes
}

func TestComputeScore(t *testing.T) {
	tests := []struct {
		path  string
		index bool
		want  int
	}{
		{"/a/b/:xxx", false, 28},
		{"/a", false, 13},
		{"/a/b/c", false, 35},
		{"/a/:b/c", false, 28},
		{"/a/*", false, 12},
		{"/", false, 4},
		{"/", true, 6},
		{"/users/:id", false, 17},
	}

	for _, tt := range tests {
		got := computeScore(tt.path, tt.index)
		if got != tt.want {
			t.Errorf("computeScore(%q, %v) = %d, want %d", tt.path, tt.index, got, tt.want)
		}
	}
}

func TestMatchRoutesRanking(t *testing.T) {
	routes := mustConvert(t, []Route{
		{ID: "param", Path: "/users/:id"},
		{ID: "static", Path: "/users/new"},
		{ID: "splat", Path: "/users/*"},
	})

	tests := []struct {
		pathname string
		want     string
	}{
		{"/users/new", "static"},
		{"/users/42", "param"},
		{"/users/42/posts", "splat"},
	}

	for _, tt := range tests {
		matches := MatchRoutes(routes, history.Path{Pathname: tt.pathname}, "/")
		if matches == nil {
			t.Errorf("MatchRoutes(%q) = nil, want %q", tt.pathname, tt.want)
			continue
		}
		got := matches[len(matches)-1].Route.ID
		if got != tt.want {
			t.Errorf("MatchRoutes(%q) leaf = %q, want %q", tt.pathname, got, tt.want)
		}
	}
}

func TestMatchRoutesNested(t *testing.T) {
	routes := mustConvert(t, []Route{
		{ID: "root", Path: "/", Children: []Route{
			{ID: "users", Path: "users", Children: []Route{
				{ID: "users-index", Index: true},
				{ID: "user", Path: ":id"},
			}},
		}},
	})

	matches := MatchRoutes(routes, history.Path{Pathname: "/users/42"}, "/")
	if matches == nil {
		t.Fatal("MatchRoutes returned nil")
	}
	if diff := cmp.Diff([]string{"root", "users", "user"}, matchedIDs(matches)); diff != "" {
		t.Fatalf("matched ids mismatch (-want +got):\n%s", diff)
	}
	leaf := matches[len(matches)-1]
	if diff := cmp.Diff(Params{"id": "42"}, leaf.Params); diff != "" {
		t.Errorf("leaf params mismatch (-want +got):\n%s", diff)
	}
	if leaf.Pathname != "/users/42" {
		t.Errorf("leaf pathname = %q, want %q", leaf.Pathname, "/users/42")
	}

	matches = MatchRoutes(routes, history.Path{Pathname: "/users"}, "/")
	if matches == nil {
		t.Fatal("MatchRoutes(/users) returned nil")
	}
	if got := matches[len(matches)-1].Route.ID; got != "users-index" {
		t.Errorf("leaf = %q, want %q", got, "users-index")
	}
}

func TestMatchRoutesParamsMergeDownward(t *testing.T) {
	routes := mustConvert(t, []Route{
		{ID: "org", Path: "/orgs/:org", Children: []Route{
			{ID: "repo", Path: "repos/:repo"},
		}},
	})

	matches := MatchRoutes(routes, history.Path{Pathname: "/orgs/acme/repos/widget"}, "/")
	if matches == nil {
		t.Fatal("MatchRoutes returned nil")
	}
	leaf := matches[len(matches)-1]
	if got := leaf.Params.Get("org"); got != "acme" {
		t.Errorf("params[org] = %q, want %q", got, "acme")
	}
	if got := leaf.Params.Get("repo"); got != "widget" {
		t.Errorf("params[repo] = %q, want %q", got, "widget")
	}
	// Parent params must not gain the child's entries.
	if matches[0].Params.Has("repo") {
		t.Error("parent match should not contain child params")
	}
}

func TestMatchRoutesSplatParam(t *testing.T) {
	routes := mustConvert(t, []Route{
		{ID: "files", Path: "/files/*"},
	})

	tests := []struct {
		pathname string
		want     string
	}{
		{"/files/a/b/c.txt", "a/b/c.txt"},
		{"/files", ""},
		{"/files/", ""},
	}

	for _, tt := range tests {
		matches := MatchRoutes(routes, history.Path{Pathname: tt.pathname}, "/")
		if matches == nil {
			t.Errorf("MatchRoutes(%q) = nil", tt.pathname)
			continue
		}
		if got := matches[0].Params.Get("*"); got != tt.want {
			t.Errorf("MatchRoutes(%q) params[*] = %q, want %q", tt.pathname, got, tt.want)
		}
	}
}

func TestMatchRoutesNoMatch(t *testing.T) {
	routes := mustConvert(t, []Route{
		{ID: "users", Path: "/users"},
	})

	tests := []string{"/posts", "/users2", "/usersx/1"}
	for _, pathname := range tests {
		if matches := MatchRoutes(routes, history.Path{Pathname: pathname}, "/"); matches != nil {
			t.Errorf("MatchRoutes(%q) = %v, want nil", pathname, matchedIDs(matches))
		}
	}

	// Partial prefixes only match at segment boundaries.
	if matches := MatchRoutes(routes, history.Path{Pathname: "/users/42"}, "/"); matches != nil {
		t.Errorf("MatchRoutes(/users/42) = %v, want nil", matchedIDs(matches))
	}
}

func TestMatchRoutesBasename(t *testing.T) {
	routes := mustConvert(t, []Route{
		{ID: "users", Path: "/users/:id"},
	})

	matches := MatchRoutes(routes, history.Path{Pathname: "/app/users/7"}, "/app")
	if matches == nil {
		t.Fatal("MatchRoutes with basename returned nil")
	}
	if got := matches[0].Params.Get("id"); got != "7" {
		t.Errorf("params[id] = %q, want %q", got, "7")
	}

	if matches := MatchRoutes(routes, history.Path{Pathname: "/users/7"}, "/app"); matches != nil {
		t.Error("pathname outside basename should not match")
	}
}

func TestMatchRoutesCaseInsensitiveDefault(t *testing.T) {
	routes := mustConvert(t, []Route{
		{ID: "about", Path: "/About"},
	})

	if MatchRoutes(routes, history.Path{Pathname: "/about"}, "/") == nil {
		t.Error("matching should be case-insensitive by default")
	}

	sensitive := mustConvert(t, []Route{
		{ID: "about", Path: "/About", CaseSensitive: true},
	})
	if MatchRoutes(sensitive, history.Path{Pathname: "/about"}, "/") != nil {
		t.Error("case-sensitive route matched a differently cased pathname")
	}
}

func TestMatchRoutesEncodedSegments(t *testing.T) {
	routes := mustConvert(t, []Route{
		{ID: "search", Path: "/search/:term"},
	})

	matches := MatchRoutes(routes, history.Path{Pathname: "/search/caf%C3%A9"}, "/")
	if matches == nil {
		t.Fatal("MatchRoutes returned nil")
	}
	if got := matches[0].Params.Get("term"); got != "café" {
		t.Errorf("params[term] = %q, want %q", got, "café")
	}
}

func TestMatchRoutesPathlessLayout(t *testing.T) {
	routes := mustConvert(t, []Route{
		{ID: "layout", Children: []Route{
			{ID: "a", Path: "/a"},
		}},
	})

	matches := MatchRoutes(routes, history.Path{Pathname: "/a"}, "/")
	if matches == nil {
		t.Fatal("MatchRoutes returned nil")
	}
	got := matchedIDs(matches)
	if len(got) != 2 || got[0] != "layout" || got[1] != "a" {
		t.Errorf("matched ids = %v, want [layout a]", got)
	}
}

func TestCompareIndexesSiblingsOnly(t *testing.T) {
	siblingA := []routeMeta{{childrenIndex: 0}, {childrenIndex: 1}}
	siblingB := []routeMeta{{childrenIndex: 0}, {childrenIndex: 3}}
	if got := compareIndexes(siblingA, siblingB); got >= 0 {
		t.Errorf("compareIndexes(siblings) = %d, want negative", got)
	}

	nonSiblingA := []routeMeta{{childrenIndex: 0}, {childrenIndex: 1}}
	nonSiblingB := []routeMeta{{childrenIndex: 2}, {childrenIndex: 0}}
	if got := compareIndexes(nonSiblingA, nonSiblingB); got != 0 {
		t.Errorf("compareIndexes(non-siblings) = %d, want 0", got)
	}
}
