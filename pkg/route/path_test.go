package route

import (
	"testing"

	"github.com/wayfind-dev/wayfind/pkg/history"
)

func TestMatchPath(t *testing.T) {
	tests := []struct {
		pattern  string
		end      bool
		pathname string
		wantBase string
		params   map[string]string
		noMatch  bool
	}{
		{pattern: "/users/:id", end: true, pathname: "/users/42", wantBase: "/users/42", params: map[string]string{"id": "42"}},
		{pattern: "/users/:id", end: true, pathname: "/users/42/posts", noMatch: true},
		{pattern: "/users", end: false, pathname: "/users/42", wantBase: "/users"},
		{pattern: "/users", end: false, pathname: "/usersabc", noMatch: true},
		{pattern: "/files/*", end: true, pathname: "/files/a/b", wantBase: "/files", params: map[string]string{"*": "a/b"}},
		{pattern: "*", end: true, pathname: "/a/b", wantBase: "", params: map[string]string{"*": "a/b"}},
		{pattern: "/", end: true, pathname: "/", wantBase: "/"},
		{pattern: "/about", end: true, pathname: "/about/", wantBase: "/about"},
	}

	for _, tt := range tests {
		m := MatchPath(PathPattern{Path: tt.pattern, End: tt.end}, tt.pathname)
		if tt.noMatch {
			if m != nil {
				t.Errorf("MatchPath(%q, %q) = %+v, want nil", tt.pattern, tt.pathname, m)
			}
			continue
		}
		if m == nil {
			t.Errorf("MatchPath(%q, %q) = nil, want match", tt.pattern, tt.pathname)
			continue
		}
		if m.PathnameBase != tt.wantBase {
			t.Errorf("MatchPath(%q, %q) base = %q, want %q", tt.pattern, tt.pathname, m.PathnameBase, tt.wantBase)
		}
		for name, want := range tt.params {
			if got := m.Params.Get(name); got != want {
				t.Errorf("MatchPath(%q, %q) params[%s] = %q, want %q", tt.pattern, tt.pathname, name, got, want)
			}
		}
	}
}

func TestGeneratePath(t *testing.T) {
	tests := []struct {
		path    string
		params  Params
		want    string
		wantErr bool
	}{
		{path: "/users/:id", params: Params{"id": "42"}, want: "/users/42"},
		{path: "/users/:id/posts/:postId", params: Params{"id": "1", "postId": "2"}, want: "/users/1/posts/2"},
		{path: "/files/*", params: Params{"*": "a/b.txt"}, want: "/files/a/b.txt"},
		{path: "/files/*", params: Params{"*": ""}, want: "/files"},
		{path: ":id", params: Params{"id": "42"}, want: "42"},
		{path: "users/:id", params: Params{"id": "7"}, want: "users/7"},
		{path: "/users/:id", params: Params{}, wantErr: true},
	}

	for _, tt := range tests {
		got, err := GeneratePath(tt.path, tt.params)
		if tt.wantErr {
			if err == nil {
				t.Errorf("GeneratePath(%q) error = nil, want error", tt.path)
			}
			continue
		}
		if err != nil {
			t.Errorf("GeneratePath(%q) error = %v", tt.path, err)
			continue
		}
		if got != tt.want {
			t.Errorf("GeneratePath(%q, %v) = %q, want %q", tt.path, tt.params, got, tt.want)
		}
	}
}

func TestGenerateMatchRoundTrip(t *testing.T) {
	patterns := []struct {
		path   string
		params Params
	}{
		{"/users/:id", Params{"id": "42"}},
		{"/orgs/:org/repos/:repo", Params{"org": "acme", "repo": "widget"}},
		{"/files/*", Params{"*": "docs/readme.md"}},
	}

	for _, tt := range patterns {
		pathname, err := GeneratePath(tt.path, tt.params)
		if err != nil {
			t.Fatalf("GeneratePath(%q): %v", tt.path, err)
		}
		m := MatchPath(PathPattern{Path: tt.path, End: true}, pathname)
		if m == nil {
			t.Fatalf("MatchPath(%q, %q) = nil", tt.path, pathname)
		}
		for name, want := range tt.params {
			if got := m.Params.Get(name); got != want {
				t.Errorf("round trip %q params[%s] = %q, want %q", tt.path, name, got, want)
			}
		}
	}
}

func TestResolvePath(t *testing.T) {
	tests := []struct {
		to   history.Path
		from string
		want string
	}{
		{history.Path{Pathname: "/about"}, "/users/42", "/about"},
		{history.Path{Pathname: "settings"}, "/users/42", "/users/42/settings"},
		{history.Path{Pathname: ".."}, "/users/42", "/users"},
		{history.Path{Pathname: "../.."}, "/users/42", "/"},
		{history.Path{Pathname: "../../.."}, "/users/42", "/"},
		{history.Path{Pathname: "."}, "/users/42", "/users/42"},
		{history.Path{}, "/users/42", "/users/42"},
	}

	for _, tt := range tests {
		got := ResolvePath(tt.to, tt.from)
		if got.Pathname != tt.want {
			t.Errorf("ResolvePath(%q, %q) = %q, want %q", tt.to.Pathname, tt.from, got.Pathname, tt.want)
		}
	}
}

func TestResolveTo(t *testing.T) {
	routePathnames := []string{"/", "/users", "/users/42"}

	tests := []struct {
		to   string
		want string
	}{
		{"/absolute", "/absolute"},
		{"edit", "/users/42/edit"},
		{"..", "/users"},
		{"../..", "/"},
	}

	for _, tt := range tests {
		got := ResolveTo(history.ParsePath(tt.to), routePathnames, "/users/42")
		if got.Pathname != tt.want {
			t.Errorf("ResolveTo(%q) = %q, want %q", tt.to, got.Pathname, tt.want)
		}
	}
}

func TestStripBasename(t *testing.T) {
	tests := []struct {
		pathname string
		basename string
		want     string
		ok       bool
	}{
		{"/app/users", "/app", "/users", true},
		{"/app", "/app", "/", true},
		{"/app/", "/app", "/", true},
		{"/users", "/app", "", false},
		{"/application", "/app", "", false},
		{"/APP/users", "/app", "/users", true},
		{"/anything", "/", "/anything", true},
	}

	for _, tt := range tests {
		got, ok := StripBasename(tt.pathname, tt.basename)
		if ok != tt.ok {
			t.Errorf("StripBasename(%q, %q) ok = %v, want %v", tt.pathname, tt.basename, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("StripBasename(%q, %q) = %q, want %q", tt.pathname, tt.basename, got, tt.want)
		}
	}
}

func TestJoinPaths(t *testing.T) {
	tests := []struct {
		paths []string
		want  string
	}{
		{[]string{"/app", "/users"}, "/app/users"},
		{[]string{"/", "users"}, "/users"},
		{[]string{"/app/", "/users/"}, "/app/users/"},
	}

	for _, tt := range tests {
		if got := JoinPaths(tt.paths...); got != tt.want {
			t.Errorf("JoinPaths(%v) = %q, want %q", tt.paths, got, tt.want)
		}
	}
}
