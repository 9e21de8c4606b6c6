// Package history defines the session-history collaborator used by the
// navigation runtime.
//
// The router only ever talks to the History interface. Concrete backends
// (browser bridges, test doubles) live outside the engine; this package ships
// a single in-memory implementation suitable for tests and headless
// embedding.
package history

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Action describes how a location change entered the history stack.
type Action string

const (
	// ActionPop is a change to an existing entry (back/forward traversal,
	// or the initial load).
	ActionPop Action = "POP"

	// ActionPush adds a new entry to the stack.
	ActionPush Action = "PUSH"

	// ActionReplace overwrites the current entry.
	ActionReplace Action = "REPLACE"
)

// Path is the structural portion of a URL: pathname, search and hash.
type Path struct {
	// Pathname begins with "/".
	Pathname string

	// Search begins with "?" or is empty.
	Search string

	// Hash begins with "#" or is empty.
	Hash string
}

// Location is a Path stored on the history stack, together with arbitrary
// caller state and a unique key identifying the entry.
type Location struct {
	Path

	// State is the opaque value associated with this entry.
	State any

	// Key uniquely identifies this entry within the stack.
	Key string
}

// Update is delivered to history listeners when the current entry changes
// underneath the router (back/forward traversal).
type Update struct {
	Action   Action
	Location Location
	Delta    int
}

// Listener receives history updates.
type Listener func(Update)

// History is the contract between the navigation runtime and a session
// history backend. The router only invokes the mutators (Push, Replace, Go)
// once a navigation has fully settled; it never touches history mid-flight.
type History interface {
	// Action returns the kind of the most recent location change.
	Action() Action

	// Location returns the current location.
	Location() Location

	// CreateHref returns a stringified href for the given path, suitable
	// for handing to an anchor or address bar.
	CreateHref(to Path) string

	// EncodeLocation percent-encodes the path the same way the backing
	// store would, so matching sees the wire form.
	EncodeLocation(to Path) Path

	// Push adds a new entry to the stack.
	Push(to Path, state any)

	// Replace overwrites the current entry.
	Replace(to Path, state any)

	// Go traverses the stack by delta entries (negative = back).
	Go(delta int)

	// Listen registers the listener notified on stack traversal. A history
	// supports a single active listener; the returned function removes it.
	Listen(listener Listener) func()
}

// ParsePath splits an href string into its pathname, search and hash parts.
func ParsePath(path string) Path {
	var parsed Path
	if path == "" {
		return parsed
	}

	if idx := strings.Index(path, "#"); idx >= 0 {
		parsed.Hash = path[idx:]
		path = path[:idx]
		if parsed.Hash == "#" {
			parsed.Hash = ""
		}
	}
	if idx := strings.Index(path, "?"); idx >= 0 {
		parsed.Search = path[idx:]
		path = path[:idx]
		if parsed.Search == "?" {
			parsed.Search = ""
		}
	}
	parsed.Pathname = path
	return parsed
}

// CreatePath joins a Path back into an href string.
func CreatePath(p Path) string {
	var sb strings.Builder
	sb.WriteString(p.Pathname)
	if p.Search != "" && p.Search != "?" {
		if !strings.HasPrefix(p.Search, "?") {
			sb.WriteByte('?')
		}
		sb.WriteString(p.Search)
	}
	if p.Hash != "" && p.Hash != "#" {
		if !strings.HasPrefix(p.Hash, "#") {
			sb.WriteByte('#')
		}
		sb.WriteString(p.Hash)
	}
	return sb.String()
}

// String implements fmt.Stringer.
func (p Path) String() string { return CreatePath(p) }

// URL materializes the path as a *url.URL rooted at an opaque origin.
// Useful for comparing search params without string slicing.
func (p Path) URL() *url.URL {
	u := &url.URL{Path: p.Pathname}
	u.RawQuery = strings.TrimPrefix(p.Search, "?")
	u.Fragment = strings.TrimPrefix(p.Hash, "#")
	return u
}

// CreateLocation builds a Location for the given destination. The current
// location contributes nothing today but keeps the signature stable for
// backends that inherit missing parts from it.
func CreateLocation(_ Location, to Path, state any, key string) Location {
	if key == "" {
		key = createKey()
	}
	loc := Location{Path: to, State: state, Key: key}
	if loc.Pathname == "" {
		loc.Pathname = "/"
	}
	return loc
}

// createKey returns a short unique key for a history entry.
func createKey() string {
	return uuid.NewString()[:8]
}
