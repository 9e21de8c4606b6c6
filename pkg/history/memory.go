package history

import (
	"net/url"
	"sync"
)

// MemoryHistory is an in-memory History implementation. It keeps the full
// entry stack in a slice and supports back/forward traversal via Go.
//
// All methods are safe for concurrent use.
type MemoryHistory struct {
	mu       sync.Mutex
	entries  []Location
	index    int
	action   Action
	listener Listener
}

// MemoryOption configures a MemoryHistory.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	initialEntries []string
	initialIndex   int
	hasIndex       bool
}

// WithInitialEntries seeds the history stack. Entries are hrefs, ordered
// oldest to newest. Defaults to a single "/" entry.
func WithInitialEntries(entries ...string) MemoryOption {
	return func(c *memoryConfig) {
		c.initialEntries = entries
	}
}

// WithInitialIndex sets the starting position within the initial entries.
// Defaults to the last entry. Out-of-range values are clamped.
func WithInitialIndex(index int) MemoryOption {
	return func(c *memoryConfig) {
		c.initialIndex = index
		c.hasIndex = true
	}
}

// NewMemoryHistory creates a MemoryHistory.
func NewMemoryHistory(opts ...MemoryOption) *MemoryHistory {
	cfg := memoryConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.initialEntries) == 0 {
		cfg.initialEntries = []string{"/"}
	}

	h := &MemoryHistory{action: ActionPop}
	for _, entry := range cfg.initialEntries {
		h.entries = append(h.entries, CreateLocation(Location{}, ParsePath(entry), nil, ""))
	}
	h.index = len(h.entries) - 1
	if cfg.hasIndex {
		h.index = clamp(cfg.initialIndex, 0, len(h.entries)-1)
	}
	return h
}

// Action returns the kind of the most recent location change.
func (h *MemoryHistory) Action() Action {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.action
}

// Location returns the current location.
func (h *MemoryHistory) Location() Location {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.index]
}

// Index returns the current position within the stack.
func (h *MemoryHistory) Index() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index
}

// CreateHref returns the href form of the given path.
func (h *MemoryHistory) CreateHref(to Path) string {
	return CreatePath(to)
}

// EncodeLocation percent-encodes the path via net/url parsing, mirroring
// what a browser address bar would store.
func (h *MemoryHistory) EncodeLocation(to Path) Path {
	u, err := url.Parse(CreatePath(to))
	if err != nil {
		return to
	}
	encoded := Path{Pathname: u.EscapedPath()}
	if encoded.Pathname == "" {
		encoded.Pathname = "/"
	}
	if u.RawQuery != "" {
		encoded.Search = "?" + u.RawQuery
	}
	if u.Fragment != "" {
		encoded.Hash = "#" + u.EscapedFragment()
	}
	return encoded
}

// Push adds a new entry, truncating any forward entries.
func (h *MemoryHistory) Push(to Path, state any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.action = ActionPush
	loc := CreateLocation(h.entries[h.index], to, state, "")
	h.index++
	h.entries = append(h.entries[:h.index], loc)
}

// Replace overwrites the current entry.
func (h *MemoryHistory) Replace(to Path, state any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.action = ActionReplace
	h.entries[h.index] = CreateLocation(h.entries[h.index], to, state, "")
}

// Go traverses the stack by delta entries and notifies the listener.
// The target index is clamped to the valid range.
func (h *MemoryHistory) Go(delta int) {
	h.mu.Lock()
	nextIndex := clamp(h.index+delta, 0, len(h.entries)-1)
	h.action = ActionPop
	h.index = nextIndex
	listener := h.listener
	update := Update{Action: ActionPop, Location: h.entries[h.index], Delta: delta}
	h.mu.Unlock()

	if listener != nil {
		listener(update)
	}
}

// Listen registers the single active listener.
func (h *MemoryHistory) Listen(listener Listener) func() {
	h.mu.Lock()
	h.listener = listener
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		h.listener = nil
		h.mu.Unlock()
	}
}

func clamp(n, low, high int) int {
	if n < low {
		return low
	}
	if n > high {
		return high
	}
	return n
}
