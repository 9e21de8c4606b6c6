// Package devtools exposes a router's state over HTTP for inspection.
// A Server offers a JSON snapshot endpoint and a websocket stream that
// pushes a snapshot on every committed state change.
//
// Example:
//
//	dt := devtools.NewServer(r)
//	defer dt.Close()
//	go http.ListenAndServe("localhost:8998", dt.Handler())
package devtools

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wayfind-dev/wayfind/pkg/history"
	"github.com/wayfind-dev/wayfind/pkg/router"
)

// Snapshot is the wire representation of one router state.
type Snapshot struct {
	HistoryAction string             `json:"historyAction"`
	Location      string             `json:"location"`
	Initialized   bool               `json:"initialized"`
	Navigation    string             `json:"navigation"`
	Revalidation  string             `json:"revalidation"`
	Matches       []string           `json:"matches"`
	LoaderData    map[string]any     `json:"loaderData,omitempty"`
	ActionData    map[string]any     `json:"actionData,omitempty"`
	Errors        map[string]string  `json:"errors,omitempty"`
	Fetchers      map[string]Fetcher `json:"fetchers,omitempty"`
}

// Fetcher is the wire representation of one fetcher.
type Fetcher struct {
	State string `json:"state"`
	Data  any    `json:"data,omitempty"`
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithCheckOrigin sets the websocket origin check. The default accepts
// every origin; the endpoint is meant for local development only.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(s *Server) { s.upgrader.CheckOrigin = fn }
}

// Server streams router state to connected clients.
type Server struct {
	router   *router.Router
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu          sync.Mutex
	clients     map[chan []byte]struct{}
	closed      bool
	unsubscribe func()
}

// NewServer subscribes to the router and begins tracking state. Close
// releases the subscription.
func NewServer(r *router.Router, opts ...Option) *Server {
	s := &Server{
		router:  r,
		log:     zap.NewNop(),
		clients: make(map[chan []byte]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.unsubscribe = r.Subscribe(s.broadcast)
	return s
}

// Handler returns the HTTP surface: GET /state for a one-shot snapshot
// and GET /ws for the websocket stream.
func (s *Server) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Get("/state", s.handleState)
	mux.Get("/ws", s.handleWS)
	return mux
}

// Close unsubscribes from the router and disconnects every client.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	clients := s.clients
	s.clients = make(map[chan []byte]struct{})
	s.mu.Unlock()

	s.unsubscribe()
	for ch := range clients {
		close(ch)
	}
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot(s.router.State())); err != nil {
		s.log.Warn("devtools snapshot encode failed", zap.Error(err))
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("devtools websocket upgrade failed", zap.Error(err))
		return
	}

	ch := make(chan []byte, 16)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[ch] = struct{}{}
	s.mu.Unlock()

	// Current state first, so a client never waits for the next change.
	if msg, err := json.Marshal(snapshot(s.router.State())); err == nil {
		select {
		case ch <- msg:
		default:
		}
	}

	// Reader drains control frames and detects the close.
	go func() {
		defer s.dropClient(ch)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for msg := range ch {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
	conn.Close()
}

func (s *Server) dropClient(ch chan []byte) {
	s.mu.Lock()
	if _, ok := s.clients[ch]; ok {
		delete(s.clients, ch)
		close(ch)
	}
	s.mu.Unlock()
}

func (s *Server) broadcast(st router.State) {
	msg, err := json.Marshal(snapshot(st))
	if err != nil {
		s.log.Warn("devtools snapshot encode failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.clients {
		// Slow clients drop updates rather than stall the router.
		select {
		case ch <- msg:
		default:
		}
	}
}

func snapshot(st router.State) Snapshot {
	snap := Snapshot{
		HistoryAction: string(st.HistoryAction),
		Location:      history.CreatePath(st.Location.Path),
		Initialized:   st.Initialized,
		Navigation:    string(st.Navigation.State),
		Revalidation:  string(st.Revalidation),
	}
	for _, m := range st.Matches {
		snap.Matches = append(snap.Matches, m.Route.ID)
	}
	if len(st.LoaderData) > 0 {
		snap.LoaderData = make(map[string]any, len(st.LoaderData))
		for id, v := range st.LoaderData {
			snap.LoaderData[id] = jsonSafe(v)
		}
	}
	if len(st.ActionData) > 0 {
		snap.ActionData = make(map[string]any, len(st.ActionData))
		for id, v := range st.ActionData {
			snap.ActionData[id] = jsonSafe(v)
		}
	}
	if len(st.Errors) > 0 {
		snap.Errors = make(map[string]string, len(st.Errors))
		for id, err := range st.Errors {
			snap.Errors[id] = err.Error()
		}
	}
	if len(st.Fetchers) > 0 {
		snap.Fetchers = make(map[string]Fetcher, len(st.Fetchers))
		for key, f := range st.Fetchers {
			snap.Fetchers[key] = Fetcher{State: string(f.State), Data: jsonSafe(f.Data)}
		}
	}
	return snap
}

// jsonSafe keeps marshalable values as-is and stringifies the rest, so
// one opaque loader value never breaks the whole snapshot.
func jsonSafe(v any) any {
	if v == nil {
		return nil
	}
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return v
}
