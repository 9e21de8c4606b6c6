package devtools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wayfind-dev/wayfind/pkg/history"
	"github.com/wayfind-dev/wayfind/pkg/route"
	"github.com/wayfind-dev/wayfind/pkg/router"
)

func newTestRouter(t *testing.T) *router.Router {
	t.Helper()
	r, err := router.New(router.Init{
		History: history.NewMemoryHistory(history.WithInitialEntries("/")),
		Routes: []route.Route{
			{ID: "root", Path: "/", Children: []route.Route{
				{ID: "about", Path: "about", Loader: func(ctx context.Context, args route.LoaderArgs) (any, error) {
					return "about data", nil
				}},
			}},
		},
	})
	if err != nil {
		t.Fatalf("router.New: %v", err)
	}
	t.Cleanup(r.Dispose)
	r.Initialize()
	return r
}

func TestStateEndpoint(t *testing.T) {
	r := newTestRouter(t)
	dt := NewServer(r)
	defer dt.Close()

	srv := httptest.NewServer(dt.Handler())
	defer srv.Close()

	if err := r.Navigate("/about"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}

	resp, err := http.Get(srv.URL + "/state")
	if err != nil {
		t.Fatalf("GET /state: %v", err)
	}
	defer resp.Body.Close()

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Location != "/about" {
		t.Errorf("Location = %q, want %q", snap.Location, "/about")
	}
	if snap.Navigation != "idle" {
		t.Errorf("Navigation = %q, want idle", snap.Navigation)
	}
	if snap.LoaderData["about"] != "about data" {
		t.Errorf("LoaderData[about] = %v", snap.LoaderData["about"])
	}
	if len(snap.Matches) != 2 || snap.Matches[1] != "about" {
		t.Errorf("Matches = %v", snap.Matches)
	}
}

func TestWebsocketStream(t *testing.T) {
	r := newTestRouter(t)
	dt := NewServer(r)
	defer dt.Close()

	srv := httptest.NewServer(dt.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// First frame is the current state.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var snap Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if snap.Location != "/" {
		t.Errorf("initial Location = %q, want /", snap.Location)
	}

	if err := r.Navigate("/about"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}

	// The navigation broadcasts loading then idle; read until idle.
	for {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("read snapshot: %v", err)
		}
		if snap.Navigation == "idle" && snap.Location == "/about" {
			break
		}
	}
	if snap.LoaderData["about"] != "about data" {
		t.Errorf("LoaderData[about] = %v", snap.LoaderData["about"])
	}
}

func TestSnapshotStringifiesOpaqueValues(t *testing.T) {
	got := jsonSafe(make(chan int))
	if _, ok := got.(string); !ok {
		t.Errorf("jsonSafe(chan) = %T, want string", got)
	}
	if jsonSafe(nil) != nil {
		t.Error("jsonSafe(nil) should stay nil")
	}
}
