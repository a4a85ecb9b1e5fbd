package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"blackjack-lite/apps/server/internal/table"
	"blackjack-lite/blackjack"
)

type fakeController struct {
	mu        sync.Mutex
	view      table.View
	startErr  error
	nextErr   error
	starts    int
	observers []func(string)
}

func (f *fakeController) View() table.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

func (f *fakeController) StartRound() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.startErr
}

func (f *fakeController) StartNewRound() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextErr
}

func (f *fakeController) AddObserver(fn func(string)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers = append(f.observers, fn)
	return func() {}
}

func (f *fakeController) emit(line string) {
	f.mu.Lock()
	obs := append(([]func(string))(nil), f.observers...)
	f.mu.Unlock()
	for _, fn := range obs {
		fn(line)
	}
}

func newTestGateway(t *testing.T, ctl *fakeController) (*Gateway, *httptest.Server) {
	t.Helper()
	g := New(ctl, nil)
	srv := httptest.NewServer(g.Router())
	t.Cleanup(func() {
		srv.Close()
		g.Close()
	})
	return g, srv
}

func TestGateway_HealthAndTable(t *testing.T) {
	ctl := &fakeController{view: table.View{TableID: "main", Connected: 2, Snapshot: blackjack.Snapshot{MaxPlayers: 3, StateName: "AWAITING_PLAYERS"}}}
	_, srv := newTestGateway(t, ctl)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/table")
	if err != nil {
		t.Fatalf("GET /api/table: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode table: %v", err)
	}
	if body["table_id"] != "main" || body["max_players"] != float64(3) || body["connected"] != float64(2) {
		t.Fatalf("unexpected table body: %v", body)
	}
}

func TestGateway_RoundControlMapsErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"ok", nil, http.StatusOK},
		{"started", blackjack.ErrRoundStarted, http.StatusConflict},
		{"short", fmt.Errorf("%w: 1/2", blackjack.ErrNotEnoughPlayers), http.StatusConflict},
		{"state", blackjack.ErrInvalidState("game not started"), http.StatusConflict},
		{"closed", table.ErrTableClosed, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctl := &fakeController{startErr: tc.err, nextErr: tc.err}
			_, srv := newTestGateway(t, ctl)
			for _, path := range []string{"/api/round/start", "/api/round/next"} {
				resp, err := http.Post(srv.URL+path, "application/json", nil)
				if err != nil {
					t.Fatalf("POST %s: %v", path, err)
				}
				resp.Body.Close()
				if resp.StatusCode != tc.status {
					t.Fatalf("POST %s: status %d, want %d", path, resp.StatusCode, tc.status)
				}
			}
		})
	}

	ctl := &fakeController{}
	_, srv := newTestGateway(t, ctl)
	resp, err := http.Get(srv.URL + "/api/round/start")
	if err != nil {
		t.Fatalf("GET start: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed || ctl.starts != 0 {
		t.Fatalf("GET must not start a round: status=%d starts=%d", resp.StatusCode, ctl.starts)
	}
}

func TestGateway_SpectatorFeed(t *testing.T) {
	ctl := &fakeController{view: table.View{Snapshot: blackjack.Snapshot{MaxPlayers: 2, DealerTokens: []string{"K-Spade"}}}}
	g, srv := newTestGateway(t, ctl)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first frame
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot frame: %v", err)
	}
	if first.Type != "snapshot" || !strings.Contains(string(first.Table), "K-Spade") {
		t.Fatalf("unexpected first frame: %+v", first)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		g.mu.RLock()
		n := len(g.connections)
		g.mu.RUnlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("spectator never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctl.emit("alice JOINED")
	var next frame
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read line frame: %v", err)
	}
	if next.Type != "line" || next.Line != "alice JOINED" {
		t.Fatalf("unexpected line frame: %+v", next)
	}
}
