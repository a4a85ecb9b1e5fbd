package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/encoding/protojson"

	"blackjack-lite/apps/server/internal/codec"
	"blackjack-lite/apps/server/internal/ledger"
	"blackjack-lite/apps/server/internal/table"
	"blackjack-lite/blackjack"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 30 * time.Second
	sendBuffer   = 256
	maxReadBytes = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Controller is the table surface the gateway drives.
type Controller interface {
	View() table.View
	StartRound() error
	StartNewRound() error
	AddObserver(fn func(line string)) func()
}

// Connection is one websocket spectator.
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Gateway *Gateway
}

// Gateway serves the control API and the spectator feed.
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	nextConnID  uint64

	table   Controller
	ledger  ledger.Service
	started time.Time

	unobserve func()
}

type frame struct {
	Type  string          `json:"type"`
	Line  string          `json:"line,omitempty"`
	Table json.RawMessage `json:"table,omitempty"`
}

func New(ctl Controller, ledgerService ledger.Service) *Gateway {
	g := &Gateway{
		connections: make(map[string]*Connection),
		table:       ctl,
		ledger:      ledgerService,
		started:     time.Now(),
	}
	g.unobserve = ctl.AddObserver(g.broadcastLine)
	return g
}

func (g *Gateway) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", g.handleHealth)
	r.Get("/api/table", g.handleTable)
	r.Post("/api/round/start", g.handleRound(g.table.StartRound))
	r.Post("/api/round/next", g.handleRound(g.table.StartNewRound))
	r.Get("/ws", g.HandleWebSocket)
	if g.ledger != nil {
		ledger.NewHTTPHandler(g.ledger).RegisterRoutes(r)
	}
	return r
}

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	g.mu.RLock()
	spectators := len(g.connections)
	g.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"uptime_sec": int64(time.Since(g.started).Seconds()),
		"spectators": spectators,
	})
}

func (g *Gateway) handleTable(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.table.View())
}

func (g *Gateway) handleRound(start func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if err := start(); err != nil {
			writeJSON(w, statusFor(err), map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, g.table.View())
	}
}

func statusFor(err error) int {
	var stateErr blackjack.InvalidStateError
	switch {
	case errors.Is(err, table.ErrTableClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, blackjack.ErrRoundStarted),
		errors.Is(err, blackjack.ErrRoundInProgress),
		errors.Is(err, blackjack.ErrNotEnoughPlayers),
		errors.Is(err, blackjack.ErrDeckLow),
		errors.As(err, &stateErr):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// HandleWebSocket upgrades a spectator. The first frame is the table
// snapshot, then every broadcast line follows.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] Upgrade error: %v", err)
		return
	}

	c := &Connection{
		Conn:    conn,
		Send:    make(chan []byte, sendBuffer),
		Gateway: g,
	}
	// queued before registration so it precedes every line
	if data, err := g.snapshotFrame(); err != nil {
		log.Printf("[Gateway] snapshot frame failed: %v", err)
	} else {
		c.Send <- data
	}

	g.mu.Lock()
	g.nextConnID++
	c.ID = fmt.Sprintf("spec_%d", g.nextConnID)
	g.connections[c.ID] = c
	total := len(g.connections)
	g.mu.Unlock()

	log.Printf("[Gateway] Spectator connected: %s, total: %d", c.ID, total)

	go c.readPump()
	go c.writePump()
}

func (g *Gateway) snapshotFrame() ([]byte, error) {
	view := g.table.View()
	msg, err := codec.SnapshotToProto(view.Snapshot)
	if err != nil {
		return nil, err
	}
	raw, err := protojson.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(frame{Type: "snapshot", Table: raw})
}

// readPump only watches for the peer going away; spectators do not send.
func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxReadBytes)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Gateway] Read error: %v", err)
			}
			return
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.connections[c.ID]; !ok {
		return
	}
	delete(g.connections, c.ID)
	close(c.Send)
	log.Printf("[Gateway] Spectator disconnected: %s, total: %d", c.ID, len(g.connections))
}

// broadcastLine runs on the table actor; it never blocks.
func (g *Gateway) broadcastLine(line string) {
	data, err := json.Marshal(frame{Type: "line", Line: line})
	if err != nil {
		return
	}
	g.Broadcast(data)
}

// Broadcast sends a message to all spectators
func (g *Gateway) Broadcast(message []byte) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, c := range g.connections {
		select {
		case c.Send <- message:
		default:
			// Drop message if buffer full
		}
	}
}

// Close detaches from the table and drops every spectator.
func (g *Gateway) Close() {
	if g.unobserve != nil {
		g.unobserve()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, c := range g.connections {
		delete(g.connections, id)
		close(c.Send)
	}
}

// Serve runs the HTTP server until ctx ends.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Gateway] HTTP listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
