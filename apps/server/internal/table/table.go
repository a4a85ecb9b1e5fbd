package table

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"blackjack-lite/apps/server/internal/codec"
	"blackjack-lite/apps/server/internal/ledger"
	"blackjack-lite/apps/server/internal/session"
	"blackjack-lite/blackjack"
)

var ErrTableClosed = errors.New("table closed")

// Config contains table settings
type Config struct {
	Game blackjack.Config
	// AutoStart deals the first round as soon as the roster is full.
	AutoStart bool
	// AutoNextRound schedules the next round this long after one resolves.
	// Zero leaves new rounds to the control surface.
	AutoNextRound time.Duration
}

// Table owns one blackjack session with an actor model: every mutation of
// the engine and the roster goes through the events queue.
type Table struct {
	ID  string
	cfg Config

	mu       sync.Mutex
	game     *blackjack.Game
	registry *session.Registry
	ledger   ledger.Service
	closed   bool
	stopOnce sync.Once

	events chan Event
	done   chan struct{}

	nextPlayerID atomic.Uint64

	// current round bookkeeping, touched only by the actor
	roundID     string
	tape        []string
	nextRoundAt time.Time

	obsMu     sync.RWMutex
	observers map[uint64]func(line string)
	nextObsID uint64
}

// Event types for the actor message queue
type EventType int

const (
	EventJoin EventType = iota
	EventLeave
	EventLine
	EventStartRound
	EventNewRound
	EventClose
)

var eventTypeNames = map[EventType]string{
	EventJoin:       "join",
	EventLeave:      "leave",
	EventLine:       "line",
	EventStartRound: "start_round",
	EventNewRound:   "new_round",
	EventClose:      "close",
}

func (e EventType) String() string {
	if s, ok := eventTypeNames[e]; ok {
		return s
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// Event represents a message to the table actor
type Event struct {
	Type      EventType
	Conn      *session.Conn
	PlayerID  uint64
	Line      string
	Cause     error
	Timestamp time.Time
	Response  chan error
}

// View is the control surface's picture of the table.
type View struct {
	TableID   string `json:"table_id"`
	RoundID   string `json:"round_id,omitempty"`
	Connected int    `json:"connected"`
	blackjack.Snapshot
}

// New creates a table and starts its actor.
func New(id string, cfg Config, ledgerService ledger.Service) (*Table, error) {
	game, err := blackjack.NewGame(cfg.Game)
	if err != nil {
		return nil, err
	}
	if ledgerService == nil {
		ledgerService, _, _ = ledger.New(ledger.Options{Mode: ledger.ModeNone})
	}
	t := &Table{
		ID:        id,
		cfg:       cfg,
		game:      game,
		registry:  session.NewRegistry(),
		ledger:    ledgerService,
		events:    make(chan Event, 256),
		done:      make(chan struct{}),
		observers: make(map[uint64]func(string)),
	}

	go t.run()

	log.Printf("[Table %s] Created (max=%d, enforce_turns=%v, auto_start=%v, auto_next=%s)",
		id, cfg.Game.MaxPlayers, cfg.Game.EnforceTurnOrder, cfg.AutoStart, cfg.AutoNextRound)
	return t, nil
}

// run is the main actor loop
func (t *Table) run() {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case event := <-t.events:
			err := t.handleEvent(event)
			if event.Response != nil {
				event.Response <- err
			}
		case <-ticker.C:
			t.tick()
		case <-t.done:
			log.Printf("[Table %s] Actor stopped", t.ID)
			return
		}
	}
}

func (t *Table) handleEvent(e Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed && e.Type != EventClose {
		return ErrTableClosed
	}

	switch e.Type {
	case EventJoin:
		return t.handleJoin(e.Conn)
	case EventLeave:
		return t.handleLeave(e.PlayerID, e.Cause)
	case EventLine:
		return t.handleLine(e.PlayerID, e.Line)
	case EventStartRound:
		return t.handleStartRound()
	case EventNewRound:
		return t.handleNewRound()
	case EventClose:
		t.stopLocked()
		return nil
	}
	return fmt.Errorf("unknown event type %s", e.Type)
}

func (t *Table) handleJoin(c *session.Conn) error {
	if c == nil {
		return fmt.Errorf("nil connection")
	}
	u, err := t.game.AddPlayer(c.ID, c.Name)
	if err != nil {
		return err
	}
	if err := t.registry.Add(c); err != nil {
		_, _ = t.game.RemovePlayer(c.ID)
		return err
	}
	c.Start(t.onLine, t.onGone)
	log.Printf("[Table %s] %s joined (id=%d port=%d addr=%s, %d/%d)",
		t.ID, c.Name, c.ID, c.Port, c.RemoteAddr(), t.registry.Len(), t.cfg.Game.MaxPlayers)
	t.dispatch(u)

	if t.game.Ready() {
		log.Printf("[Table %s] All players have joined (%d players), ready to start.", t.ID, t.registry.Len())
		if t.cfg.AutoStart {
			if err := t.handleStartRound(); err != nil {
				log.Printf("[Table %s] Auto start failed: %v", t.ID, err)
			}
		}
	}
	return nil
}

func (t *Table) handleLeave(playerID uint64, cause error) error {
	c := t.registry.Remove(playerID)
	if c == nil {
		return nil
	}
	log.Printf("[Table %s] %s left (id=%d): %v", t.ID, c.Name, playerID, cause)
	u, err := t.game.RemovePlayer(playerID)
	if err != nil {
		return err
	}
	t.dispatch(u)
	if t.registry.Len() == 0 {
		t.nextRoundAt = time.Time{}
	}
	return nil
}

func (t *Table) handleLine(playerID uint64, line string) error {
	c := t.registry.Get(playerID)
	if c == nil {
		return blackjack.ErrUnknownPlayer
	}
	if action, ok := blackjack.ParseAction(line); ok {
		u, err := t.game.Act(playerID, action)
		t.dispatch(u)
		if err != nil {
			log.Printf("[Table %s] %s from %s ignored: %v", t.ID, action, c.Name, err)
		}
		return err
	}
	if strings.TrimSpace(line) == "" {
		err := fmt.Errorf("%w: empty line", blackjack.ErrMalformedCommand)
		log.Printf("[Table %s] %s from %s", t.ID, err, c.Name)
		return err
	}
	t.dispatch(blackjack.Update{Events: []blackjack.Event{blackjack.ChatEvent(c.Name, line)}})
	return nil
}

func (t *Table) handleStartRound() error {
	u, err := t.game.StartRound()
	if err != nil {
		return err
	}
	t.beginRoundLocked()
	t.logRoundStart()
	t.dispatch(u)
	return nil
}

func (t *Table) handleNewRound() error {
	t.nextRoundAt = time.Time{}
	u, err := t.game.StartNewRound()
	if err != nil {
		// a refused round still carries the DECK EXHAUSTED notice
		t.dispatch(u)
		log.Printf("[Table %s] New round refused: %v", t.ID, err)
		return err
	}
	t.beginRoundLocked()
	t.logRoundStart()
	t.dispatch(u)
	return nil
}

func (t *Table) beginRoundLocked() {
	t.roundID = uuid.NewString()
	t.tape = t.tape[:0]
}

func (t *Table) logRoundStart() {
	if r, ok := t.game.Round(); ok {
		log.Printf("[Table %s] Round %d started (id=%s, players=%d)", t.ID, r.Number, t.roundID, t.registry.Len())
	}
}

// dispatch delivers engine events in order: broadcasts to every player and
// every observer, directed events to their player only.
func (t *Table) dispatch(u blackjack.Update) {
	for _, e := range u.Events {
		line := e.Line()
		if e.Broadcast() {
			t.registry.Broadcast(line)
			t.tape = append(t.tape, line)
			t.notifyObservers(line)
			continue
		}
		t.registry.SendTo(e.To, line)
	}
	if u.RoundEnd != nil {
		t.finishRound(u.RoundEnd)
	}
}

func (t *Table) finishRound(res *blackjack.RoundResult) {
	if res.Aborted {
		log.Printf("[Table %s] Round %d aborted: %s", t.ID, res.Round, res.Reason)
	} else {
		log.Printf("[Table %s] Round %d resolved (dealer=%d busted=%v, players=%d)",
			t.ID, res.Round, res.DealerScore, res.DealerBusted, len(res.PlayerResults))
	}

	rec, err := ledger.NewRoundRecord(codec.RoundEnvelope{
		RoundID:  t.roundID,
		PlayedAt: time.Now().UTC(),
		Result:   res,
		Tape:     t.tape,
	})
	if err != nil {
		log.Printf("[Ledger] build round record failed: round=%s err=%v", t.roundID, err)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := t.ledger.RecordRound(ctx, rec); err != nil {
			log.Printf("[Ledger] record round failed: round=%s err=%v", t.roundID, err)
		}
		cancel()
	}

	if t.cfg.AutoNextRound > 0 && t.registry.Len() > 0 {
		t.nextRoundAt = time.Now().Add(t.cfg.AutoNextRound)
	}
}

func (t *Table) tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.nextRoundAt.IsZero() || time.Now().Before(t.nextRoundAt) {
		return
	}
	if err := t.handleNewRound(); err != nil && !errors.Is(err, blackjack.ErrDeckLow) {
		log.Printf("[Table %s] Scheduled round failed: %v", t.ID, err)
	}
}

func (t *Table) onLine(c *session.Conn, line string) {
	if err := t.SubmitEvent(Event{Type: EventLine, PlayerID: c.ID, Line: line}); errors.Is(err, ErrTableClosed) {
		_ = c.Close()
	}
}

func (t *Table) onGone(c *session.Conn, cause error) {
	_ = t.SubmitEvent(Event{Type: EventLeave, PlayerID: c.ID, Cause: cause})
}

// SubmitEvent queues an event for the actor and waits for its result.
func (t *Table) SubmitEvent(e Event) error {
	e.Timestamp = time.Now()
	if e.Response == nil {
		e.Response = make(chan error, 1)
	}

	select {
	case <-t.done:
		return ErrTableClosed
	default:
	}

	select {
	case t.events <- e:
	case <-t.done:
		return ErrTableClosed
	}

	select {
	case err := <-e.Response:
		return err
	case <-t.done:
		return ErrTableClosed
	}
}

// Join seats an admitted connection and starts its pumps.
func (t *Table) Join(c *session.Conn) error {
	return t.SubmitEvent(Event{Type: EventJoin, Conn: c})
}

func (t *Table) StartRound() error {
	return t.SubmitEvent(Event{Type: EventStartRound})
}

func (t *Table) StartNewRound() error {
	return t.SubmitEvent(Event{Type: EventNewRound})
}

// CanJoin is advisory; Join re-checks inside the actor.
func (t *Table) CanJoin() bool {
	select {
	case <-t.done:
		return false
	default:
	}
	return t.game.CanJoin()
}

func (t *Table) NextPlayerID() uint64 {
	return t.nextPlayerID.Add(1)
}

func (t *Table) Snapshot() blackjack.Snapshot {
	return t.game.Snapshot()
}

func (t *Table) View() View {
	t.mu.Lock()
	roundID := t.roundID
	t.mu.Unlock()
	return View{
		TableID:   t.ID,
		RoundID:   roundID,
		Connected: t.registry.Len(),
		Snapshot:  t.game.Snapshot(),
	}
}

// AddObserver registers fn for every broadcast line. fn runs on the actor
// goroutine and must not block. The returned func unregisters it.
func (t *Table) AddObserver(fn func(line string)) func() {
	t.obsMu.Lock()
	t.nextObsID++
	id := t.nextObsID
	t.observers[id] = fn
	t.obsMu.Unlock()
	return func() {
		t.obsMu.Lock()
		delete(t.observers, id)
		t.obsMu.Unlock()
	}
}

func (t *Table) notifyObservers(line string) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, fn := range t.observers {
		fn(line)
	}
}

// Stop ends the actor and closes every player connection.
func (t *Table) Stop() {
	t.mu.Lock()
	t.stopLocked()
	t.mu.Unlock()
	t.registry.CloseAll()
}

func (t *Table) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Table) stopLocked() {
	t.closed = true
	t.nextRoundAt = time.Time{}
	t.stopOnce.Do(func() {
		close(t.done)
	})
}
