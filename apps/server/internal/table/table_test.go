package table

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"blackjack-lite/apps/server/internal/ledger"
	"blackjack-lite/apps/server/internal/session"
	"blackjack-lite/blackjack"
	"blackjack-lite/card"
)

const waitTimeout = 2 * time.Second

type testClient struct {
	id    uint64
	conn  net.Conn
	lines chan string
}

func deckWithPrefix(prefix ...card.Card) []card.Card {
	out := append([]card.Card(nil), prefix...)
	used := card.CardList(prefix)
	for _, c := range card.Standard52() {
		if !used.Contains(c) {
			out = append(out, c)
		}
	}
	return out
}

// twoPlayerDeck: alice 19, bob 17, dealer 18 and stands.
func twoPlayerDeck() []card.Card {
	return deckWithPrefix(
		card.CardSpadeT, card.CardSpade9,
		card.CardHeartT, card.CardHeart7,
		card.CardClubT, card.CardClub8,
	)
}

func newTestTable(t *testing.T, cfg Config, ledgerService ledger.Service) *Table {
	t.Helper()
	tbl, err := New("test", cfg, ledgerService)
	if err != nil {
		t.Fatalf("New table err: %v", err)
	}
	t.Cleanup(tbl.Stop)
	return tbl
}

func join(t *testing.T, tbl *Table, name string) *testClient {
	t.Helper()
	server, client := net.Pipe()
	c := session.NewConn(tbl.NextPlayerID(), name, 0, server, nil, session.Options{SendTimeout: time.Second})
	tc := &testClient{id: c.ID, conn: client, lines: make(chan string, 256)}
	go func() {
		defer close(tc.lines)
		sc := bufio.NewScanner(client)
		for sc.Scan() {
			tc.lines <- sc.Text()
		}
	}()
	if err := tbl.Join(c); err != nil {
		_ = client.Close()
		t.Fatalf("Join(%s) err: %v", name, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return tc
}

func (c *testClient) send(t *testing.T, line string) {
	t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(waitTimeout))
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("client %d write %q: %v", c.id, line, err)
	}
}

// expect reads until want arrives, failing on timeout or disconnect.
func (c *testClient) expect(t *testing.T, want string) []string {
	t.Helper()
	var seen []string
	deadline := time.After(waitTimeout)
	for {
		select {
		case line, ok := <-c.lines:
			if !ok {
				t.Fatalf("client %d disconnected waiting for %q, saw %q", c.id, want, seen)
			}
			seen = append(seen, line)
			if line == want {
				return seen
			}
		case <-deadline:
			t.Fatalf("client %d timed out waiting for %q, saw %q", c.id, want, seen)
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestTable_FullRoundOverConnections(t *testing.T) {
	store, err := ledger.NewSQLiteService(":memory:")
	if err != nil {
		t.Fatalf("ledger err: %v", err)
	}
	defer store.Close()

	tbl := newTestTable(t, Config{Game: blackjack.Config{MaxPlayers: 2, DeckOverride: twoPlayerDeck()}}, store)

	var mu sync.Mutex
	var observed []string
	tbl.AddObserver(func(line string) {
		mu.Lock()
		observed = append(observed, line)
		mu.Unlock()
	})

	alice := join(t, tbl, "alice")
	alice.expect(t, "alice JOINED")
	alice.expect(t, "WAITING_FOR_PLAYERS")
	bob := join(t, tbl, "bob")
	alice.expect(t, "bob JOINED")
	bob.expect(t, "WAITING_FOR_PLAYERS")

	if err := tbl.StartRound(); err != nil {
		t.Fatalf("StartRound err: %v", err)
	}
	if err := tbl.StartRound(); !errors.Is(err, blackjack.ErrRoundStarted) {
		t.Fatalf("second StartRound: expected ErrRoundStarted, got %v", err)
	}

	alice.expect(t, "GAME_START")
	alice.expect(t, "INITIAL_CARDS 10-Spade 9-Spade")
	alice.expect(t, "Your card: 10-Spade 9-Spade (Score: 19)")
	alice.expect(t, "DEALER_FIRST_CARD 10-Club")
	alice.expect(t, "YOUR_TURN")
	bob.expect(t, "INITIAL_CARDS 10-Heart 7-Heart")
	bob.expect(t, "DEALER_FIRST_CARD 10-Club")

	alice.send(t, "STAND")
	bob.expect(t, "alice STANDS")
	bob.expect(t, "YOUR_TURN")
	bob.send(t, "STAND")

	alice.expect(t, "DEALER_TURN")
	alice.expect(t, "DEALER_HAND 10-Club 8-Club (Score: 18)")
	alice.expect(t, "alice WINS")
	bob.expect(t, "bob LOSES")

	waitFor(t, "ledger record", func() bool {
		items, err := store.ListRecent(context.Background(), 5)
		return err == nil && len(items) == 1
	})
	items, _ := store.ListRecent(context.Background(), 5)
	rec := items[0]
	if rec.Round != 1 || rec.DealerScore != 18 || len(rec.Players) != 2 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.RoundID == "" || rec.RoundID != tbl.View().RoundID {
		t.Fatalf("record round id %q does not match table view %q", rec.RoundID, tbl.View().RoundID)
	}
	if len(rec.Tape) == 0 || rec.Tape[0] != "GAME_START" {
		t.Fatalf("tape should start at GAME_START, got %q", rec.Tape)
	}
	for _, line := range rec.Tape {
		if strings.HasPrefix(line, "INITIAL_CARDS") || line == "YOUR_TURN" {
			t.Fatalf("private line %q leaked into the broadcast tape", line)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(observed) == 0 || observed[0] != "alice JOINED" {
		t.Fatalf("observer missed broadcasts: %q", observed)
	}
}

func TestTable_ChatAndMalformedLines(t *testing.T) {
	tbl := newTestTable(t, Config{Game: blackjack.Config{MaxPlayers: 2}}, nil)
	alice := join(t, tbl, "alice")
	bob := join(t, tbl, "bob")

	alice.send(t, "")
	alice.send(t, "good luck")
	bob.expect(t, "alice says: good luck")
	alice.expect(t, "alice says: good luck")

	// actions before the round are ignored, not echoed
	bob.send(t, "HIT")
	bob.send(t, "ping")
	seen := alice.expect(t, "bob says: ping")
	for _, line := range seen {
		if strings.Contains(line, "HIT") {
			t.Fatalf("HIT before the round should not reach the table: %q", seen)
		}
	}
}

func TestTable_RejectsJoinWhenFullOrStarted(t *testing.T) {
	tbl := newTestTable(t, Config{Game: blackjack.Config{MaxPlayers: 1}}, nil)
	if !tbl.CanJoin() {
		t.Fatalf("empty table should accept joins")
	}
	join(t, tbl, "solo")
	if tbl.CanJoin() {
		t.Fatalf("full table should refuse joins")
	}

	server, client := net.Pipe()
	defer client.Close()
	c := session.NewConn(tbl.NextPlayerID(), "late", 0, server, nil, session.Options{})
	if err := tbl.Join(c); !errors.Is(err, blackjack.ErrSessionFull) {
		t.Fatalf("expected ErrSessionFull, got %v", err)
	}
	_ = c.Close()
}

func TestTable_LeaveBroadcastsAndHandsOverTurn(t *testing.T) {
	tbl := newTestTable(t, Config{Game: blackjack.Config{MaxPlayers: 2, DeckOverride: twoPlayerDeck()}}, nil)
	alice := join(t, tbl, "alice")
	bob := join(t, tbl, "bob")
	if err := tbl.StartRound(); err != nil {
		t.Fatalf("StartRound err: %v", err)
	}
	alice.expect(t, "YOUR_TURN")

	_ = alice.conn.Close()
	bob.expect(t, "alice LEFT")
	bob.expect(t, "YOUR_TURN")

	waitFor(t, "roster shrink", func() bool { return tbl.View().Connected == 1 })
	if snap := tbl.Snapshot(); len(snap.Players) != 1 || snap.Players[0].Name != "bob" {
		t.Fatalf("unexpected roster after leave: %+v", snap.Players)
	}
}

func TestTable_AutoStartAndAutoNextRound(t *testing.T) {
	cfg := Config{
		Game:          blackjack.Config{MaxPlayers: 1, Seed: 42},
		AutoStart:     true,
		AutoNextRound: 50 * time.Millisecond,
	}
	tbl := newTestTable(t, cfg, nil)
	solo := join(t, tbl, "solo")
	solo.expect(t, "GAME_START")
	solo.expect(t, "YOUR_TURN")
	solo.send(t, "STAND")
	solo.expect(t, "DEALER_TURN")

	solo.expect(t, "CLEAR_HAND")
	solo.expect(t, "YOUR_TURN")
	waitFor(t, "second round", func() bool {
		r, ok := tbl.game.Round()
		return ok && r.Number == 2
	})
}

func TestTable_StopRejectsEvents(t *testing.T) {
	tbl := newTestTable(t, Config{Game: blackjack.Config{MaxPlayers: 2}}, nil)
	c := join(t, tbl, "alice")
	tbl.Stop()
	if !tbl.IsClosed() {
		t.Fatalf("expected table closed")
	}
	if err := tbl.StartRound(); !errors.Is(err, ErrTableClosed) {
		t.Fatalf("expected ErrTableClosed, got %v", err)
	}
	if tbl.CanJoin() {
		t.Fatalf("closed table should refuse joins")
	}
	// the player socket is torn down
	waitFor(t, "client disconnect", func() bool {
		select {
		case _, ok := <-c.lines:
			return !ok
		default:
			return false
		}
	})
}

func TestTable_ConcurrentLinesDrawDistinctCards(t *testing.T) {
	const players, hits = 4, 5
	tbl := newTestTable(t, Config{Game: blackjack.Config{MaxPlayers: players, Seed: 11}}, nil)
	var clients []*testClient
	for i := 0; i < players; i++ {
		clients = append(clients, join(t, tbl, "p"+string(rune('a'+i))))
	}
	if err := tbl.StartRound(); err != nil {
		t.Fatalf("StartRound err: %v", err)
	}

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			for i := 0; i < hits; i++ {
				_ = tbl.SubmitEvent(Event{Type: EventLine, PlayerID: id, Line: "HIT"})
			}
			_ = tbl.SubmitEvent(Event{Type: EventLine, PlayerID: id, Line: "STAND"})
		}(c.id)
	}
	wg.Wait()

	snap := tbl.Snapshot()
	if snap.State != blackjack.StateResolved {
		t.Fatalf("round not resolved, state %s", snap.StateName)
	}
	seen := make(map[string]bool)
	held := append([]string(nil), snap.DealerTokens...)
	for _, p := range snap.Players {
		held = append(held, p.Tokens...)
	}
	for _, tok := range held {
		if seen[tok] {
			t.Fatalf("card %s dealt twice: %v", tok, held)
		}
		seen[tok] = true
	}
	if dealt := snap.DeckSize - snap.DeckRemaining; dealt != len(held) {
		t.Fatalf("hands hold %d cards, deck dealt %d", len(held), dealt)
	}
}
