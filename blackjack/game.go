package blackjack

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"blackjack-lite/card"
)

type Game struct {
	cfg Config
	rng *rand.Rand

	mu sync.Mutex

	// roster in join order
	players []*Player
	byID    map[uint64]*Player

	// round state
	started bool
	rounds  uint32
	round   *Round
	deck    *Deck
	dealer  Dealer

	lastResult *RoundResult
}

func NewGame(cfg Config) (*Game, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	g := &Game{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(seed)),
		players: make([]*Player, 0, cfg.MaxPlayers),
		byID:    make(map[uint64]*Player, cfg.MaxPlayers),
	}
	g.dealer.Reset()
	return g, nil
}

// AddPlayer seats a player at the end of the join order. Joining closes
// once the roster is full or the first round has started.
func (g *Game) AddPlayer(id uint64, name string) (Update, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var u Update
	if id == 0 {
		return u, fmt.Errorf("invalid player id 0")
	}
	if g.started {
		return u, ErrRoundStarted
	}
	if len(g.players) >= g.cfg.MaxPlayers {
		return u, ErrSessionFull
	}
	if g.byID[id] != nil {
		return u, fmt.Errorf("player %d already joined", id)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("player_%d", id)
	}

	p := &Player{ID: id, Name: name}
	p.ResetForNewRound()
	g.players = append(g.players, p)
	g.byID[id] = p

	u.broadcast(Event{Kind: EventJoined, Name: name})
	u.send(id, Event{Kind: EventWaiting})
	return u, nil
}

// RemovePlayer drops a player from the roster. During player turns the
// turn index is shifted so the same next player keeps or receives the turn.
func (g *Game) RemovePlayer(id uint64) (Update, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var u Update
	idx := g.indexLocked(id)
	if idx < 0 {
		return u, ErrUnknownPlayer
	}
	p := g.players[idx]
	g.players = append(g.players[:idx], g.players[idx+1:]...)
	delete(g.byID, id)

	u.broadcast(Event{Kind: EventLeft, Name: p.Name})

	if g.round == nil || g.round.State != StatePlayerTurns {
		return u, nil
	}
	if len(g.players) == 0 {
		g.abortRoundLocked(&u, "all players left", false)
		return u, nil
	}
	switch {
	case idx < g.round.TurnIndex:
		g.round.TurnIndex--
	case idx == g.round.TurnIndex:
		// the next player slid into the current index
		g.promptOrDealerLocked(&u)
	}
	return u, nil
}

// Ready reports that the roster is full and the first round can start.
func (g *Game) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.started && len(g.players) == g.cfg.MaxPlayers
}

// CanJoin reports whether AddPlayer would currently accept a new player.
func (g *Game) CanJoin() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.started && len(g.players) < g.cfg.MaxPlayers
}

// StartRound deals the first round of the session on a fresh deck.
func (g *Game) StartRound() (Update, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var u Update
	if g.started {
		return u, ErrRoundStarted
	}
	if len(g.players) != g.cfg.MaxPlayers {
		return u, fmt.Errorf("%w: %d/%d", ErrNotEnoughPlayers, len(g.players), g.cfg.MaxPlayers)
	}
	g.started = true
	g.deck = g.newDeckLocked()

	u.broadcast(Event{Kind: EventGameStart})
	g.dealLocked(&u)
	return u, nil
}

// StartNewRound deals another round from what is left of the same deck.
// It refuses when the deck could run dry during the opening deal.
func (g *Game) StartNewRound() (Update, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var u Update
	if !g.started {
		return u, ErrInvalidState("game not started")
	}
	if g.round != nil && g.round.State != StateResolved {
		return u, ErrRoundInProgress
	}
	if len(g.players) == 0 {
		return u, ErrNotEnoughPlayers
	}
	need := len(g.players)*2 + 2
	if g.deck.Remaining() <= need {
		u.broadcast(Event{Kind: EventDeckExhausted})
		return u, fmt.Errorf("%w: %d left, need more than %d", ErrDeckLow, g.deck.Remaining(), need)
	}

	for _, p := range g.players {
		p.ResetForNewRound()
		u.send(p.ID, Event{Kind: EventClearHand})
	}
	g.dealLocked(&u)
	return u, nil
}

// Act applies HIT or STAND for a player.
func (g *Game) Act(playerID uint64, action ActionType) (Update, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var u Update
	if g.round == nil || g.round.State != StatePlayerTurns {
		return u, ErrRoundOver
	}
	p := g.byID[playerID]
	if p == nil {
		return u, ErrUnknownPlayer
	}
	if g.cfg.EnforceTurnOrder {
		cur := g.currentLocked()
		if cur == nil || cur.ID != playerID {
			return u, ErrOutOfTurn
		}
	}

	switch action {
	case PlayerActionTypeHit:
		c, err := g.deck.Draw()
		if err != nil {
			g.abortRoundLocked(&u, err.Error(), true)
			return u, nil
		}
		p.AddHandCard(c)
		u.send(p.ID, Event{Kind: EventNewCard, Cards: cardsOf(c)})
		u.send(p.ID, Event{Kind: EventHandSummary, Cards: p.Hand()})
		if p.Busted() {
			u.broadcast(Event{Kind: EventBusted, Name: p.Name})
			g.advanceTurnLocked(&u)
		} else {
			u.send(p.ID, Event{Kind: EventYourTurn})
		}
	case PlayerActionTypeStand:
		u.broadcast(Event{Kind: EventStands, Name: p.Name})
		g.advanceTurnLocked(&u)
	default:
		return u, fmt.Errorf("%w: %s", ErrMalformedCommand, action)
	}
	return u, nil
}

// Round returns a copy of the current round, if any.
func (g *Game) Round() (Round, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.round == nil {
		return Round{}, false
	}
	return *g.round, true
}

func (g *Game) LastResult() *RoundResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastResult
}

func (g *Game) newDeckLocked() *Deck {
	if len(g.cfg.DeckOverride) > 0 {
		return newDeckFromCards(g.cfg.DeckOverride)
	}
	return NewDeck(g.rng)
}

// dealLocked opens a round: two cards to each player in join order, two to
// the dealer with only the first shown, then the first player's prompt.
func (g *Game) dealLocked(u *Update) {
	g.rounds++
	g.round = &Round{Number: g.rounds, State: StateDealing}
	g.lastResult = nil
	g.dealer.Reset()

	for _, p := range g.players {
		c1, err := g.deck.Draw()
		if err != nil {
			g.abortRoundLocked(u, err.Error(), true)
			return
		}
		c2, err := g.deck.Draw()
		if err != nil {
			g.abortRoundLocked(u, err.Error(), true)
			return
		}
		p.AddHandCard(c1, c2)
		u.send(p.ID, Event{Kind: EventInitialCards, Cards: cardsOf(c1, c2)})
		u.send(p.ID, Event{Kind: EventHandSummary, Cards: p.Hand()})
	}

	for i := 0; i < 2; i++ {
		c, err := g.deck.Draw()
		if err != nil {
			g.abortRoundLocked(u, err.Error(), true)
			return
		}
		g.dealer.Deal(c)
	}
	u.broadcast(Event{Kind: EventDealerFirstCard, Cards: cardsOf(g.dealer.Upcard())})

	g.round.State = StatePlayerTurns
	g.round.TurnIndex = 0
	g.promptOrDealerLocked(u)
}

func (g *Game) advanceTurnLocked(u *Update) {
	g.round.TurnIndex++
	g.promptOrDealerLocked(u)
}

// promptOrDealerLocked prompts the player at the turn index, or hands over
// to the dealer once every player has had a turn.
func (g *Game) promptOrDealerLocked(u *Update) {
	if cur := g.currentLocked(); cur != nil {
		u.send(cur.ID, Event{Kind: EventYourTurn})
		return
	}
	g.dealerTurnLocked(u)
}

func (g *Game) dealerTurnLocked(u *Update) {
	g.round.State = StateDealerTurn
	g.dealer.Reveal()
	u.broadcast(Event{Kind: EventDealerTurn})
	u.broadcast(Event{Kind: EventDealerHand, Cards: g.dealer.Hand()})

	err := g.dealer.Play(g.deck.Draw, func(c card.Card) {
		u.broadcast(Event{Kind: EventDealerHit, Cards: cardsOf(c)})
		u.broadcast(Event{Kind: EventDealerHand, Cards: g.dealer.Hand()})
	})
	if err != nil {
		g.abortRoundLocked(u, err.Error(), true)
		return
	}
	if g.dealer.Busted() {
		u.broadcast(Event{Kind: EventDealerBusted})
	}
	g.resolveRoundLocked(u)
}

func (g *Game) resolveRoundLocked(u *Update) {
	res := g.settleRoundLocked()
	for _, pr := range res.PlayerResults {
		u.broadcast(Event{Kind: EventOutcome, Name: pr.Name, Outcome: pr.Outcome})
	}
	g.round.State = StateResolved
	g.lastResult = res
	u.RoundEnd = res
}

// abortRoundLocked ends the round without outcomes. The session stays
// usable for another round attempt.
func (g *Game) abortRoundLocked(u *Update, reason string, announce bool) {
	if announce {
		u.broadcast(Event{Kind: EventGameOver, Text: reason})
	}
	res := &RoundResult{
		Round:       g.round.Number,
		DealerCards: g.dealer.Hand(),
		DealerScore: g.dealer.Score(),
		Aborted:     true,
		Reason:      reason,
	}
	res.DealerBusted = res.DealerScore > BlackjackScore
	g.round.State = StateResolved
	g.lastResult = res
	u.RoundEnd = res
}

func (g *Game) currentLocked() *Player {
	if g.round == nil || g.round.TurnIndex < 0 || g.round.TurnIndex >= len(g.players) {
		return nil
	}
	return g.players[g.round.TurnIndex]
}

func (g *Game) indexLocked(id uint64) int {
	for i, p := range g.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}
