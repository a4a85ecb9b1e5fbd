package blackjack

import "blackjack-lite/card"

// PlayerSnapshot hides the hand while the round is live; only the owner
// sees it on the line protocol. CardCount is always set.
type PlayerSnapshot struct {
	ID        uint64      `json:"id"`
	Name      string      `json:"name"`
	CardCount int         `json:"card_count"`
	Cards     []card.Card `json:"-"`
	Tokens    []string    `json:"cards"`
	Score     int         `json:"score"`
	Busted    bool        `json:"busted"`
}

type Snapshot struct {
	MaxPlayers int        `json:"max_players"`
	Started    bool       `json:"started"`
	Round      uint32     `json:"round"`
	State      RoundState `json:"-"`
	StateName  string     `json:"state"`
	TurnIndex  int        `json:"turn_index"`
	// ActionPlayer is the ID holding the turn, 0 when nobody does.
	ActionPlayer uint64 `json:"action_player"`

	DeckSize      int `json:"deck_size"`
	DeckRemaining int `json:"deck_remaining"`

	// Dealer cards follow the visibility rule: only the upcard until the
	// dealer turn begins.
	DealerPhase  string      `json:"dealer_phase"`
	DealerCards  []card.Card `json:"-"`
	DealerTokens []string    `json:"dealer_cards"`
	DealerScore  int         `json:"dealer_score"`

	Players []PlayerSnapshot `json:"players"`
}

func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{
		MaxPlayers:  g.cfg.MaxPlayers,
		Started:     g.started,
		State:       StateAwaitingPlayers,
		DealerPhase: g.dealer.Phase().String(),
	}
	if g.deck != nil {
		s.DeckSize = g.deck.Size()
		s.DeckRemaining = g.deck.Remaining()
	}
	if g.round != nil {
		s.Round = g.round.Number
		s.State = g.round.State
		s.TurnIndex = g.round.TurnIndex
		if g.round.State == StatePlayerTurns {
			if cur := g.currentLocked(); cur != nil {
				s.ActionPlayer = cur.ID
			}
		}
		s.DealerCards = g.dealer.Visible()
		s.DealerTokens = card.CardList(s.DealerCards).Tokens()
		s.DealerScore = Score(s.DealerCards)
	}
	s.StateName = s.State.String()

	reveal := g.round == nil || g.round.State == StateResolved
	for _, p := range g.players {
		hand := p.Hand()
		ps := PlayerSnapshot{
			ID:        p.ID,
			Name:      p.Name,
			CardCount: len(hand),
			Busted:    Busted(hand),
		}
		if reveal {
			ps.Cards = hand
			ps.Tokens = card.CardList(hand).Tokens()
			ps.Score = Score(hand)
		}
		s.Players = append(s.Players, ps)
	}
	return s
}
