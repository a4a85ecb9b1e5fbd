package blackjack

import (
	"fmt"

	"blackjack-lite/card"
)

// maxSeats keeps the opening deal (two cards per player plus two for the
// dealer) inside a single 52-card deck.
const maxSeats = 25

type Config struct {
	// Table
	MaxPlayers int

	// EnforceTurnOrder rejects HIT/STAND from anyone but the player holding
	// the turn. Off by default: actions are applied to whoever sent them.
	EnforceTurnOrder bool

	// RNG seed (0 => time-based)
	Seed int64

	// DeckOverride replaces the shuffled deck with a fixed draw order.
	DeckOverride []card.Card
}

func (c Config) validate() error {
	if c.MaxPlayers <= 0 {
		return fmt.Errorf("MaxPlayers must be > 0")
	}
	if c.MaxPlayers > maxSeats {
		return fmt.Errorf("MaxPlayers must be <= %d", maxSeats)
	}
	for i, cc := range c.DeckOverride {
		if !cc.Valid() {
			return fmt.Errorf("DeckOverride[%d] is not a valid card", i)
		}
	}
	return nil
}
