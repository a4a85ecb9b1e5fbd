package blackjack

import (
	"math/rand"

	"blackjack-lite/card"
)

// Deck is a single-pass shoe: draws advance a cursor that never rewinds.
// A fresh order always means a fresh Deck.
type Deck struct {
	cards  card.CardList
	cursor int
}

// NewDeck builds the 52-card set in construction order and shuffles it once.
func NewDeck(rng *rand.Rand) *Deck {
	d := &Deck{}
	d.cards.Init(card.Standard52())
	d.cards.Shuffle(rng)
	return d
}

// newDeckFromCards keeps the given draw order as-is.
func newDeckFromCards(cards []card.Card) *Deck {
	d := &Deck{}
	d.cards.Init(cards)
	return d
}

// Draw returns the next undrawn card.
func (d *Deck) Draw() (card.Card, error) {
	if d.cursor >= d.cards.Count() {
		return card.CardInvalid, ErrDeckExhausted
	}
	c := d.cards[d.cursor]
	d.cursor++
	return c, nil
}

func (d *Deck) Remaining() int { return d.cards.Count() - d.cursor }

func (d *Deck) Size() int { return d.cards.Count() }

// drawn returns the cards already dealt, in draw order.
func (d *Deck) drawn() []card.Card {
	return append([]card.Card(nil), d.cards[:d.cursor]...)
}
