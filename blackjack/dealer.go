package blackjack

import "blackjack-lite/card"

// DealerPhase tracks what the table is allowed to see of the dealer hand.
type DealerPhase byte

const (
	DealerHidden   DealerPhase = 0 // only the first card is public
	DealerRevealed DealerPhase = 1
	DealerDrawing  DealerPhase = 2
	DealerDone     DealerPhase = 3
)

var DealerPhaseDictionary = map[DealerPhase]string{
	DealerHidden:   "hidden",
	DealerRevealed: "revealed",
	DealerDrawing:  "drawing",
	DealerDone:     "done",
}

func (p DealerPhase) String() string {
	if name, ok := DealerPhaseDictionary[p]; ok {
		return name
	}
	return "unknown"
}

type Dealer struct {
	hand  card.CardList
	phase DealerPhase
}

func (d *Dealer) Reset() {
	d.hand = make([]card.Card, 0, 4)
	d.phase = DealerHidden
}

// Deal adds an opening card without changing visibility.
func (d *Dealer) Deal(c card.Card) { d.hand.Add(c) }

func (d *Dealer) Reveal() { d.phase = DealerRevealed }

func (d *Dealer) Phase() DealerPhase { return d.phase }

func (d *Dealer) Hand() []card.Card {
	return append([]card.Card(nil), d.hand...)
}

// Upcard is the first dealt card, the only one shown while hidden.
func (d *Dealer) Upcard() card.Card {
	if len(d.hand) == 0 {
		return card.CardInvalid
	}
	return d.hand[0]
}

// Visible returns what the players may see right now.
func (d *Dealer) Visible() []card.Card {
	if d.phase == DealerHidden {
		if len(d.hand) == 0 {
			return nil
		}
		return []card.Card{d.hand[0]}
	}
	return d.Hand()
}

func (d *Dealer) Score() int   { return Score(d.hand) }
func (d *Dealer) Busted() bool { return Busted(d.hand) }

// ShouldHit is the fixed house rule: draw below 17, stand on 17 or more.
func (d *Dealer) ShouldHit() bool {
	return d.Score() < DealerStandScore
}

// Play draws until the stand threshold is reached, calling onHit after each
// card lands. A draw error stops play at once and is returned; the phase is
// left at Drawing so the hand is never mistaken for a stand.
func (d *Dealer) Play(draw func() (card.Card, error), onHit func(card.Card)) error {
	if d.phase == DealerHidden {
		d.Reveal()
	}
	for d.ShouldHit() {
		d.phase = DealerDrawing
		c, err := draw()
		if err != nil {
			return err
		}
		d.hand.Add(c)
		if onHit != nil {
			onHit(c)
		}
	}
	d.phase = DealerDone
	return nil
}
