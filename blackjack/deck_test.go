package blackjack

import (
	"errors"
	"math/rand"
	"testing"

	"blackjack-lite/card"
)

func TestDeck_DrawsEveryCardOnce(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		d := NewDeck(rand.New(rand.NewSource(seed)))
		seen := make(map[card.Card]bool, 52)
		for i := 0; i < 52; i++ {
			if got := d.Remaining(); got != 52-i {
				t.Fatalf("seed=%d remaining=%d want %d", seed, got, 52-i)
			}
			c, err := d.Draw()
			if err != nil {
				t.Fatalf("seed=%d draw %d err: %v", seed, i, err)
			}
			if seen[c] {
				t.Fatalf("seed=%d duplicate card %s", seed, c)
			}
			seen[c] = true
		}
		if len(seen) != 52 {
			t.Fatalf("seed=%d saw %d distinct cards", seed, len(seen))
		}
		if _, err := d.Draw(); !errors.Is(err, ErrDeckExhausted) {
			t.Fatalf("seed=%d expected ErrDeckExhausted, got %v", seed, err)
		}
		if d.Remaining() != 0 {
			t.Fatalf("seed=%d remaining after exhaustion = %d", seed, d.Remaining())
		}
	}
}

func TestDeck_SameSeedSameOrder(t *testing.T) {
	a := NewDeck(rand.New(rand.NewSource(42)))
	b := NewDeck(rand.New(rand.NewSource(42)))
	for i := 0; i < 52; i++ {
		ca, _ := a.Draw()
		cb, _ := b.Draw()
		if ca != cb {
			t.Fatalf("draw %d differs: %s vs %s", i, ca, cb)
		}
	}
}

func TestDeck_DrawnTracksCursor(t *testing.T) {
	d := newDeckFromCards([]card.Card{card.CardSpadeA, card.CardHeartK, card.CardClub2})
	if _, err := d.Draw(); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Draw(); err != nil {
		t.Fatal(err)
	}
	drawn := d.drawn()
	if len(drawn) != 2 || drawn[0] != card.CardSpadeA || drawn[1] != card.CardHeartK {
		t.Fatalf("unexpected drawn cards: %v", drawn)
	}
	if d.Remaining() != 1 || d.Size() != 3 {
		t.Fatalf("remaining=%d size=%d", d.Remaining(), d.Size())
	}
}
