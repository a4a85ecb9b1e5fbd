package blackjack

import (
	"fmt"

	"blackjack-lite/card"
)

// Score sums card values with every ace at 11, then takes 10 off per ace
// while the total is over 21. It is the only scoring rule: players and the
// dealer both go through it.
func Score(cards []card.Card) int {
	total := 0
	aces := 0
	for _, c := range cards {
		total += c.Value()
		if c.IsAce() {
			aces++
		}
	}
	for total > BlackjackScore && aces > 0 {
		total -= 10
		aces--
	}
	return total
}

func Busted(cards []card.Card) bool {
	return Score(cards) > BlackjackScore
}

// formatHand renders "c1 c2 ... (Score: N)".
func formatHand(cards []card.Card) string {
	return fmt.Sprintf("%s (Score: %d)", card.CardList(cards).String(), Score(cards))
}
