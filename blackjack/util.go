package blackjack

import "blackjack-lite/card"

func cardsOf(cs ...card.Card) []card.Card {
	return cs
}
