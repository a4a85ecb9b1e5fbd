package blackjack

import "blackjack-lite/card"

type Player struct {
	ID   uint64
	Name string

	handCards card.CardList
}

func (p *Player) Hand() []card.Card {
	return append([]card.Card(nil), p.handCards...)
}

func (p *Player) Score() int   { return Score(p.handCards) }
func (p *Player) Busted() bool { return Busted(p.handCards) }

func (p *Player) ResetForNewRound() {
	p.handCards = make([]card.Card, 0, 2)
}

func (p *Player) AddHandCard(cards ...card.Card) {
	p.handCards.Add(cards...)
}
