package card

import (
	"fmt"
	"strings"
)

// Card 牌枚举
//
// 编码规则:
// - 高4位: 花色 (0:Spade, 1:Heart, 2:Diamond, 3:Club)
// - 低4位: 点数 (2..10, 11:J, 12:Q, 13:K, 14:A)
type Card byte

// New builds a card from its suit and rank.
func New(s Suit, r Rank) Card {
	return Card(byte(s)<<4 | byte(r))
}

// String renders the wire token "<rank>-<suit>", e.g. "A-Spade", "10-Club".
func (c Card) String() string {
	if !c.Valid() {
		return "Invalid"
	}
	return c.Rank().String() + "-" + c.Suit().String()
}

// Rank 获取点数
func (c Card) Rank() Rank {
	return Rank(c & 0x0F)
}

// Suit 花色
func (c Card) Suit() Suit {
	return Suit(c >> 4)
}

func (c Card) Valid() bool {
	return c.Suit().valid() && c.Rank().valid()
}

func (c Card) IsAce() bool {
	return c.Rank() == Ace
}

// Value returns the blackjack value: numerals at face value, J/Q/K 10 and A 11
// (soft; scoring may count it as 1).
func (c Card) Value() int {
	r := c.Rank()
	switch {
	case r == Ace:
		return 11
	case r >= Jack:
		return 10
	case r.valid():
		return int(r)
	}
	return 0
}

// Parse converts a wire token such as "A-Spade" or "10-Club" back into a Card.
func Parse(token string) (Card, error) {
	rankStr, suitStr, ok := strings.Cut(strings.TrimSpace(token), "-")
	if !ok {
		return CardInvalid, fmt.Errorf("invalid card token: %q", token)
	}

	var suit Suit
	switch strings.ToLower(suitStr) {
	case "spade":
		suit = Spade
	case "heart":
		suit = Heart
	case "diamond":
		suit = Diamond
	case "club":
		suit = Club
	default:
		return CardInvalid, fmt.Errorf("invalid suit: %s", suitStr)
	}

	for _, r := range Ranks {
		if strings.EqualFold(r.String(), rankStr) {
			return New(suit, r), nil
		}
	}
	return CardInvalid, fmt.Errorf("invalid rank: %s", rankStr)
}

// Standard52 returns the 52-card set in suit/rank construction order.
func Standard52() []Card {
	cards := make([]Card, 0, len(Suits)*len(Ranks))
	for _, s := range Suits {
		for _, r := range Ranks {
			cards = append(cards, New(s, r))
		}
	}
	return cards
}
