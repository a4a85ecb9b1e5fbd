package card

type Suit byte

const (
	Spade Suit = iota
	Heart
	Diamond
	Club
)

// Suits lists the suits in deck construction order.
var Suits = []Suit{Spade, Heart, Diamond, Club}

func (s Suit) String() string {
	switch s {
	case Spade:
		return "Spade"
	case Heart:
		return "Heart"
	case Diamond:
		return "Diamond"
	case Club:
		return "Club"
	}
	return "?"
}

func (s Suit) valid() bool { return s <= Club }
