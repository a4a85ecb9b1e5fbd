package card

import "strconv"

// Rank 点数 2..10, J=11, Q=12, K=13, A=14
type Rank byte

const (
	Rank2 Rank = iota + 2
	Rank3
	Rank4
	Rank5
	Rank6
	Rank7
	Rank8
	Rank9
	Rank10
	Jack
	Queen
	King
	Ace
)

// Ranks lists the ranks in deck construction order.
var Ranks = []Rank{Rank2, Rank3, Rank4, Rank5, Rank6, Rank7, Rank8, Rank9, Rank10, Jack, Queen, King, Ace}

func (r Rank) String() string {
	switch r {
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	}
	if r >= Rank2 && r <= Rank10 {
		return strconv.Itoa(int(r))
	}
	return "?"
}

func (r Rank) valid() bool { return r >= Rank2 && r <= Ace }

const CardInvalid Card = 0

// Spade 黑桃
const (
	CardSpade2 Card = iota + 0x02
	CardSpade3
	CardSpade4
	CardSpade5
	CardSpade6
	CardSpade7
	CardSpade8
	CardSpade9
	CardSpadeT
	CardSpadeJ
	CardSpadeQ
	CardSpadeK
	CardSpadeA
)

// Heart 红心
const (
	CardHeart2 Card = iota + 0x12
	CardHeart3
	CardHeart4
	CardHeart5
	CardHeart6
	CardHeart7
	CardHeart8
	CardHeart9
	CardHeartT
	CardHeartJ
	CardHeartQ
	CardHeartK
	CardHeartA
)

// Diamond 方块
const (
	CardDiamond2 Card = iota + 0x22
	CardDiamond3
	CardDiamond4
	CardDiamond5
	CardDiamond6
	CardDiamond7
	CardDiamond8
	CardDiamond9
	CardDiamondT
	CardDiamondJ
	CardDiamondQ
	CardDiamondK
	CardDiamondA
)

// Club 梅花
const (
	CardClub2 Card = iota + 0x32
	CardClub3
	CardClub4
	CardClub5
	CardClub6
	CardClub7
	CardClub8
	CardClub9
	CardClubT
	CardClubJ
	CardClubQ
	CardClubK
	CardClubA
)
