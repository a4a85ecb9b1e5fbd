package blackjack

import "blackjack-lite/card"

type Outcome byte

const (
	OutcomeWin           Outcome = 1
	OutcomeWinDealerBust Outcome = 2
	OutcomeLose          Outcome = 3
	OutcomeLoseBust      Outcome = 4
	OutcomePush          Outcome = 5
)

var OutcomeDictionary = map[Outcome]string{
	OutcomeWin:           "WINS",
	OutcomeWinDealerBust: "WINS (Dealer Bust)",
	OutcomeLose:          "LOSES",
	OutcomeLoseBust:      "LOSES (Bust)",
	OutcomePush:          "PUSH (Tie)",
}

func (o Outcome) String() string {
	if s, ok := OutcomeDictionary[o]; ok {
		return s
	}
	return "UNKNOWN"
}

func (o Outcome) Won() bool { return o == OutcomeWin || o == OutcomeWinDealerBust }

// Resolve compares one player against the dealer. A player bust loses even
// when the dealer busts too.
func Resolve(playerScore, dealerScore int) Outcome {
	switch {
	case playerScore > BlackjackScore:
		return OutcomeLoseBust
	case dealerScore > BlackjackScore:
		return OutcomeWinDealerBust
	case playerScore > dealerScore:
		return OutcomeWin
	case playerScore < dealerScore:
		return OutcomeLose
	default:
		return OutcomePush
	}
}

type PlayerResult struct {
	ID      uint64
	Name    string
	Cards   []card.Card
	Score   int
	Outcome Outcome
}

// RoundResult is produced once per round, whether it resolved normally or
// was cut short.
type RoundResult struct {
	Round        uint32
	DealerCards  []card.Card
	DealerScore  int
	DealerBusted bool

	PlayerResults []PlayerResult

	// Aborted is set when the round ended without outcomes (deck ran out,
	// every player left). Reason carries the message broadcast to the table.
	Aborted bool
	Reason  string
}

func (g *Game) settleRoundLocked() *RoundResult {
	dealerScore := g.dealer.Score()
	res := &RoundResult{
		Round:         g.round.Number,
		DealerCards:   g.dealer.Hand(),
		DealerScore:   dealerScore,
		DealerBusted:  dealerScore > BlackjackScore,
		PlayerResults: make([]PlayerResult, 0, len(g.players)),
	}
	for _, p := range g.players {
		score := p.Score()
		res.PlayerResults = append(res.PlayerResults, PlayerResult{
			ID:      p.ID,
			Name:    p.Name,
			Cards:   p.Hand(),
			Score:   score,
			Outcome: Resolve(score, dealerScore),
		})
	}
	return res
}
