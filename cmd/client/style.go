package main

import (
	"strings"

	"github.com/pterm/pterm"

	"blackjack-lite/card"
	"blackjack-lite/client"
)

// table keeps what the terminal shows between lines.
type table struct {
	hand       []card.Card
	handScore  int
	dealer     []card.Card
	dealerNote string
}

func (t *table) apply(m client.Message) {
	switch {
	case strings.HasPrefix(m.Raw, "INITIAL_CARDS"):
		t.hand = append([]card.Card(nil), m.Cards...)
		t.dealer = nil
		t.dealerNote = ""
	case strings.HasPrefix(m.Raw, "Your card:"):
		t.hand = m.Cards
		t.handScore = m.Score
	case strings.HasPrefix(m.Raw, "DEALER_FIRST_CARD"):
		t.dealer = m.Cards
		t.dealerNote = "one card hidden"
	case strings.HasPrefix(m.Raw, "DEALER_HAND"):
		t.dealer = m.Cards
		t.dealerNote = "score " + pterm.Sprint(m.Score)
	case m.Raw == "CLEAR_HAND":
		t.hand = nil
		t.handScore = 0
	}
}

func cardsString(cs []card.Card) string {
	if len(cs) == 0 {
		return pterm.Gray("-")
	}
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		s := c.String()
		if c.Suit() == card.Heart || c.Suit() == card.Diamond {
			parts = append(parts, pterm.LightRed(s))
		} else {
			parts = append(parts, pterm.LightWhite(s))
		}
	}
	return strings.Join(parts, " ")
}

// printTable renders the player's hand next to the dealer's.
func printTable(name string, t *table) {
	box := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	handInfo := pterm.Sprintfln("%s", cardsString(t.hand))
	if t.handScore > 0 {
		handInfo += pterm.Sprintfln("Score: %s", scoreString(t.handScore))
	}
	dealerInfo := pterm.Sprintfln("%s", cardsString(t.dealer))
	if t.dealerNote != "" {
		dealerInfo += pterm.Sprintfln("%s", pterm.Gray(t.dealerNote))
	}

	pterm.DefaultPanel.WithPanels([][]pterm.Panel{{
		{Data: box.WithTitle(pterm.LightCyan("|" + name + "|")).WithTitleTopCenter().Sprint(handInfo)},
		{Data: box.WithTitle(pterm.LightYellow("|DEALER|")).WithTitleTopCenter().Sprint(dealerInfo)},
	}}).Render()
}

func scoreString(score int) string {
	s := pterm.Sprint(score)
	switch {
	case score > 21:
		return pterm.LightRed(s)
	case score == 21:
		return pterm.LightGreen(s)
	}
	return s
}

// render prints one server line and reports whether the table view changed.
func render(m client.Message) bool {
	switch m.Kind {
	case client.KindYourTurn:
		pterm.Info.Println("Your turn: (h)it or (s)tand")
	case client.KindHand, client.KindDealer:
		if m.Raw == "DEALER BUSTED!" {
			pterm.Success.Println("Dealer busted!")
		}
		return true
	case client.KindOutcome:
		switch {
		case strings.HasPrefix(m.Text, "WINS"):
			pterm.Success.Printfln("%s %s", pterm.LightCyan(m.Name), m.Text)
		case strings.HasPrefix(m.Text, "PUSH"):
			pterm.Warning.Printfln("%s %s", pterm.LightCyan(m.Name), m.Text)
		default:
			pterm.Error.Printfln("%s %s", pterm.LightCyan(m.Name), m.Text)
		}
	case client.KindChat:
		pterm.Printfln("%s: %s", pterm.Cyan(m.Name), m.Text)
	case client.KindGameOver:
		pterm.Error.Printfln("Game over: %s", m.Text)
	default:
		if m.Raw == "CLEAR_HAND" {
			return true
		}
		pterm.Info.Println(m.Raw)
	}
	return false
}
