package client

import (
	"strconv"
	"strings"

	"blackjack-lite/card"
)

type Kind int

const (
	KindInfo Kind = iota
	KindYourTurn
	KindHand
	KindDealer
	KindOutcome
	KindChat
	KindGameOver
)

var outcomeSuffixes = []string{
	" WINS (Dealer Bust)",
	" WINS",
	" LOSES (Bust)",
	" LOSES",
	" PUSH (Tie)",
}

// Message is one server line with the parts a renderer needs.
type Message struct {
	Kind  Kind
	Raw   string
	Cards []card.Card
	// Score is set when the line carries "(Score: N)".
	Score    int
	HasScore bool
	// Name is the player a chat or outcome line is about.
	Name string
	Text string
}

func Classify(line string) Message {
	m := Message{Kind: KindInfo, Raw: line}
	switch {
	case line == "YOUR_TURN":
		m.Kind = KindYourTurn
	case strings.HasPrefix(line, "INITIAL_CARDS "), strings.HasPrefix(line, "NEW_CARD "):
		m.Kind = KindHand
		_, rest, _ := strings.Cut(line, " ")
		m.Cards = parseCards(rest)
	case strings.HasPrefix(line, "Your card: "):
		m.Kind = KindHand
		m.Cards, m.Score, m.HasScore = parseHand(strings.TrimPrefix(line, "Your card: "))
	case strings.HasPrefix(line, "DEALER_HAND "):
		m.Kind = KindDealer
		m.Cards, m.Score, m.HasScore = parseHand(strings.TrimPrefix(line, "DEALER_HAND "))
	case strings.HasPrefix(line, "DEALER_FIRST_CARD "), strings.HasPrefix(line, "DEALER_HIT "):
		m.Kind = KindDealer
		_, rest, _ := strings.Cut(line, " ")
		m.Cards = parseCards(rest)
	case line == "DEALER_TURN", line == "DEALER BUSTED!":
		m.Kind = KindDealer
	case strings.HasPrefix(line, "GAME_OVER"):
		m.Kind = KindGameOver
		m.Text = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(line, "GAME_OVER"), ":"))
	default:
		if name, text, ok := strings.Cut(line, " says: "); ok {
			m.Kind = KindChat
			m.Name, m.Text = name, text
			return m
		}
		for _, suffix := range outcomeSuffixes {
			if name, ok := strings.CutSuffix(line, suffix); ok && name != "" {
				m.Kind = KindOutcome
				m.Name = name
				m.Text = strings.TrimSpace(suffix)
				return m
			}
		}
	}
	return m
}

// parseHand reads "c1 c2 ... (Score: N)".
func parseHand(s string) ([]card.Card, int, bool) {
	cardsPart, scorePart, ok := strings.Cut(s, "(Score:")
	cards := parseCards(cardsPart)
	if !ok {
		return cards, 0, false
	}
	score, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(scorePart), ")")))
	if err != nil {
		return cards, 0, false
	}
	return cards, score, true
}

func parseCards(s string) []card.Card {
	var out []card.Card
	for _, tok := range strings.Fields(s) {
		c, err := card.Parse(tok)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}
