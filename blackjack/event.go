package blackjack

import (
	"fmt"
	"strings"

	"blackjack-lite/card"
)

// EventKind is the semantic type of a table notification. Renderers map
// kinds to presentation; Line gives the plain text protocol form.
type EventKind byte

const (
	EventJoined EventKind = iota + 1
	EventLeft
	EventWaiting
	EventChat
	EventGameStart
	EventInitialCards
	EventNewCard
	EventHandSummary
	EventDealerFirstCard
	EventYourTurn
	EventClearHand
	EventBusted
	EventStands
	EventDealerTurn
	EventDealerHand
	EventDealerHit
	EventDealerBusted
	EventOutcome
	EventGameOver
	EventDeckExhausted
)

var EventKindDictionary = map[EventKind]string{
	EventJoined:          "joined",
	EventLeft:            "left",
	EventWaiting:         "waiting",
	EventChat:            "chat",
	EventGameStart:       "game_start",
	EventInitialCards:    "initial_cards",
	EventNewCard:         "new_card",
	EventHandSummary:     "hand_summary",
	EventDealerFirstCard: "dealer_first_card",
	EventYourTurn:        "your_turn",
	EventClearHand:       "clear_hand",
	EventBusted:          "busted",
	EventStands:          "stands",
	EventDealerTurn:      "dealer_turn",
	EventDealerHand:      "dealer_hand",
	EventDealerHit:       "dealer_hit",
	EventDealerBusted:    "dealer_busted",
	EventOutcome:         "outcome",
	EventGameOver:        "game_over",
	EventDeckExhausted:   "deck_exhausted",
}

func (k EventKind) String() string {
	if name, ok := EventKindDictionary[k]; ok {
		return name
	}
	return "unknown"
}

// Event is one notification produced by the engine. To == 0 means every
// player at the table.
type Event struct {
	Kind    EventKind
	To      uint64
	Name    string
	Cards   []card.Card
	Outcome Outcome
	Text    string
}

func (e Event) Broadcast() bool { return e.To == 0 }

// Line renders the event as one protocol line.
func (e Event) Line() string {
	switch e.Kind {
	case EventJoined:
		return e.Name + " JOINED"
	case EventLeft:
		return e.Name + " LEFT"
	case EventWaiting:
		return "WAITING_FOR_PLAYERS"
	case EventChat:
		return e.Name + " says: " + e.Text
	case EventGameStart:
		return "GAME_START"
	case EventInitialCards:
		return "INITIAL_CARDS " + card.CardList(e.Cards).String()
	case EventNewCard:
		return "NEW_CARD " + firstToken(e.Cards)
	case EventHandSummary:
		return "Your card: " + formatHand(e.Cards)
	case EventDealerFirstCard:
		return "DEALER_FIRST_CARD " + firstToken(e.Cards)
	case EventYourTurn:
		return "YOUR_TURN"
	case EventClearHand:
		return "CLEAR_HAND"
	case EventBusted:
		return e.Name + " BUSTED!"
	case EventStands:
		return e.Name + " STANDS"
	case EventDealerTurn:
		return "DEALER_TURN"
	case EventDealerHand:
		return "DEALER_HAND " + formatHand(e.Cards)
	case EventDealerHit:
		return "DEALER_HIT " + firstToken(e.Cards)
	case EventDealerBusted:
		return "DEALER BUSTED!"
	case EventOutcome:
		return e.Name + " " + e.Outcome.String()
	case EventGameOver:
		return "GAME_OVER: " + e.Text
	case EventDeckExhausted:
		return "DECK EXHAUSTED"
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s", e.Kind, e.Text))
}

func firstToken(cards []card.Card) string {
	if len(cards) == 0 {
		return card.CardInvalid.String()
	}
	return cards[0].String()
}

// ChatEvent wraps free text sent by a player.
func ChatEvent(name, text string) Event {
	return Event{Kind: EventChat, Name: name, Text: text}
}

// Update is what one engine call produced: the notifications to deliver
// in order and, when the call finished a round, its result.
type Update struct {
	Events   []Event
	RoundEnd *RoundResult
}

func (u *Update) broadcast(e Event) {
	e.To = 0
	u.Events = append(u.Events, e)
}

func (u *Update) send(to uint64, e Event) {
	e.To = to
	u.Events = append(u.Events, e)
}

// Lines renders every event, for logging and tests.
func (u Update) Lines() []string {
	out := make([]string, 0, len(u.Events))
	for _, e := range u.Events {
		out = append(out, e.Line())
	}
	return out
}
