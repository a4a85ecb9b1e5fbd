package codec

import (
	"encoding/base64"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"blackjack-lite/blackjack"
	"blackjack-lite/card"
)

// RoundEnvelope is everything archived about one finished round.
type RoundEnvelope struct {
	RoundID  string
	PlayedAt time.Time
	Result   *blackjack.RoundResult
	// Tape is the ordered list of broadcast lines the table saw.
	Tape []string
}

// RoundToProto converts a finished round into a protobuf Struct.
func RoundToProto(env RoundEnvelope) (*structpb.Struct, error) {
	if env.Result == nil {
		return nil, fmt.Errorf("nil round result")
	}
	res := env.Result

	players := make([]any, 0, len(res.PlayerResults))
	for _, pr := range res.PlayerResults {
		players = append(players, map[string]any{
			"id":      fmt.Sprintf("%d", pr.ID),
			"name":    pr.Name,
			"cards":   cardsToValues(pr.Cards),
			"score":   pr.Score,
			"outcome": pr.Outcome.String(),
			"won":     pr.Outcome.Won(),
		})
	}
	tape := make([]any, 0, len(env.Tape))
	for _, line := range env.Tape {
		tape = append(tape, line)
	}

	return structpb.NewStruct(map[string]any{
		"roundId":      env.RoundID,
		"round":        int64(res.Round),
		"playedAtMs":   env.PlayedAt.UnixMilli(),
		"dealerCards":  cardsToValues(res.DealerCards),
		"dealerScore":  res.DealerScore,
		"dealerBusted": res.DealerBusted,
		"aborted":      res.Aborted,
		"reason":       res.Reason,
		"players":      players,
		"tape":         tape,
	})
}

// EncodeRound wraps a round as base64(proto.Marshal(struct)).
func EncodeRound(env RoundEnvelope) (string, error) {
	msg, err := RoundToProto(env)
	if err != nil {
		return "", err
	}
	return EncodeMessage(msg)
}

func EncodeMessage(msg proto.Message) (string, error) {
	raw, err := proto.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeRound parses an envelope produced by EncodeRound.
func DecodeRound(envelopeB64 string) (*structpb.Struct, error) {
	raw, err := base64.StdEncoding.DecodeString(envelopeB64)
	if err != nil {
		return nil, fmt.Errorf("decode envelope base64: %w", err)
	}
	msg := &structpb.Struct{}
	if err := proto.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return msg, nil
}

// SnapshotToProto is used by the spectator feed for its initial frame.
func SnapshotToProto(snap blackjack.Snapshot) (*structpb.Struct, error) {
	players := make([]any, 0, len(snap.Players))
	for _, p := range snap.Players {
		players = append(players, map[string]any{
			"id":        fmt.Sprintf("%d", p.ID),
			"name":      p.Name,
			"cardCount": p.CardCount,
			"cards":     stringsToValues(p.Tokens),
			"score":     p.Score,
			"busted":    p.Busted,
		})
	}
	return structpb.NewStruct(map[string]any{
		"maxPlayers":    snap.MaxPlayers,
		"started":       snap.Started,
		"round":         int64(snap.Round),
		"state":         snap.StateName,
		"turnIndex":     snap.TurnIndex,
		"actionPlayer":  fmt.Sprintf("%d", snap.ActionPlayer),
		"deckSize":      snap.DeckSize,
		"deckRemaining": snap.DeckRemaining,
		"dealerPhase":   snap.DealerPhase,
		"dealerCards":   stringsToValues(snap.DealerTokens),
		"dealerScore":   snap.DealerScore,
		"players":       players,
	})
}

func cardsToValues(cs []card.Card) []any {
	out := make([]any, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.String())
	}
	return out
}

func stringsToValues(ss []string) []any {
	out := make([]any, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}
