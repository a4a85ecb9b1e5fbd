package blackjack

// RoundState 回合阶段
type RoundState byte

const (
	StateAwaitingPlayers RoundState = 0
	StateDealing         RoundState = 1
	StatePlayerTurns     RoundState = 2
	StateDealerTurn      RoundState = 3
	StateResolved        RoundState = 4
)

var RoundStateDictionary = map[RoundState]string{
	StateAwaitingPlayers: "awaiting_players",
	StateDealing:         "dealing",
	StatePlayerTurns:     "player_turns",
	StateDealerTurn:      "dealer_turn",
	StateResolved:        "resolved",
}

func (s RoundState) String() string {
	if name, ok := RoundStateDictionary[s]; ok {
		return name
	}
	return "unknown"
}

// ActionType 动作类型：0-NONE 1-HIT 2-STAND
type ActionType byte

const (
	PlayerActionTypeNone  ActionType = 0
	PlayerActionTypeHit   ActionType = 1
	PlayerActionTypeStand ActionType = 2
)

var PlayerActionTypeDictionary = map[ActionType]string{
	PlayerActionTypeNone:  "NONE",
	PlayerActionTypeHit:   "HIT",
	PlayerActionTypeStand: "STAND",
}

func (a ActionType) String() string {
	if name, ok := PlayerActionTypeDictionary[a]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseAction maps an inbound command line to an action. Commands are
// exact, single-token and upper case.
func ParseAction(line string) (ActionType, bool) {
	switch line {
	case "HIT":
		return PlayerActionTypeHit, true
	case "STAND":
		return PlayerActionTypeStand, true
	}
	return PlayerActionTypeNone, false
}

// Round is the transient per-round aggregate.
type Round struct {
	Number    uint32
	State     RoundState
	TurnIndex int
}

const (
	BlackjackScore   = 21
	DealerStandScore = 17
)
