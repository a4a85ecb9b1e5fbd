package blackjack

import "errors"

var (
	ErrDeckExhausted    = errors.New("run out of cards")
	ErrDeckLow          = errors.New("not enough cards left for a new round")
	ErrSessionFull      = errors.New("session full")
	ErrRoundStarted     = errors.New("game already started")
	ErrRoundInProgress  = errors.New("round in progress")
	ErrRoundOver        = errors.New("round already over")
	ErrOutOfTurn        = errors.New("action out of turn")
	ErrNotEnoughPlayers = errors.New("not enough players")
	ErrUnknownPlayer    = errors.New("unknown player")
	ErrMalformedCommand = errors.New("malformed command")
)

type InvalidStateError string

func (e InvalidStateError) Error() string { return "invalid state: " + string(e) }

func ErrInvalidState(msg string) error { return InvalidStateError(msg) }
