// internal/game/engine.go
package game

import (
	"errors"

	"github.com/starplay/starplay/internal/models"
)

// Engine errors. All of them are local to one room and one caller; the room
// reports them to the acting player and mutates nothing.
var (
	ErrGameFinished  = errors.New("game already finished")
	ErrUnknownPlayer = errors.New("player is not a participant of this game")
	ErrAlreadyActed  = errors.New("player already acted this round")
	ErrInvalidChoice = errors.New("invalid choice")
	ErrUnknownAction = errors.New("unknown action")
)

// Result values carried in settlements.
const (
	ResultWin        = "win"
	ResultTie        = "tie"
	ResultComplexTie = "complex_tie"
	ResultReroll     = "reroll"
)

// Action is one player move submitted over the live connection.
type Action struct {
	Name   string // "roll" for dice, "choice" for rps
	Choice string // rps only
}

// ActionOutcome reports what an accepted action produced. Roll is set for dice
// (sent directly to the acting player before the full reveal); ChoicesCount is
// set for rps progress broadcasts.
type ActionOutcome struct {
	Roll         *models.DiceResult
	AllActed     bool
	ChoicesCount int
}

// Settlement is the engine's instruction set for prize distribution. The pool
// is floor-divided among winners; the integer remainder is intentionally not
// redistributed. Seed and Nonce are disclosed for dice settlements only.
type Settlement struct {
	Result         string
	Winners        []string
	PrizePerWinner int64
	TotalPrize     int64
	Choices        map[string]string
	Results        map[string]models.DiceResult
	Seed           string
	Nonce          string
}

// Engine is the capability surface a room uses to drive its game. The set of
// implementations is closed (dice, rps); a room selects one at start time and
// never re-dispatches.
type Engine interface {
	GameType() models.GameType

	// SubmitAction applies one player action, serialized by the owning room.
	SubmitAction(playerID string, action Action) (*ActionOutcome, error)

	// Decisive reports whether every expected participant has acted.
	Decisive() bool

	// Settle computes the settlement for the current round. For dice a full
	// tie yields Result == ResultReroll and the room must call PrepareReroll
	// instead of paying out. expected lists the participants who were
	// required to act (rps assigns its timeout sentinel to absentees).
	Settle(expected []string) Settlement

	// Finished reports whether a settlement has been reached.
	Finished() bool
}
