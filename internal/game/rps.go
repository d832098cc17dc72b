// internal/game/rps.go
package game

import (
	"github.com/starplay/starplay/internal/models"
)

// RPS choice values. ChoiceTimeout is the sentinel assigned to a participant
// who never chose before the deadline; it never wins.
const (
	ChoiceRock     = "rock"
	ChoicePaper    = "paper"
	ChoiceScissors = "scissors"
	ChoiceTimeout  = "timeout"
)

// beats maps the dominant value for each pair of distinct choices.
var beats = map[[2]string]string{
	{ChoiceRock, ChoiceScissors}:  ChoiceRock,
	{ChoiceScissors, ChoicePaper}: ChoiceScissors,
	{ChoicePaper, ChoiceRock}:     ChoicePaper,
}

// RPSGame implements simultaneous-reveal rock-paper-scissors for 2-4 players.
// Choices are player-submitted, never derived; there is no fairness material
// to disclose. The owning room serializes all calls.
type RPSGame struct {
	RoomID    string
	BetAmount int64
	PrizePool int64

	players map[string]*models.Player
	choices map[string]string

	finished bool
	winners  []string
}

func NewRPSGame(roomID string, players []*models.Player, betAmount int64) *RPSGame {
	g := &RPSGame{
		RoomID:    roomID,
		BetAmount: betAmount,
		PrizePool: betAmount * int64(len(players)),
		players:   make(map[string]*models.Player, len(players)),
		choices:   make(map[string]string, len(players)),
	}
	for _, p := range players {
		g.players[p.ID] = p
	}
	return g
}

func (g *RPSGame) GameType() models.GameType { return models.GameRPS }

// SubmitAction records a player's choice.
func (g *RPSGame) SubmitAction(playerID string, action Action) (*ActionOutcome, error) {
	if g.finished {
		return nil, ErrGameFinished
	}
	if _, ok := g.players[playerID]; !ok {
		return nil, ErrUnknownPlayer
	}
	switch action.Choice {
	case ChoiceRock, ChoicePaper, ChoiceScissors:
	default:
		return nil, ErrInvalidChoice
	}
	if _, chosen := g.choices[playerID]; chosen {
		return nil, ErrAlreadyActed
	}

	g.choices[playerID] = action.Choice
	return &ActionOutcome{AllActed: g.Decisive(), ChoicesCount: len(g.choices)}, nil
}

// Decisive reports whether every participant has chosen.
func (g *RPSGame) Decisive() bool {
	return len(g.choices) >= len(g.players)
}

// ChoicesCount returns how many choices were submitted so far.
func (g *RPSGame) ChoicesCount() int { return len(g.choices) }

// Settle reveals choices and determines the outcome. Participants in expected
// who never chose get the timeout sentinel. One distinct valid value (or none)
// is a full tie; all three distinct values is a ring tie; two distinct values
// resolve by dominance, and every player on the dominant value wins.
func (g *RPSGame) Settle(expected []string) Settlement {
	for _, pid := range expected {
		if _, ok := g.choices[pid]; !ok {
			g.choices[pid] = ChoiceTimeout
		}
	}
	g.finished = true

	choicesCopy := make(map[string]string, len(g.choices))
	for pid, ch := range g.choices {
		choicesCopy[pid] = ch
	}

	distinct := map[string]bool{}
	for _, ch := range g.choices {
		if ch != ChoiceTimeout {
			distinct[ch] = true
		}
	}

	switch len(distinct) {
	case 0, 1:
		// Everyone picked the same value, or everyone timed out.
		return Settlement{Result: ResultTie, Choices: choicesCopy, TotalPrize: g.PrizePool}
	case 3:
		// Ring: rock, paper and scissors all present, no dominant value.
		return Settlement{Result: ResultComplexTie, Choices: choicesCopy, TotalPrize: g.PrizePool}
	}

	var a, b string
	for ch := range distinct {
		if a == "" {
			a = ch
		} else {
			b = ch
		}
	}
	winning := rpsWinner(a, b)

	winners := []string{}
	for pid, ch := range g.choices {
		if ch == winning {
			winners = append(winners, pid)
		}
	}
	g.winners = winners

	return Settlement{
		Result:         ResultWin,
		Winners:        winners,
		PrizePerWinner: g.PrizePool / int64(len(winners)),
		TotalPrize:     g.PrizePool,
		Choices:        choicesCopy,
	}
}

// Finished reports whether the game has settled.
func (g *RPSGame) Finished() bool { return g.finished }

// Winners returns the settled winner ids, nil on a tie.
func (g *RPSGame) Winners() []string { return g.winners }

// rpsWinner returns the dominant value between two distinct choices.
func rpsWinner(a, b string) string {
	if w, ok := beats[[2]string{a, b}]; ok {
		return w
	}
	if w, ok := beats[[2]string{b, a}]; ok {
		return w
	}
	return a
}
