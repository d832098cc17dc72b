// internal/game/dice.go
package game

import (
	"github.com/starplay/starplay/internal/fairness"
	"github.com/starplay/starplay/internal/models"
)

// ActionRoll is the only verb the dice engine honors.
const ActionRoll = "roll"

// DiceGame implements the two-dice highest-sum game for 2-4 players. Each
// player rolls once per round; the highest total takes the pool. A full tie
// (every participant at the same total) rerolls with a fresh nonce and an
// incremented round counter instead of settling.
//
// The engine holds no lock of its own; the owning room serializes all calls.
type DiceGame struct {
	RoomID    string
	BetAmount int64
	PrizePool int64

	Seed  string
	Nonce string
	Round int

	players map[string]*models.Player
	acted   map[string]bool
	results map[string]models.DiceResult

	finished bool
	winners  []string
}

// NewDiceGame derives fresh fairness material for the room and registers the
// ready participants.
func NewDiceGame(roomID string, players []*models.Player, betAmount int64) *DiceGame {
	g := &DiceGame{
		RoomID:    roomID,
		BetAmount: betAmount,
		PrizePool: betAmount * int64(len(players)),
		Seed:      fairness.GenerateSeed(roomID),
		Nonce:     fairness.GenerateNonce(),
		Round:     1,
		players:   make(map[string]*models.Player, len(players)),
		acted:     make(map[string]bool, len(players)),
		results:   make(map[string]models.DiceResult, len(players)),
	}
	for _, p := range players {
		g.players[p.ID] = p
		g.acted[p.ID] = false
	}
	return g
}

func (g *DiceGame) GameType() models.GameType { return models.GameDice }

// SubmitAction handles the "roll" action: derives the player's dice via the
// fairness engine and records the total.
func (g *DiceGame) SubmitAction(playerID string, action Action) (*ActionOutcome, error) {
	if action.Name != ActionRoll {
		return nil, ErrUnknownAction
	}
	if g.finished {
		return nil, ErrGameFinished
	}
	p, ok := g.players[playerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if g.acted[playerID] {
		return nil, ErrAlreadyActed
	}

	die1, die2 := fairness.DeriveDice(g.Seed, g.Nonce, playerID, g.Round)
	res := models.DiceResult{
		PlayerID:   playerID,
		PlayerName: p.Username,
		Die1:       die1,
		Die2:       die2,
		Total:      die1 + die2,
	}
	g.results[playerID] = res
	g.acted[playerID] = true

	return &ActionOutcome{Roll: &res, AllActed: g.Decisive()}, nil
}

// Decisive reports whether every participant has rolled this round.
func (g *DiceGame) Decisive() bool {
	for _, acted := range g.acted {
		if !acted {
			return false
		}
	}
	return true
}

// Settle determines the round outcome. Only meaningful once Decisive; a full
// tie returns ResultReroll and leaves the game open.
func (g *DiceGame) Settle(_ []string) Settlement {
	maxTotal := 0
	for _, r := range g.results {
		if r.Total > maxTotal {
			maxTotal = r.Total
		}
	}

	winners := []string{}
	for pid, r := range g.results {
		if r.Total == maxTotal {
			winners = append(winners, pid)
		}
	}

	// Every participant at the exact maximum: reroll, never a payout.
	if len(winners) == len(g.players) && len(g.players) > 1 {
		return Settlement{Result: ResultReroll}
	}

	g.finished = true
	g.winners = winners

	var prize int64
	if len(winners) > 0 {
		prize = g.PrizePool / int64(len(winners))
	}

	resultsCopy := make(map[string]models.DiceResult, len(g.results))
	for pid, r := range g.results {
		resultsCopy[pid] = r
	}

	return Settlement{
		Result:         ResultWin,
		Winners:        winners,
		PrizePerWinner: prize,
		TotalPrize:     g.PrizePool,
		Results:        resultsCopy,
		Seed:           g.Seed,
		Nonce:          g.Nonce,
	}
}

// PrepareReroll resets per-round state after a full tie: new nonce, round
// counter incremented, action flags cleared. The seed is retained so the
// disclosed material still covers every round of the game.
func (g *DiceGame) PrepareReroll() {
	g.Round++
	g.Nonce = fairness.GenerateNonce()
	for pid := range g.acted {
		g.acted[pid] = false
	}
	g.results = make(map[string]models.DiceResult, len(g.players))
}

// Finished reports whether the game has settled.
func (g *DiceGame) Finished() bool { return g.finished }

// Winners returns the settled winner ids, nil before settlement.
func (g *DiceGame) Winners() []string { return g.winners }

// GameState snapshots the round for game_start / dice_roll_result payloads.
func (g *DiceGame) GameState() map[string]interface{} {
	acted := make(map[string]bool, len(g.acted))
	for pid, a := range g.acted {
		acted[pid] = a
	}
	results := make(map[string]models.DiceResult, len(g.results))
	for pid, r := range g.results {
		results[pid] = r
	}
	return map[string]interface{}{
		"room_id":            g.RoomID,
		"round_number":       g.Round,
		"player_actions":     acted,
		"results":            results,
		"winners":            g.winners,
		"game_finished":      g.finished,
		"all_players_rolled": g.Decisive(),
		"prize_pool":         g.PrizePool,
		"bet_amount":         g.BetAmount,
	}
}
