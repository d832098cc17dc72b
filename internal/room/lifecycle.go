// internal/room/lifecycle.go
package room

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/starplay/starplay/internal/events"
	"github.com/starplay/starplay/internal/game"
	"github.com/starplay/starplay/internal/models"
)

// startGame transitions a waiting room to playing, instantiates the engine
// over the committed participants and announces the opening state. Caller
// holds r.mu.
func (m *Manager) startGame(r *Room) {
	r.bumpEpoch()
	participants := r.readyPlayers()
	for _, p := range participants {
		p.Status = models.PlayerPlaying
	}
	now := time.Now()
	r.StartedAt = &now
	r.Status = models.RoomPlaying
	m.removeFromQueue(r.GameType, r.ID)

	snap := r.snapshot()
	m.hub.Broadcast(r.playerIDs(), events.Event{
		Type:         events.EventGameStarted,
		RoomID:       r.ID,
		Room:         &snap,
		PlayersCount: len(participants),
	})

	switch r.GameType {
	case models.GameDice:
		g := game.NewDiceGame(r.ID, participants, r.BetAmount)
		r.engine = g
		m.hub.Broadcast(r.playerIDs(), events.Event{
			Type:      events.EventGameStart,
			RoomID:    r.ID,
			Room:      &snap,
			GameState: g.GameState(),
			Message:   "Roll your dice!",
		})
	case models.GameRPS:
		r.engine = game.NewRPSGame(r.ID, participants, r.BetAmount)
		m.hub.Broadcast(r.playerIDs(), events.Event{
			Type:         events.EventRPSStarted,
			RoomID:       r.ID,
			Room:         &snap,
			TotalPlayers: len(participants),
			Timer:        int(m.cfg.ChoiceWindow / time.Second),
			Message:      "Make your choice!",
		})
		m.scheduleChoiceDeadline(r)
	}

	m.log.WithFields(logrus.Fields{
		"room_id":   r.ID,
		"game_type": r.GameType,
		"players":   len(participants),
	}).Info("game started")
}

// HandleDiceAction processes a "roll" from a player. The private roll goes
// back to the acting player only; once every participant has rolled the round
// settles, either paying out or announcing a full-tie reroll.
func (m *Manager) HandleDiceAction(ctx context.Context, playerID string, action string) error {
	r, ok := m.roomOf(playerID)
	if !ok {
		return ErrNotInRoom
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Status != models.RoomPlaying || r.GameType != models.GameDice || r.engine == nil {
		return ErrInvalidTransition
	}

	outcome, err := r.engine.SubmitAction(playerID, game.Action{Name: action})
	if err != nil {
		return err
	}

	m.hub.SendDirect(playerID, events.Event{
		Type:   events.EventDiceRollResult,
		RoomID: r.ID,
		Roll: &events.DiceRoll{
			Die1:             outcome.Roll.Die1,
			Die2:             outcome.Roll.Die2,
			Total:            outcome.Roll.Total,
			AllPlayersRolled: outcome.AllActed,
		},
	})

	if outcome.AllActed {
		m.settleDiceRound(ctx, r)
	}
	return nil
}

// settleDiceRound resolves a decisive dice round. A full tie schedules a
// reroll; anything else finishes the room. Caller holds r.mu.
func (m *Manager) settleDiceRound(ctx context.Context, r *Room) {
	s := r.engine.Settle(nil)
	if s.Result == game.ResultReroll {
		g := r.engine.(*game.DiceGame)
		m.hub.Broadcast(r.playerIDs(), events.Event{
			Type:      events.EventTieDetected,
			RoomID:    r.ID,
			Results:   roundResults(g),
			Countdown: int(m.cfg.RerollDelay / time.Second),
			Message:   "All players tied. Rerolling.",
		})
		m.scheduleReroll(r)
		return
	}
	m.finishRoom(ctx, r, s)
}

// HandleRPSChoice records a player's choice, announces lobby progress without
// revealing the value, and resolves the game once every participant has
// chosen.
func (m *Manager) HandleRPSChoice(ctx context.Context, playerID string, choice string) error {
	r, ok := m.roomOf(playerID)
	if !ok {
		return ErrNotInRoom
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Status != models.RoomPlaying || r.GameType != models.GameRPS || r.engine == nil {
		return ErrInvalidTransition
	}

	outcome, err := r.engine.SubmitAction(playerID, game.Action{Choice: choice})
	if err != nil {
		return err
	}

	m.hub.Broadcast(r.playerIDs(), events.Event{
		Type:         events.EventRPSChoiceMade,
		RoomID:       r.ID,
		PlayerID:     playerID,
		ChoicesCount: outcome.ChoicesCount,
		TotalPlayers: len(m.committedIDs(r.ID)),
	})

	if outcome.AllActed {
		m.finishRoom(ctx, r, r.engine.Settle(m.committedIDs(r.ID)))
	}
	return nil
}

// finishRoom settles payouts and closes the room. Winners split the pool by
// floor division; on an rps tie every committed stake is refunded instead.
// Caller holds r.mu.
func (m *Manager) finishRoom(ctx context.Context, r *Room, s game.Settlement) {
	r.bumpEpoch()
	now := time.Now()
	r.FinishedAt = &now
	r.Status = models.RoomFinished
	r.WinnerIDs = append([]string(nil), s.Winners...)
	// Fairness material stays private until settlement.
	r.GameSeed = s.Seed

	switch s.Result {
	case game.ResultWin:
		for _, pid := range s.Winners {
			if err := m.ledger.Credit(ctx, pid, s.PrizePerWinner); err != nil {
				m.log.WithError(err).WithFields(logrus.Fields{
					"room_id": r.ID, "player_id": pid, "amount": s.PrizePerWinner,
				}).Error("prize credit failed")
			} else if p := r.player(pid); p != nil {
				p.Balance += s.PrizePerWinner
			}
		}
		for _, pid := range m.committedIDs(r.ID) {
			m.clearCommitted(r.ID, pid)
		}
	case game.ResultTie, game.ResultComplexTie:
		m.refundCommitted(ctx, r)
	}

	snap := r.snapshot()
	ev := events.Event{
		RoomID:         r.ID,
		Room:           &snap,
		Result:         s.Result,
		Winners:        s.Winners,
		PrizePerWinner: s.PrizePerWinner,
		TotalPrize:     s.TotalPrize,
	}
	switch r.GameType {
	case models.GameDice:
		ev.Type = events.EventGameResults
		ev.Results = s.Results
		ev.Seed = s.Seed
		ev.Nonce = s.Nonce
	case models.GameRPS:
		ev.Type = events.EventGameFinished
		ev.Choices = s.Choices
	}
	m.hub.Broadcast(r.playerIDs(), ev)

	m.scheduleCleanup(r)

	m.log.WithFields(logrus.Fields{
		"room_id": r.ID,
		"result":  s.Result,
		"winners": s.Winners,
		"prize":   s.PrizePerWinner,
	}).Info("room settled")

	if m.OnSettled != nil {
		go m.OnSettled(snap, s)
	}
}

// cancelRoom expires a room that never started, refunding every committed
// stake. Caller holds r.mu.
func (m *Manager) cancelRoom(ctx context.Context, r *Room, reason string) {
	r.bumpEpoch()
	now := time.Now()
	r.FinishedAt = &now
	r.Status = models.RoomCancelled
	m.removeFromQueue(r.GameType, r.ID)

	m.refundCommitted(ctx, r)

	snap := r.snapshot()
	m.hub.Broadcast(r.playerIDs(), events.Event{
		Type:    events.EventRoomCancelled,
		RoomID:  r.ID,
		Room:    &snap,
		Message: reason,
	})
	m.scheduleCleanup(r)

	m.log.WithFields(logrus.Fields{"room_id": r.ID, "reason": reason}).Info("room cancelled")
}

// refundCommitted returns each committed stake once and drops the commitment
// marker so a second pass cannot refund again. Caller holds r.mu.
func (m *Manager) refundCommitted(ctx context.Context, r *Room) {
	for _, pid := range m.committedIDs(r.ID) {
		if err := m.ledger.Credit(ctx, pid, r.BetAmount); err != nil {
			m.log.WithError(err).WithFields(logrus.Fields{
				"room_id": r.ID, "player_id": pid, "amount": r.BetAmount,
			}).Error("stake refund failed")
			continue
		}
		m.clearCommitted(r.ID, pid)
		if p := r.player(pid); p != nil {
			p.Balance += r.BetAmount
		}
		r.Pot -= r.BetAmount
	}
}

// committedIDs lists the players whose stake debit is still outstanding for a
// room. During play this is exactly the participant set.
func (m *Manager) committedIDs(roomID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.committed[roomID]))
	for pid := range m.committed[roomID] {
		ids = append(ids, pid)
	}
	return ids
}

// --- timers. Every callback re-acquires the room lock and compares the epoch
// captured at scheduling time; a stale timer is a no-op. ---

// scheduleLobbyExpiry arms the waiting-room deadline: start if enough stakes
// are committed, cancel and refund otherwise. Caller holds r.mu.
func (m *Manager) scheduleLobbyExpiry(r *Room) {
	epoch := r.epoch
	r.lobbyTimer = time.AfterFunc(m.cfg.LobbyTimeout, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.epoch != epoch || r.Status != models.RoomWaiting {
			return
		}
		if r.canStart() {
			m.startGame(r)
			return
		}
		m.cancelRoom(context.Background(), r, "room expired before enough players were ready")
	})
}

// scheduleReroll arms the pause between a full-tie announcement and the next
// round opening. Caller holds r.mu; the tie does not change the epoch, the
// reroll itself does.
func (m *Manager) scheduleReroll(r *Room) {
	epoch := r.epoch
	r.rerollTimer = time.AfterFunc(m.cfg.RerollDelay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.epoch != epoch || r.Status != models.RoomPlaying {
			return
		}
		g, ok := r.engine.(*game.DiceGame)
		if !ok || g.Finished() {
			return
		}
		r.bumpEpoch()
		g.PrepareReroll()
		m.hub.Broadcast(r.playerIDs(), events.Event{
			Type:      events.EventGameStart,
			RoomID:    r.ID,
			GameState: g.GameState(),
			Message:   "Reroll round. Roll your dice!",
		})
	})
}

// scheduleChoiceDeadline arms the rps choice window; on expiry the game
// settles with the timeout sentinel standing in for every missing choice.
// Caller holds r.mu.
func (m *Manager) scheduleChoiceDeadline(r *Room) {
	epoch := r.epoch
	r.choiceTimer = time.AfterFunc(m.cfg.ChoiceWindow, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.epoch != epoch || r.Status != models.RoomPlaying {
			return
		}
		if r.engine == nil || r.engine.Finished() {
			return
		}
		m.finishRoom(context.Background(), r, r.engine.Settle(m.committedIDs(r.ID)))
	})
}

// scheduleCleanup evicts a terminal room from the registry after a grace
// period so late readers still see the final snapshot. Caller holds r.mu.
func (m *Manager) scheduleCleanup(r *Room) {
	time.AfterFunc(m.cfg.CleanupDelay, func() {
		r.mu.Lock()
		terminal := r.Status.Terminal()
		r.mu.Unlock()
		if terminal {
			m.evictRoom(r)
		}
	})
}

// roundResults snapshots the per-player dice results for a tie announcement.
func roundResults(g *game.DiceGame) map[string]models.DiceResult {
	state := g.GameState()
	if res, ok := state["results"].(map[string]models.DiceResult); ok {
		return res
	}
	return nil
}
