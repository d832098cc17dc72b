// internal/database/settlement.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/starplay/starplay/internal/game"
	"github.com/starplay/starplay/internal/models"
)

// RecordSettlement persists a finished room: the games row with its result
// and disclosed fairness material, plus one game_results row per participant.
// Idempotent on room id so a retried write cannot double-record.
func RecordSettlement(ctx context.Context, snap models.RoomSnapshot, s game.Settlement) error {
	finalState, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal final room state: %w", err)
	}

	winners := map[string]bool{}
	for _, w := range s.Winners {
		winners[w] = true
	}

	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsertGame := `
			INSERT INTO games (id, game_type, status, bet_amount, pot, result, seed, nonce, final_state, started_at, finished_at)
			VALUES ($1, $2, 'completed', $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE
			SET status='completed', result=$5, seed=$6, nonce=$7, final_state=$8, finished_at=$10
		`
		if _, e := tx.Exec(ctx, upsertGame,
			snap.ID, string(snap.GameType), snap.BetAmount, snap.Pot,
			s.Result, s.Seed, s.Nonce, finalState,
			snap.StartedAt, snap.FinishedAt,
		); e != nil {
			return e
		}

		for _, p := range snap.Players {
			var winnings int64
			if winners[p.ID] {
				winnings = s.PrizePerWinner
			}
			q := `
				INSERT INTO game_results (game_id, player_id, bet_amount, winnings, did_win)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (game_id, player_id)
				DO UPDATE SET winnings=$4, did_win=$5
			`
			if _, e := tx.Exec(ctx, q, snap.ID, p.ID, snap.BetAmount, winnings, winners[p.ID]); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx upsert game or results: %w", err)
	}
	return nil
}
