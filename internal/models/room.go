// internal/models/room.go
package models

import (
	"time"
)

// GameType tags a room with the mini-game it hosts.
type GameType string

const (
	GameDice GameType = "dice"
	GameRPS  GameType = "rps"
	// GameCards exists as a recognized tag only; no engine is registered for it
	// and room creation with it is rejected.
	GameCards GameType = "cards"
)

// Valid reports whether gt is one of the known game type tags.
func (gt GameType) Valid() bool {
	return gt == GameDice || gt == GameRPS || gt == GameCards
}

// Playable reports whether an engine exists for gt.
func (gt GameType) Playable() bool {
	return gt == GameDice || gt == GameRPS
}

// RoomStatus is the room lifecycle state.
type RoomStatus string

const (
	RoomWaiting   RoomStatus = "waiting"
	RoomPlaying   RoomStatus = "playing"
	RoomFinished  RoomStatus = "finished"
	RoomCancelled RoomStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s RoomStatus) Terminal() bool {
	return s == RoomFinished || s == RoomCancelled
}

// PlayerStatus is a player's per-room state.
type PlayerStatus string

const (
	PlayerWaiting      PlayerStatus = "waiting"
	PlayerReady        PlayerStatus = "ready"
	PlayerPlaying      PlayerStatus = "playing"
	PlayerDisconnected PlayerStatus = "disconnected"
)

// Player is a participant in exactly one room at a time. The Balance field is an
// in-memory snapshot; the ledger collaborator holds the durable value and every
// mutation here is mirrored through it.
type Player struct {
	ID         string       `json:"id"`
	ExternalID string       `json:"external_id"`
	Username   string       `json:"username"`
	Balance    int64        `json:"balance"`
	Status     PlayerStatus `json:"status"`
	BetAmount  int64        `json:"bet_amount"`
	IsCreator  bool         `json:"is_creator"`
}

// RoomSnapshot is the wire representation of a room returned by the request-style
// operations and embedded in broadcast envelopes.
type RoomSnapshot struct {
	ID         string       `json:"id"`
	GameType   GameType     `json:"game_type"`
	Status     RoomStatus   `json:"status"`
	Players    []Player     `json:"players"`
	MaxPlayers int          `json:"max_players"`
	MinPlayers int          `json:"min_players"`
	BetAmount  int64        `json:"bet_amount"`
	Pot        int64        `json:"pot"`
	CreatedAt  time.Time    `json:"created_at"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	GameSeed   string       `json:"game_seed,omitempty"`
	WinnerIDs  []string     `json:"winner_ids,omitempty"`
}

// DiceResult is one player's roll in a dice round.
type DiceResult struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Die1       int    `json:"die1"`
	Die2       int    `json:"die2"`
	Total      int    `json:"total"`
}
