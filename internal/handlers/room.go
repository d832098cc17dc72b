// internal/handlers/room.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/starplay/starplay/internal/database"
	"github.com/starplay/starplay/internal/ledger"
	"github.com/starplay/starplay/internal/models"
	"github.com/starplay/starplay/internal/room"
)

// resolvePlayer builds the roster entry for an authenticated player, pulling
// the username from the users table when a database is connected.
func resolvePlayer(ctx context.Context, playerID string) models.Player {
	p := models.Player{ID: playerID, Username: "player-" + shortID(playerID)}
	if database.DB == nil {
		return p
	}
	uid, err := uuid.Parse(playerID)
	if err != nil {
		return p
	}
	if u, err := database.GetUserByID(ctx, uid); err == nil {
		p.Username = u.Username
		p.ExternalID = u.ExternalID
	}
	return p
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeRoomError maps room and ledger errors onto HTTP statuses.
func writeRoomError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, room.ErrNotInRoom):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, room.ErrNotJoinable), errors.Is(err, room.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ledger.ErrInsufficientFunds):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, room.ErrUnsupportedGameType):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// CreateRoomHandler opens a new waiting room with the caller as creator.
//
// Request payload: {"game_type": "dice", "bet_amount": 100}
func CreateRoomHandler(logger *logrus.Logger, m *room.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, err := authenticatedPlayerID(r)
		if err != nil {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}

		var req struct {
			GameType  models.GameType `json:"game_type"`
			BetAmount int64           `json:"bet_amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		if !req.GameType.Valid() || req.BetAmount <= 0 {
			http.Error(w, "invalid game_type or bet_amount", http.StatusBadRequest)
			return
		}

		creator := resolvePlayer(r.Context(), playerID)
		snap, err := m.CreateRoom(r.Context(), creator, req.GameType, req.BetAmount)
		if err != nil {
			logger.WithError(err).Warn("create room failed")
			writeRoomError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, snap)
	}
}

// JoinRoomHandler adds the caller to an existing waiting room.
//
// Request payload: {"room_id": "a1b2c3d4"}
func JoinRoomHandler(logger *logrus.Logger, m *room.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, err := authenticatedPlayerID(r)
		if err != nil {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}

		var req struct {
			RoomID string `json:"room_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomID == "" {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}

		player := resolvePlayer(r.Context(), playerID)
		snap, err := m.JoinRoom(r.Context(), req.RoomID, player)
		if err != nil {
			logger.WithError(err).WithField("room_id", req.RoomID).Warn("join room failed")
			writeRoomError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// ReadyRoomHandler commits the caller's stake. The same action is available
// over the websocket; both paths converge on the manager.
func ReadyRoomHandler(logger *logrus.Logger, m *room.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, err := authenticatedPlayerID(r)
		if err != nil {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}
		snap, err := m.ReadyPlayer(r.Context(), playerID)
		if err != nil {
			logger.WithError(err).WithField("player_id", playerID).Warn("ready failed")
			writeRoomError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// ListRoomsHandler returns joinable waiting rooms, filtered by game type and
// an optional stake ceiling.
//
// GET /rooms/list?game_type=dice&max_stake=500
func ListRoomsHandler(m *room.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameType := models.GameType(r.URL.Query().Get("game_type"))
		if !gameType.Playable() {
			http.Error(w, "invalid game_type", http.StatusBadRequest)
			return
		}
		var maxStake int64
		if s := r.URL.Query().Get("max_stake"); s != "" {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				http.Error(w, "invalid max_stake", http.StatusBadRequest)
				return
			}
			maxStake = v
		}
		writeJSON(w, http.StatusOK, m.ListAvailable(gameType, maxStake))
	}
}

// PlayerStatusHandler reports the caller's current room, if any, so a client
// can reconcile after missing live events.
func PlayerStatusHandler(m *room.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID, err := authenticatedPlayerID(r)
		if err != nil {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}
		snap, ok := m.PlayerRoom(playerID)
		if !ok {
			writeJSON(w, http.StatusOK, map[string]interface{}{"in_room": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"in_room": true, "room": snap})
	}
}
