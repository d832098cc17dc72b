// internal/room/room.go
package room

import (
	"errors"
	"sync"
	"time"

	"github.com/starplay/starplay/internal/game"
	"github.com/starplay/starplay/internal/models"
)

// Room-level errors. Every one of them is local to one room and one caller;
// none of them mutates state.
var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrNotJoinable         = errors.New("room is not joinable")
	ErrNotInRoom           = errors.New("player is not in any room")
	ErrInvalidTransition   = errors.New("operation not valid in current room state")
	ErrUnsupportedGameType = errors.New("unsupported game type")
)

// Room is a single game session: fixed roster, stake, lifecycle. All
// mutations are serialized by mu; timers carry the epoch value observed at
// scheduling time, and a timer whose epoch no longer matches fires as a
// no-op. The epoch increments on every lifecycle transition (start, reroll,
// finish, cancel).
type Room struct {
	ID         string
	GameType   models.GameType
	Status     models.RoomStatus
	Players    []*models.Player
	MaxPlayers int
	MinPlayers int
	BetAmount  int64
	Pot        int64
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	GameSeed   string
	WinnerIDs  []string

	engine game.Engine
	epoch  int

	lobbyTimer  *time.Timer
	choiceTimer *time.Timer
	rerollTimer *time.Timer

	mu sync.Mutex
}

// player returns the roster entry for id, or nil. Caller holds mu.
func (r *Room) player(id string) *models.Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// readyPlayers returns the participants who committed their stake (ready or
// already playing). Caller holds mu.
func (r *Room) readyPlayers() []*models.Player {
	out := make([]*models.Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p.Status == models.PlayerReady || p.Status == models.PlayerPlaying {
			out = append(out, p)
		}
	}
	return out
}

// canJoin reports whether the roster is still open. Caller holds mu.
func (r *Room) canJoin() bool {
	return r.Status == models.RoomWaiting && len(r.Players) < r.MaxPlayers
}

// canStart reports whether enough stakes are committed. Caller holds mu.
func (r *Room) canStart() bool {
	return len(r.readyPlayers()) >= r.MinPlayers
}

// playerIDs lists the whole roster, used for broadcast fan-out. Caller holds mu.
func (r *Room) playerIDs() []string {
	ids := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		ids = append(ids, p.ID)
	}
	return ids
}

// bumpEpoch invalidates every outstanding timer for this room and stops the
// ones we still hold references to. Caller holds mu.
func (r *Room) bumpEpoch() {
	r.epoch++
	for _, t := range []*time.Timer{r.lobbyTimer, r.choiceTimer, r.rerollTimer} {
		if t != nil {
			t.Stop()
		}
	}
	r.lobbyTimer, r.choiceTimer, r.rerollTimer = nil, nil, nil
}

// snapshot builds the wire representation of the room. Caller holds mu.
func (r *Room) snapshot() models.RoomSnapshot {
	players := make([]models.Player, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, *p)
	}
	winners := append([]string(nil), r.WinnerIDs...)
	return models.RoomSnapshot{
		ID:         r.ID,
		GameType:   r.GameType,
		Status:     r.Status,
		Players:    players,
		MaxPlayers: r.MaxPlayers,
		MinPlayers: r.MinPlayers,
		BetAmount:  r.BetAmount,
		Pot:        r.Pot,
		CreatedAt:  r.CreatedAt,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		GameSeed:   r.GameSeed,
		WinnerIDs:  winners,
	}
}

// Snapshot returns the room's wire representation.
func (r *Room) Snapshot() models.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}
