// internal/room/manager.go
package room

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/starplay/starplay/internal/events"
	"github.com/starplay/starplay/internal/game"
	"github.com/starplay/starplay/internal/ledger"
	"github.com/starplay/starplay/internal/models"
)

// Broadcaster is the connection-hub surface the manager needs. Sends must be
// non-blocking; offline players are skipped silently.
type Broadcaster interface {
	Broadcast(playerIDs []string, ev events.Event)
	SendDirect(playerID string, ev events.Event)
}

// Config holds the manager's timing and roster bounds.
type Config struct {
	LobbyTimeout time.Duration // waiting-room expiry
	RerollDelay  time.Duration // pause before a tie reroll reopens
	ChoiceWindow time.Duration // rps choice deadline
	CleanupDelay time.Duration // grace before a terminal room is evicted
	MinPlayers   int
	MaxPlayers   int
}

// DefaultConfig mirrors the production timings.
func DefaultConfig() Config {
	return Config{
		LobbyTimeout: 60 * time.Second,
		RerollDelay:  10 * time.Second,
		ChoiceWindow: 15 * time.Second,
		CleanupDelay: 10 * time.Second,
		MinPlayers:   2,
		MaxPlayers:   4,
	}
}

// SettledFunc receives the final snapshot and settlement of a resolved room,
// for persistence and audit publishing. Invoked outside the room lock.
type SettledFunc func(snap models.RoomSnapshot, settlement game.Settlement)

// Manager owns the room registry, the per-game-type matchmaking queues, and
// the player-to-room index. Registry bookkeeping is guarded by its own mutex;
// every room serializes its own mutations. A room's lock may be held while
// touching the registry, never the other way around.
type Manager struct {
	cfg    Config
	hub    Broadcaster
	ledger ledger.Ledger
	log    *logrus.Logger

	// OnSettled, if set, is called once per finished room.
	OnSettled SettledFunc

	mu         sync.Mutex
	rooms      map[string]*Room
	playerRoom map[string]string
	queue      map[models.GameType][]string

	// committed tracks stake debits per room so refunds happen exactly once,
	// even for players whose status was later overwritten by a disconnect.
	committed map[string]map[string]bool
}

// NewManager builds a manager around the given collaborators.
func NewManager(cfg Config, b Broadcaster, l ledger.Ledger, logger *logrus.Logger) *Manager {
	return &Manager{
		cfg:        cfg,
		hub:        b,
		ledger:     l,
		log:        logger,
		rooms:      make(map[string]*Room),
		playerRoom: make(map[string]string),
		queue:      make(map[models.GameType][]string),
		committed:  make(map[string]map[string]bool),
	}
}

// CreateRoom opens a new waiting room with the creator as sole participant
// and schedules its lobby expiry.
func (m *Manager) CreateRoom(ctx context.Context, creator models.Player, gameType models.GameType, betAmount int64) (models.RoomSnapshot, error) {
	if !gameType.Playable() {
		return models.RoomSnapshot{}, ErrUnsupportedGameType
	}

	balance, err := m.ledger.Balance(ctx, creator.ID)
	if err != nil {
		m.log.WithError(err).WithField("player_id", creator.ID).Warn("balance lookup failed on create")
	}

	r := &Room{
		ID:         uuid.NewString()[:8],
		GameType:   gameType,
		Status:     models.RoomWaiting,
		MaxPlayers: m.cfg.MaxPlayers,
		MinPlayers: m.cfg.MinPlayers,
		BetAmount:  betAmount,
		CreatedAt:  time.Now(),
	}
	creator.Status = models.PlayerWaiting
	creator.IsCreator = true
	creator.BetAmount = betAmount
	creator.Balance = balance
	r.Players = append(r.Players, &creator)

	m.mu.Lock()
	m.rooms[r.ID] = r
	m.playerRoom[creator.ID] = r.ID
	m.queue[gameType] = append(m.queue[gameType], r.ID)
	m.committed[r.ID] = make(map[string]bool)
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"room_id":   r.ID,
		"game_type": gameType,
		"bet":       betAmount,
	}).Info("room created")

	r.mu.Lock()
	m.scheduleLobbyExpiry(r)
	snap := r.snapshot()
	r.mu.Unlock()
	return snap, nil
}

// JoinRoom adds a player to a waiting room. A duplicate join returns the
// existing room rather than erroring.
func (m *Manager) JoinRoom(ctx context.Context, roomID string, player models.Player) (models.RoomSnapshot, error) {
	r, ok := m.getRoom(roomID)
	if !ok {
		return models.RoomSnapshot{}, ErrRoomNotFound
	}

	balance, err := m.ledger.Balance(ctx, player.ID)
	if err != nil {
		m.log.WithError(err).WithField("player_id", player.ID).Warn("balance lookup failed on join")
	}

	r.mu.Lock()
	if existing := r.player(player.ID); existing != nil {
		snap := r.snapshot()
		r.mu.Unlock()
		return snap, nil
	}
	if !r.canJoin() {
		r.mu.Unlock()
		return models.RoomSnapshot{}, ErrNotJoinable
	}

	player.Status = models.PlayerWaiting
	player.BetAmount = r.BetAmount
	player.Balance = balance
	r.Players = append(r.Players, &player)

	m.mu.Lock()
	m.playerRoom[player.ID] = r.ID
	m.mu.Unlock()

	joined := *r.player(player.ID)
	ev := events.Event{
		Type:         events.EventPlayerJoined,
		RoomID:       r.ID,
		Player:       &joined,
		PlayersCount: len(r.Players),
	}
	snap := r.snapshot()
	ev.Room = &snap
	m.hub.Broadcast(r.playerIDs(), ev)
	r.mu.Unlock()

	m.log.WithFields(logrus.Fields{"room_id": r.ID, "player_id": player.ID}).Info("player joined")
	return snap, nil
}

// ReadyPlayer commits the player's stake and starts the game once the minimum
// readiness is reached. Insufficient funds reject the operation with no state
// change; a repeated ready is a safe no-op.
func (m *Manager) ReadyPlayer(ctx context.Context, playerID string) (models.RoomSnapshot, error) {
	r, ok := m.roomOf(playerID)
	if !ok {
		return models.RoomSnapshot{}, ErrNotInRoom
	}

	r.mu.Lock()
	if r.Status != models.RoomWaiting {
		snap := r.snapshot()
		r.mu.Unlock()
		return snap, ErrInvalidTransition
	}
	p := r.player(playerID)
	if p == nil {
		r.mu.Unlock()
		return models.RoomSnapshot{}, ErrPlayerNotFound
	}
	if p.Status == models.PlayerReady {
		snap := r.snapshot()
		r.mu.Unlock()
		return snap, nil
	}

	if err := m.ledger.Debit(ctx, playerID, r.BetAmount); err != nil {
		snap := r.snapshot()
		r.mu.Unlock()
		return snap, err
	}
	p.Status = models.PlayerReady
	p.Balance -= r.BetAmount
	r.Pot += r.BetAmount
	m.markCommitted(r.ID, playerID)

	m.log.WithFields(logrus.Fields{"room_id": r.ID, "player_id": playerID}).Info("player ready")

	if r.canStart() {
		m.startGame(r)
	} else {
		snap := r.snapshot()
		m.hub.Broadcast(r.playerIDs(), events.Event{
			Type:       events.EventPlayerReady,
			RoomID:     r.ID,
			PlayerID:   playerID,
			ReadyCount: len(r.readyPlayers()),
			Room:       &snap,
		})
	}

	snap := r.snapshot()
	r.mu.Unlock()
	return snap, nil
}

// ListAvailable returns snapshots of joinable waiting rooms for a game type,
// optionally capped by stake. maxStake <= 0 means no ceiling.
func (m *Manager) ListAvailable(gameType models.GameType, maxStake int64) []models.RoomSnapshot {
	m.mu.Lock()
	ids := append([]string(nil), m.queue[gameType]...)
	m.mu.Unlock()

	out := []models.RoomSnapshot{}
	for _, id := range ids {
		r, ok := m.getRoom(id)
		if !ok {
			continue
		}
		r.mu.Lock()
		if r.canJoin() && (maxStake <= 0 || r.BetAmount <= maxStake) {
			out = append(out, r.snapshot())
		}
		r.mu.Unlock()
	}
	return out
}

// PlayerRoom returns the snapshot of the room a player currently occupies.
func (m *Manager) PlayerRoom(playerID string) (models.RoomSnapshot, bool) {
	r, ok := m.roomOf(playerID)
	if !ok {
		return models.RoomSnapshot{}, false
	}
	return r.Snapshot(), true
}

// DisconnectPlayer marks a participant disconnected without removing them
// from the roster or forcing a transition.
func (m *Manager) DisconnectPlayer(playerID string) {
	r, ok := m.roomOf(playerID)
	if !ok {
		return
	}
	r.mu.Lock()
	p := r.player(playerID)
	if p == nil || p.Status == models.PlayerDisconnected {
		r.mu.Unlock()
		return
	}
	p.Status = models.PlayerDisconnected
	snap := r.snapshot()
	m.hub.Broadcast(r.playerIDs(), events.Event{
		Type:     events.EventPlayerDisconnected,
		RoomID:   r.ID,
		PlayerID: playerID,
		Room:     &snap,
	})
	r.mu.Unlock()

	m.log.WithFields(logrus.Fields{"room_id": r.ID, "player_id": playerID}).Info("player disconnected")
}

// ReconnectPlayer restores a disconnected participant's status after their
// live connection is re-registered. No recovery handshake beyond this.
func (m *Manager) ReconnectPlayer(playerID string) {
	r, ok := m.roomOf(playerID)
	if !ok {
		return
	}
	r.mu.Lock()
	p := r.player(playerID)
	if p != nil && p.Status == models.PlayerDisconnected {
		switch {
		case r.Status == models.RoomPlaying && m.isCommitted(r.ID, playerID):
			p.Status = models.PlayerPlaying
		case m.isCommitted(r.ID, playerID):
			p.Status = models.PlayerReady
		default:
			p.Status = models.PlayerWaiting
		}
	}
	r.mu.Unlock()
}

// --- registry helpers ---

func (m *Manager) getRoom(id string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	return r, ok
}

func (m *Manager) roomOf(playerID string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.playerRoom[playerID]
	if !ok {
		return nil, false
	}
	r, ok := m.rooms[id]
	return r, ok
}

func (m *Manager) markCommitted(roomID, playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.committed[roomID]; ok {
		set[playerID] = true
	}
}

func (m *Manager) isCommitted(roomID, playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.committed[roomID][playerID]
}

// clearCommitted drops a player's commitment marker after a refund or payout
// path has reconciled it. Refunds happen exactly once.
func (m *Manager) clearCommitted(roomID, playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.committed[roomID]; ok {
		delete(set, playerID)
	}
}

// removeFromQueue drops a room from its matchmaking queue the moment it
// leaves waiting.
func (m *Manager) removeFromQueue(gameType models.GameType, roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queue[gameType]
	for i, id := range q {
		if id == roomID {
			m.queue[gameType] = append(q[:i], q[i+1:]...)
			return
		}
	}
}

// evictRoom removes a terminal room and its player index entries.
func (m *Manager) evictRoom(r *Room) {
	r.mu.Lock()
	ids := r.playerIDs()
	r.mu.Unlock()

	m.mu.Lock()
	for _, pid := range ids {
		if m.playerRoom[pid] == r.ID {
			delete(m.playerRoom, pid)
		}
	}
	delete(m.rooms, r.ID)
	delete(m.committed, r.ID)
	m.mu.Unlock()

	m.log.WithField("room_id", r.ID).Info("room evicted")
}
