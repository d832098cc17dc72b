// internal/hub/hub.go
package hub

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/starplay/starplay/internal/events"
)

// PlayerConn is a single player's live presence. The websocket handler owns
// the actual connection; the hub only pushes onto OutChan, which the handler's
// write pump drains. Cancel tears down the handler's goroutines.
type PlayerConn struct {
	PlayerID string
	OutChan  chan events.Event
	Cancel   func()

	closed bool
	mu     sync.Mutex
}

// NewPlayerConn builds a connection wrapper with a buffered outbound channel.
func NewPlayerConn(playerID string, cancel func()) *PlayerConn {
	return &PlayerConn{
		PlayerID: playerID,
		OutChan:  make(chan events.Event, 16),
		Cancel:   cancel,
	}
}

// write pushes an event non-blockingly. Returns false when the channel is
// closed or full, which the hub treats as an implicit disconnect.
func (c *PlayerConn) write(ev events.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.OutChan <- ev:
		return true
	default:
		return false
	}
}

// Send pushes an event onto the outbound channel, dropping it when the
// connection is closed or backed up. Used by the websocket handler for
// direct replies outside the hub's routing.
func (c *PlayerConn) Send(ev events.Event) {
	c.write(ev)
}

// Close closes the outbound channel exactly once and cancels the handler.
func (c *PlayerConn) Close() {
	c.mu.Lock()
	alreadyClosed := c.closed
	c.closed = true
	c.mu.Unlock()
	if alreadyClosed {
		return
	}
	close(c.OutChan)
	if c.Cancel != nil {
		c.Cancel()
	}
}

// Hub tracks live per-player connections. A player has at most one live
// connection; registering a new one replaces (and closes) the previous.
type Hub struct {
	mu    sync.Mutex
	conns map[string]*PlayerConn

	// OnSendFailure is invoked on its own goroutine when a send to a player
	// fails, so callers sending under a room lock cannot re-enter themselves.
	// The room layer uses it to apply the disconnect state update.
	OnSendFailure func(playerID string)

	log *logrus.Logger
}

func New(logger *logrus.Logger) *Hub {
	return &Hub{
		conns: make(map[string]*PlayerConn),
		log:   logger,
	}
}

// Register attaches a player's live connection, replacing any previous one
// (last-registered wins).
func (h *Hub) Register(conn *PlayerConn) {
	h.mu.Lock()
	old := h.conns[conn.PlayerID]
	h.conns[conn.PlayerID] = conn
	h.mu.Unlock()

	if old != nil && old != conn {
		h.log.WithField("player_id", conn.PlayerID).Info("replacing live connection")
		old.Close()
	}
}

// Unregister removes a player's connection if it is still the current one and
// reports whether it was. A stale connection replaced by a newer registration
// returns false; its teardown must not drive a disconnect of the live player.
func (h *Hub) Unregister(conn *PlayerConn) bool {
	h.mu.Lock()
	current := h.conns[conn.PlayerID] == conn
	if current {
		delete(h.conns, conn.PlayerID)
	}
	h.mu.Unlock()
	conn.Close()
	return current
}

// Connected reports whether the player has a live connection.
func (h *Hub) Connected(playerID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.conns[playerID]
	return ok
}

// SendDirect targets one player. Offline players are skipped silently; a
// failed send on a live connection is reported through OnSendFailure.
func (h *Hub) SendDirect(playerID string, ev events.Event) {
	h.mu.Lock()
	conn, ok := h.conns[playerID]
	h.mu.Unlock()
	if !ok {
		return
	}
	if !conn.write(ev) {
		h.failSend(playerID, conn)
	}
}

// Broadcast fans an event out to every listed player currently connected.
// Players without an active connection simply miss the live event and must
// reconcile via the status query.
func (h *Hub) Broadcast(playerIDs []string, ev events.Event) {
	for _, pid := range playerIDs {
		h.SendDirect(pid, ev)
	}
}

func (h *Hub) failSend(playerID string, conn *PlayerConn) {
	h.log.WithField("player_id", playerID).Warn("send failed, treating as disconnect")
	h.Unregister(conn)
	if h.OnSendFailure != nil {
		go h.OnSendFailure(playerID)
	}
}
