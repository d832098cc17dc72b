// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/starplay/starplay/internal/events"
	"github.com/starplay/starplay/internal/hub"
	"github.com/starplay/starplay/internal/middleware"
	"github.com/starplay/starplay/internal/models"
	"github.com/starplay/starplay/internal/room"
)

// RoomWSHandler upgrades the HTTP connection to the persistent game socket.
// It authenticates the player, registers the live connection with the hub and
// runs the read loop until the client goes away. All game actions arrive on
// this socket; all broadcasts leave through it.
func RoomWSHandler(logger *logrus.Logger, m *room.Manager, h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"starplay"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "starplay" {
			c.Close(BadSubprotocolError, "client must speak the starplay subprotocol")
			return
		}

		playerID, err := authenticatedPlayerID(r)
		if err != nil {
			logger.Warnf("websocket auth failed: %v", err)
			c.Close(InvalidAuthTokenError, "authentication failed")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		conn := hub.NewPlayerConn(playerID, cancel)
		h.Register(conn)
		m.ReconnectPlayer(playerID)

		go writePump(ctx, c, conn, logger)

		readPump(ctx, c, conn, m, logger)

		// A reconnect replaces this conn in the hub first; in that case the
		// old handler's teardown must not mark the live player disconnected.
		if h.Unregister(conn) {
			m.DisconnectPlayer(playerID)
		}
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, nil)
	}
}

// writePump drains the player's outbound channel onto the wire. Exits when
// the channel closes or a write fails.
func writePump(ctx context.Context, c *websocket.Conn, conn *hub.PlayerConn, logger *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-conn.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Warnf("failed to marshal event for player %s: %v", conn.PlayerID, err)
				continue
			}
			if err := c.Write(ctx, websocket.MessageText, data); err != nil {
				logger.Warnf("write error for player %s: %v", conn.PlayerID, err)
				return
			}
		}
	}
}

// readPump parses inbound client messages and routes them to the room
// manager. Blocks until the connection closes or the context is cancelled.
func readPump(ctx context.Context, c *websocket.Conn, conn *hub.PlayerConn, m *room.Manager, logger *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				logger.Infof("websocket closed normally for player %s", conn.PlayerID)
			} else if !strings.Contains(err.Error(), "context canceled") {
				logger.Warnf("read error for player %s: %v (close status: %d)", conn.PlayerID, err, closeStatus)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var packet models.ClientMessage
		if err := json.Unmarshal(msg, &packet); err != nil {
			logger.Warnf("invalid json from player %s: %v", conn.PlayerID, err)
			conn.Send(events.ErrorEvent("invalid JSON format"))
			continue
		}

		handleClientMessage(ctx, conn, m, packet, logger)
	}
}

// handleClientMessage dispatches one inbound action. Unknown actions and
// rejected game actions come back as direct error events; nothing about the
// room changes on a rejection.
func handleClientMessage(ctx context.Context, conn *hub.PlayerConn, m *room.Manager, packet models.ClientMessage, logger *logrus.Logger) {
	switch packet.Action {
	case models.ActionPing:
		conn.Send(events.Event{Type: events.EventPong})
	case models.ActionReady:
		if _, err := m.ReadyPlayer(ctx, conn.PlayerID); err != nil {
			conn.Send(events.ErrorEvent(err.Error()))
		}
	case models.ActionDiceAction:
		if err := m.HandleDiceAction(ctx, conn.PlayerID, packet.DiceAction); err != nil {
			conn.Send(events.ErrorEvent(err.Error()))
		}
	case models.ActionRPSChoice:
		if err := m.HandleRPSChoice(ctx, conn.PlayerID, packet.Choice); err != nil {
			conn.Send(events.ErrorEvent(err.Error()))
		}
	default:
		logger.Warnf("unknown action %q from player %s", packet.Action, conn.PlayerID)
		conn.Send(events.ErrorEvent("unknown action"))
	}
}
