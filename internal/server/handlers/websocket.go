// internal/server/handlers/websocket.go

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"

	"geofinder/internal/domain/session"
	sessionsvc "geofinder/internal/service/session"
)

// WebSocketClient represents a client following one session's events
type WebSocketClient struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	sessionID string
	sub       *nats.Subscription
	logger    *slog.Logger
}

// WebSocketConfig contains configuration for WebSocket connections
type WebSocketConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period
	PingPeriod time.Duration

	// Maximum message size allowed from peer
	MaxMessageSize int64
}

// DefaultWebSocketConfig returns the default WebSocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     (60 * time.Second * 9) / 10,
		MaxMessageSize: 4 * 1024,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SessionWebSocketHandler streams a session's events to a WebSocket client.
// Browsers cannot set headers on the upgrade request, so the token travels in the query.
func SessionWebSocketHandler(natsConn *nats.Conn, manager session.Manager, topic string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "id")

		if err := manager.VerifyToken(r.URL.Query().Get("token"), sessionID); err != nil {
			respondWithDomainError(w, "Failed to verify token", err)
			return
		}

		s, err := manager.GetSession(r.Context(), sessionID)
		if err != nil {
			respondWithDomainError(w, "Failed to get session", err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("failed to upgrade to websocket", "error", err)
			return
		}

		client := &WebSocketClient{
			conn:      conn,
			send:      make(chan []byte, 64),
			done:      make(chan struct{}),
			sessionID: sessionID,
			logger:    logger,
		}

		client.sub, err = natsConn.Subscribe(sessionsvc.Wildcard(topic, sessionID), func(msg *nats.Msg) {
			client.enqueue(msg.Data)
		})
		if err != nil {
			logger.Error("failed to subscribe to session events", "session_id", sessionID, "error", err)
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()

		snapshot, _ := json.Marshal(map[string]interface{}{
			"type":    "snapshot",
			"session": s,
			"time":    time.Now(),
		})
		client.enqueue(snapshot)

		logger.Debug("websocket connected", "session_id", sessionID)
	}
}

// enqueue hands a message to the write pump, dropping it when the client is too slow
func (c *WebSocketClient) enqueue(message []byte) {
	select {
	case <-c.done:
	case c.send <- message:
	default:
		c.logger.Warn("dropping websocket message for slow client", "session_id", c.sessionID)
	}
}

// readPump discards client messages and keeps the read deadline alive
func (c *WebSocketClient) readPump() {
	config := DefaultWebSocketConfig()
	defer c.closeConnection()

	c.conn.SetReadLimit(config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket error", "session_id", c.sessionID, "error", err)
			}
			return
		}
	}
}

// writePump pumps session events to the WebSocket connection
func (c *WebSocketClient) writePump() {
	config := DefaultWebSocketConfig()
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			if reason, ok := endsStream(message); ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// endsStream reports whether a message ends the session, with the close reason
func endsStream(message []byte) (string, bool) {
	var event session.Event
	if err := json.Unmarshal(message, &event); err != nil {
		return "", false
	}

	switch event.Type {
	case session.EventExpired:
		return "session expired", true
	case session.EventDeleted:
		return "session deleted", true
	}
	return "", false
}

// closeConnection unsubscribes and closes the connection once
func (c *WebSocketClient) closeConnection() {
	c.closeOnce.Do(func() {
		close(c.done)

		if c.sub != nil {
			c.sub.Unsubscribe()
		}
		c.conn.Close()

		c.logger.Debug("websocket closed", "session_id", c.sessionID)
	})
}
