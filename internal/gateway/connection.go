package gateway

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// writeWait is how long a write may block before the connection is
	// considered dead.
	writeWait = 10 * time.Second

	// pongWait is how long we wait for a pong before dropping the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound command frames.
	maxMessageSize = 4096

	// sendBufferSize is the capacity of each connection's outbound queue.
	sendBufferSize = 256
)

// Connection is one websocket client inside an auction room.
type Connection struct {
	ID        string
	AuctionID uuid.UUID
	UserID    uuid.UUID

	ws      *websocket.Conn
	send    chan []byte
	manager *ConnectionManager
}

func newConnection(ws *websocket.Conn, auctionID, userID uuid.UUID, manager *ConnectionManager) *Connection {
	return &Connection{
		ID:        uuid.New().String(),
		AuctionID: auctionID,
		UserID:    userID,
		ws:        ws,
		send:      make(chan []byte, sendBufferSize),
		manager:   manager,
	}
}

// readPump reads command frames from the peer and hands them to the
// manager's command handler. It owns the unregister on exit.
func (c *Connection) readPump() {
	defer func() {
		c.manager.unregister <- c
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Warn().
					Err(err).
					Str("connection_id", c.ID).
					Str("auction_id", c.AuctionID.String()).
					Msg("websocket read error")
			}
			return
		}
		c.manager.handler.HandleCommand(c, message)
	}
}

// writePump drains the send queue to the peer and keeps the connection
// alive with periodic pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
