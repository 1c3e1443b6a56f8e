package gateway

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CommandHandler consumes inbound command frames from connections.
type CommandHandler interface {
	HandleCommand(c *Connection, raw []byte)
}

// PresenceFunc is invoked after a connection joins or leaves a room.
// connections is the user's remaining connection count in that room.
type PresenceFunc func(auctionID, userID uuid.UUID, joined bool, connections int)

// broadcastMessage targets a whole room, or a single connection when
// connID is set.
type broadcastMessage struct {
	auctionID uuid.UUID
	connID    string
	payload   []byte
}

// ConnectionManager tracks websocket connections per auction room and
// fans events out to them. All room-map access happens on the Run
// goroutine; Broadcast and SendTo are safe from anywhere.
type ConnectionManager struct {
	rooms map[uuid.UUID]map[*Connection]bool

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan broadcastMessage

	handler  CommandHandler
	presence PresenceFunc

	mu    sync.RWMutex
	stats map[uuid.UUID]int
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		rooms:      make(map[uuid.UUID]map[*Connection]bool),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan broadcastMessage, 256),
		stats:      make(map[uuid.UUID]int),
	}
}

// SetHandler wires the inbound command sink. Must be called before Run.
func (cm *ConnectionManager) SetHandler(h CommandHandler) {
	cm.handler = h
}

// SetPresenceFunc wires the join/leave hook. Must be called before Run.
func (cm *ConnectionManager) SetPresenceFunc(fn PresenceFunc) {
	cm.presence = fn
}

// Run processes registration and broadcast traffic until ctx is done.
func (cm *ConnectionManager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			cm.closeAll()
			return

		case conn := <-cm.register:
			cm.addToRoom(conn)

		case conn := <-cm.unregister:
			cm.removeFromRoom(conn)

		case msg := <-cm.broadcast:
			cm.deliver(msg)
		}
	}
}

// Broadcast fans an event out to every connection in the auction's room.
func (cm *ConnectionManager) Broadcast(auctionID uuid.UUID, event *RoomEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(event.Type)).Msg("failed to marshal room event")
		return
	}
	cm.broadcast <- broadcastMessage{auctionID: auctionID, payload: payload}
}

// SendTo delivers an event to a single connection in the room.
func (cm *ConnectionManager) SendTo(conn *Connection, event *RoomEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(event.Type)).Msg("failed to marshal room event")
		return
	}
	cm.broadcast <- broadcastMessage{auctionID: conn.AuctionID, connID: conn.ID, payload: payload}
}

// RoomSize reports the current connection count for an auction room.
func (cm *ConnectionManager) RoomSize(auctionID uuid.UUID) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.stats[auctionID]
}

// Stats returns a snapshot of connection counts per room.
func (cm *ConnectionManager) Stats() map[string]int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	out := make(map[string]int, len(cm.stats))
	for id, n := range cm.stats {
		out[id.String()] = n
	}
	return out
}

func (cm *ConnectionManager) addToRoom(conn *Connection) {
	room, ok := cm.rooms[conn.AuctionID]
	if !ok {
		room = make(map[*Connection]bool)
		cm.rooms[conn.AuctionID] = room
	}
	room[conn] = true

	cm.mu.Lock()
	cm.stats[conn.AuctionID] = len(room)
	cm.mu.Unlock()

	log.Info().
		Str("connection_id", conn.ID).
		Str("auction_id", conn.AuctionID.String()).
		Str("user_id", conn.UserID.String()).
		Int("room_size", len(room)).
		Msg("connection joined room")

	if cm.presence != nil {
		cm.presence(conn.AuctionID, conn.UserID, true, cm.userConnections(room, conn.UserID))
	}
}

func (cm *ConnectionManager) removeFromRoom(conn *Connection) {
	room, ok := cm.rooms[conn.AuctionID]
	if !ok || !room[conn] {
		return
	}
	delete(room, conn)
	close(conn.send)

	if len(room) == 0 {
		delete(cm.rooms, conn.AuctionID)
	}

	cm.mu.Lock()
	if len(room) == 0 {
		delete(cm.stats, conn.AuctionID)
	} else {
		cm.stats[conn.AuctionID] = len(room)
	}
	cm.mu.Unlock()

	log.Info().
		Str("connection_id", conn.ID).
		Str("auction_id", conn.AuctionID.String()).
		Str("user_id", conn.UserID.String()).
		Int("room_size", len(room)).
		Msg("connection left room")

	if cm.presence != nil {
		cm.presence(conn.AuctionID, conn.UserID, false, cm.userConnections(room, conn.UserID))
	}
}

func (cm *ConnectionManager) deliver(msg broadcastMessage) {
	room, ok := cm.rooms[msg.auctionID]
	if !ok {
		return
	}
	var slow []*Connection
	for conn := range room {
		if msg.connID != "" && conn.ID != msg.connID {
			continue
		}
		select {
		case conn.send <- msg.payload:
		default:
			// Slow consumer; drop the connection rather than stall the room.
			log.Warn().
				Str("connection_id", conn.ID).
				Str("auction_id", msg.auctionID.String()).
				Msg("send buffer full, dropping connection")
			slow = append(slow, conn)
		}
	}
	// Dropping through removeFromRoom keeps stats current and lets the room
	// see the departure.
	for _, conn := range slow {
		cm.removeFromRoom(conn)
	}
}

func (cm *ConnectionManager) closeAll() {
	for auctionID, room := range cm.rooms {
		for conn := range room {
			close(conn.send)
		}
		delete(cm.rooms, auctionID)
	}
	cm.mu.Lock()
	cm.stats = make(map[uuid.UUID]int)
	cm.mu.Unlock()
}

func (cm *ConnectionManager) userConnections(room map[*Connection]bool, userID uuid.UUID) int {
	n := 0
	for conn := range room {
		if conn.UserID == userID {
			n++
		}
	}
	return n
}
