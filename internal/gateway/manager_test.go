package gateway

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type presenceRecord struct {
	userID      uuid.UUID
	joined      bool
	connections int
}

func newRoomConn(auctionID, userID uuid.UUID, buffer int) *Connection {
	return &Connection{
		ID:        uuid.New().String(),
		AuctionID: auctionID,
		UserID:    userID,
		send:      make(chan []byte, buffer),
	}
}

func TestSlowConsumerDropUpdatesStatsAndPresence(t *testing.T) {
	cm := NewConnectionManager()
	auctionID := uuid.New()

	var presences []presenceRecord
	cm.SetPresenceFunc(func(_ uuid.UUID, userID uuid.UUID, joined bool, connections int) {
		presences = append(presences, presenceRecord{userID: userID, joined: joined, connections: connections})
	})

	healthy := newRoomConn(auctionID, uuid.New(), 4)
	slow := newRoomConn(auctionID, uuid.New(), 1)
	cm.addToRoom(healthy)
	cm.addToRoom(slow)
	require.Equal(t, 2, cm.RoomSize(auctionID))
	require.Len(t, presences, 2)

	// Fill the slow client's queue so the next delivery overflows it.
	slow.send <- []byte(`{"type":"timer_update"}`)

	payload := []byte(`{"type":"chat_message"}`)
	cm.deliver(broadcastMessage{auctionID: auctionID, payload: payload})

	require.Equal(t, 1, cm.RoomSize(auctionID))
	require.Equal(t, payload, <-healthy.send)

	// The drop closes the slow client's queue and announces the departure.
	<-slow.send
	_, open := <-slow.send
	require.False(t, open)

	last := presences[len(presences)-1]
	require.False(t, last.joined)
	require.Equal(t, slow.UserID, last.userID)
	require.Equal(t, 0, last.connections)
}

func TestSendToTargetsSingleConnection(t *testing.T) {
	cm := NewConnectionManager()
	auctionID := uuid.New()

	first := newRoomConn(auctionID, uuid.New(), 4)
	second := newRoomConn(auctionID, uuid.New(), 4)
	cm.addToRoom(first)
	cm.addToRoom(second)

	payload := []byte(`{"type":"error"}`)
	cm.deliver(broadcastMessage{auctionID: auctionID, connID: first.ID, payload: payload})

	require.Equal(t, payload, <-first.send)
	require.Empty(t, second.send)
}
