// Package relay fans room events out across gateway instances over NATS,
// so clients connected to different processes see the same room traffic.
package relay

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/clanarena/draftauction/internal/gateway"
)

const subjectPrefix = "auction.events."

// Broadcaster delivers relayed events to local room connections.
type Broadcaster interface {
	Broadcast(auctionID uuid.UUID, event *gateway.RoomEvent)
}

// envelope wraps a room event with its origin instance so a relay never
// re-delivers its own traffic.
type envelope struct {
	Origin string             `json:"origin"`
	Event  *gateway.RoomEvent `json:"event"`
}

// Relay publishes local room events to NATS and injects remote ones
// into the local connection manager.
type Relay struct {
	conn        *nats.Conn
	instanceID  string
	broadcaster Broadcaster
	sub         *nats.Subscription
}

// New connects to NATS and subscribes to every auction's event subject.
func New(url string, broadcaster Broadcaster) (*Relay, error) {
	conn, err := nats.Connect(url,
		nats.Name("draftauction-gateway"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	r := &Relay{
		conn:        conn,
		instanceID:  uuid.New().String(),
		broadcaster: broadcaster,
	}

	sub, err := conn.Subscribe(subjectPrefix+"*", r.handleMessage)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe to auction events: %w", err)
	}
	r.sub = sub

	log.Info().Str("instance_id", r.instanceID).Str("url", url).Msg("event relay connected")
	return r, nil
}

// Publish implements gateway.EventPublisher.
func (r *Relay) Publish(auctionID uuid.UUID, event *gateway.RoomEvent) error {
	payload, err := json.Marshal(envelope{Origin: r.instanceID, Event: event})
	if err != nil {
		return fmt.Errorf("marshal relay envelope: %w", err)
	}
	return r.conn.Publish(subjectPrefix+auctionID.String(), payload)
}

func (r *Relay) handleMessage(msg *nats.Msg) {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		log.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping malformed relay message")
		return
	}
	if env.Origin == r.instanceID || env.Event == nil {
		return
	}
	auctionID, err := uuid.Parse(env.Event.AuctionID)
	if err != nil {
		log.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping relay message with bad auction id")
		return
	}
	r.broadcaster.Broadcast(auctionID, env.Event)
}

// Close drains the subscription and closes the connection.
func (r *Relay) Close() {
	if r.sub != nil {
		r.sub.Unsubscribe()
	}
	r.conn.Drain()
}
