package gateway

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RoomEvent is the envelope for every message broadcast into an auction
// room (and for private events delivered to a single connection).
type RoomEvent struct {
	ID        string          `json:"id"`
	AuctionID string          `json:"auction_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// EventType names a discrete room event.
type EventType string

const (
	EventTypeRoomState              EventType = "room_state"
	EventTypeUserJoined             EventType = "user_joined"
	EventTypeUserLeft               EventType = "user_left"
	EventTypeParticipantJoined      EventType = "participant_joined"
	EventTypeAuctionStarted         EventType = "auction_started"
	EventTypeBidPlaced              EventType = "bid_placed"
	EventTypeBidConfirmed           EventType = "bid_confirmed"
	EventTypePlayerSelected         EventType = "player_selected"
	EventTypePlayerPassed           EventType = "player_passed"
	EventTypeTimerUpdate            EventType = "timer_update"
	EventTypeAuctionPaused          EventType = "auction_paused"
	EventTypeAuctionResumed         EventType = "auction_resumed"
	EventTypeTimerPaused            EventType = "timer_paused"
	EventTypeTimerResumed           EventType = "timer_resumed"
	EventTypePlayerUndone           EventType = "player_undone"
	EventTypeReadyForNextPlayer     EventType = "ready_for_next_player"
	EventTypeAssignmentPhaseStarted EventType = "assignment_phase_started"
	EventTypePlayerManuallyAssigned EventType = "player_manually_assigned"
	EventTypeAuctionCompleted       EventType = "auction_completed"
	EventTypeAuctionCancelled       EventType = "auction_cancelled"
	EventTypeChatMessage            EventType = "chat_message"
	EventTypeError                  EventType = "error"
)

// Event payloads.

type PresencePayload struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	Connections int       `json:"connections"`
}

type BidPlacedPayload struct {
	BidderID uuid.UUID `json:"bidder_id"`
	PlayerID uuid.UUID `json:"player_id"`
	Amount   int       `json:"amount"`
	EndTime  time.Time `json:"end_time"`
}

type BidConfirmedPayload struct {
	PlayerID  uuid.UUID `json:"player_id"`
	CaptainID uuid.UUID `json:"captain_id"`
	Amount    int       `json:"amount"`
	Auto      bool      `json:"auto"`
	Reason    string    `json:"reason,omitempty"`
}

type PlayerSelectedPayload struct {
	PlayerID uuid.UUID `json:"player_id"`
	EndTime  time.Time `json:"end_time"`
}

type PlayerPassedPayload struct {
	PlayerID uuid.UUID `json:"player_id"`
}

type TimerUpdatePayload struct {
	RemainingSec int       `json:"remaining_sec"`
	TickedAt     time.Time `json:"ticked_at"`
}

type TimerChangePayload struct {
	RemainingSec *int       `json:"remaining_sec,omitempty"`
	NewEndTime   *time.Time `json:"new_end_time,omitempty"`
}

type PlayerUndonePayload struct {
	PlayerID uuid.UUID `json:"player_id"`
}

type ManualAssignPayload struct {
	PlayerID  uuid.UUID `json:"player_id"`
	CaptainID uuid.UUID `json:"captain_id"`
}

type AuctionCompletedPayload struct {
	LinkedScrimID *uuid.UUID `json:"linked_scrim_id,omitempty"`
}

type ChatMessagePayload struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	Message     string    `json:"message"`
	SentAt      time.Time `json:"sent_at"`
}

// ErrorPayload is delivered privately to the command's initiator.
type ErrorPayload struct {
	Command string `json:"command"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// newEvent builds an envelope with a marshaled payload. Marshaling only
// fails for unsupported types, which the payload structs never contain.
func newEvent(auctionID uuid.UUID, eventType EventType, payload any, now time.Time) *RoomEvent {
	var data json.RawMessage
	if payload != nil {
		data, _ = json.Marshal(payload)
	}
	return &RoomEvent{
		ID:        uuid.New().String(),
		AuctionID: auctionID.String(),
		Type:      eventType,
		Timestamp: now,
		Data:      data,
	}
}
