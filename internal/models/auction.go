package models

import (
	"time"

	"github.com/google/uuid"
)

// AuctionStatus defines the lifecycle status of an auction.
type AuctionStatus string

const (
	AuctionStatusPending   AuctionStatus = "PENDING"
	AuctionStatusOngoing   AuctionStatus = "ONGOING"
	AuctionStatusPaused    AuctionStatus = "PAUSED"
	AuctionStatusAssigning AuctionStatus = "ASSIGNING"
	AuctionStatusCompleted AuctionStatus = "COMPLETED"
	AuctionStatusCancelled AuctionStatus = "CANCELLED"
)

// BiddingPhase defines the per-round phase of an ongoing auction.
type BiddingPhase string

const (
	BiddingPhaseWaiting BiddingPhase = "WAITING"
	BiddingPhaseBidding BiddingPhase = "BIDDING"
	BiddingPhaseSold    BiddingPhase = "SOLD"
)

// Auction represents one live draft session.
//
// Invariants: BiddingPhase != WAITING implies CurrentBiddingPlayerID != nil;
// Status == PAUSED with a round active at pause time implies
// PausedTimeRemaining != nil.
type Auction struct {
	ID                    uuid.UUID     `json:"id"`
	Title                 string        `json:"title"`
	CreatorID             uuid.UUID     `json:"creator_id"`
	AccessCode            *string       `json:"access_code,omitempty"`
	Status                AuctionStatus `json:"status"`
	BiddingPhase          BiddingPhase  `json:"bidding_phase"`
	StartingPoints        int           `json:"starting_points"`
	TurnTimeLimitSec      int           `json:"turn_time_limit_sec"`
	TeamCount             int           `json:"team_count"`
	MaxParticipants       int           `json:"max_participants"`
	CurrentBiddingPlayer  *uuid.UUID    `json:"current_bidding_player_id,omitempty"`
	CurrentBiddingEndTime *time.Time    `json:"current_bidding_end_time,omitempty"`
	TimerPaused           bool          `json:"timer_paused"`
	PausedTimeRemaining   *int          `json:"paused_time_remaining,omitempty"`
	LinkedScrimID         *uuid.UUID    `json:"linked_scrim_id,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}
