package models

import (
	"time"

	"github.com/google/uuid"
)

// Bid represents one captain's standing offer on one player.
//
// For a given (auction, player) at most one active bid per bidder exists at
// any time; a new bid from the same bidder deactivates the previous one.
type Bid struct {
	ID             uuid.UUID `json:"id"`
	AuctionID      uuid.UUID `json:"auction_id"`
	BidderID       uuid.UUID `json:"bidder_id"`
	TargetPlayerID uuid.UUID `json:"target_player_id"`
	Amount         int       `json:"amount"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}
