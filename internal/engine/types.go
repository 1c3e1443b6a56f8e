package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/clanarena/draftauction/internal/models"
)

// CreateAuctionRequest carries the fixed parameters of a new auction.
type CreateAuctionRequest struct {
	Title            string     `json:"title"`
	CreatorID        uuid.UUID  `json:"creator_id"`
	AccessCode       *string    `json:"access_code,omitempty"`
	StartingPoints   int        `json:"starting_points"`
	TurnTimeLimitSec int        `json:"turn_time_limit_sec"`
	TeamCount        int        `json:"team_count"`
	MaxParticipants  int        `json:"max_participants"`
}

// JoinRequest adds a user to an auction with a role fixed at join time.
type JoinRequest struct {
	AuctionID   uuid.UUID              `json:"auction_id"`
	UserID      uuid.UUID              `json:"user_id"`
	DisplayName string                 `json:"display_name"`
	Role        models.ParticipantRole `json:"role"`
	AccessCode  *string                `json:"access_code,omitempty"`
}

// Sale describes a resolved round: the player went to a captain's team.
type Sale struct {
	PlayerID  uuid.UUID `json:"player_id"`
	CaptainID uuid.UUID `json:"captain_id"`
	Amount    int       `json:"amount"`
	Auto      bool      `json:"auto"`
	Reason    string    `json:"reason,omitempty"`
}

// BidResult is returned by PlaceBid. If the auto-resolution policy confirmed
// the round in the same transaction, Sale is non-nil.
type BidResult struct {
	Bid     *models.Bid `json:"bid"`
	EndTime time.Time   `json:"end_time"`
	Sale    *Sale       `json:"sale,omitempty"`
}

// RoundResult is returned by SelectPlayer.
type RoundResult struct {
	PlayerID uuid.UUID `json:"player_id"`
	EndTime  time.Time `json:"end_time"`
}

// TimeoutOutcome is returned by ResolveTimeout. Exactly one of Sale or
// Passed is set unless the timeout degraded to a no-op.
type TimeoutOutcome struct {
	Sale     *Sale      `json:"sale,omitempty"`
	PassedID *uuid.UUID `json:"passed_player_id,omitempty"`
	Noop     bool       `json:"noop"`
}

// TimerChange is returned by the pause/resume operations.
type TimerChange struct {
	RemainingSec *int       `json:"remaining_sec,omitempty"`
	NewEndTime   *time.Time `json:"new_end_time,omitempty"`
}

// CompletionResult is returned by CompleteAuction.
type CompletionResult struct {
	AuctionID     uuid.UUID  `json:"auction_id"`
	LinkedScrimID *uuid.UUID `json:"linked_scrim_id,omitempty"`
}
