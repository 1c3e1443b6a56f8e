package models

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantRole defines a user's role in one auction, fixed at join time.
type ParticipantRole string

const (
	RoleCaptain   ParticipantRole = "CAPTAIN"
	RolePlayer    ParticipantRole = "PLAYER"
	RoleSpectator ParticipantRole = "SPECTATOR"
)

// Participant represents one user's membership in one auction.
//
// CurrentPoints is a budget ceiling, not a running balance: it bounds the
// captain's active-bid commitment sum and never shrinks on wins.
type Participant struct {
	ID                    uuid.UUID       `json:"id"`
	AuctionID             uuid.UUID       `json:"auction_id"`
	UserID                uuid.UUID       `json:"user_id"`
	DisplayName           string          `json:"display_name"`
	Role                  ParticipantRole `json:"role"`
	CurrentPoints         int             `json:"current_points"`
	AssignedTeamCaptainID *uuid.UUID      `json:"assigned_team_captain_id,omitempty"`
	SoldPrice             *int            `json:"sold_price,omitempty"`
	WasUnsold             bool            `json:"was_unsold"`
	BiddingOrder          *int            `json:"bidding_order,omitempty"`
	JoinedAt              time.Time       `json:"joined_at"`
}

// Assigned reports whether the participant has been drafted onto a team.
func (p *Participant) Assigned() bool {
	return p.AssignedTeamCaptainID != nil
}
