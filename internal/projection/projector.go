// Package projection builds the client-facing read model of an auction
// room. The snapshot is recomputed fresh from durable state on every
// broadcast; clients never assemble state incrementally.
package projection

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/clanarena/draftauction/internal/models"
	"github.com/clanarena/draftauction/internal/store"
)

// RoomState is the single source of truth handed to clients.
type RoomState struct {
	Auction          AuctionSummary    `json:"auction"`
	Participants     []ParticipantView `json:"participants"`
	CurrentPlayer    *PlayerView       `json:"current_player,omitempty"`
	HighestBid       *BidView          `json:"highest_bid,omitempty"`
	Teams            []TeamView        `json:"teams"`
	UnsoldPlayers    []PlayerView      `json:"unsold_players"`
	ServerTime       time.Time         `json:"server_time"`
	TimeRemainingSec *int              `json:"time_remaining_sec,omitempty"`
}

type AuctionSummary struct {
	ID                  uuid.UUID            `json:"id"`
	Title               string               `json:"title"`
	CreatorID           uuid.UUID            `json:"creator_id"`
	Status              models.AuctionStatus `json:"status"`
	BiddingPhase        models.BiddingPhase  `json:"bidding_phase"`
	StartingPoints      int                  `json:"starting_points"`
	TurnTimeLimitSec    int                  `json:"turn_time_limit_sec"`
	TeamCount           int                  `json:"team_count"`
	MaxParticipants     int                  `json:"max_participants"`
	TimerPaused         bool                 `json:"timer_paused"`
	PausedTimeRemaining *int                 `json:"paused_time_remaining,omitempty"`
	LinkedScrimID       *uuid.UUID           `json:"linked_scrim_id,omitempty"`
}

type ParticipantView struct {
	UserID      uuid.UUID              `json:"user_id"`
	DisplayName string                 `json:"display_name"`
	Role        models.ParticipantRole `json:"role"`
}

type PlayerView struct {
	UserID       uuid.UUID `json:"user_id"`
	DisplayName  string    `json:"display_name"`
	BiddingOrder *int      `json:"bidding_order,omitempty"`
}

type BidView struct {
	BidderID    uuid.UUID `json:"bidder_id"`
	BidderName  string    `json:"bidder_name"`
	Amount      int       `json:"amount"`
}

type DraftedView struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Price       int       `json:"price"`
	WasUnsold   bool      `json:"was_unsold"`
}

type TeamView struct {
	CaptainID       uuid.UUID     `json:"captain_id"`
	CaptainName     string        `json:"captain_name"`
	RemainingPoints int           `json:"remaining_points"`
	Members         []DraftedView `json:"members"`
}

// Projector computes RoomState snapshots. It only reads.
type Projector struct {
	store store.Store
	clock clockwork.Clock
}

func New(st store.Store, clock clockwork.Clock) *Projector {
	return &Projector{store: st, clock: clock}
}

// Snapshot builds the read model for one auction.
func (p *Projector) Snapshot(ctx context.Context, auctionID uuid.UUID) (*RoomState, error) {
	var state *RoomState
	err := p.store.View(ctx, auctionID, func(tx store.Tx) error {
		a, err := tx.Auction(ctx)
		if err != nil {
			return err
		}
		participants, err := tx.Participants(ctx)
		if err != nil {
			return err
		}

		now := p.clock.Now()
		state = &RoomState{
			Auction: AuctionSummary{
				ID:                  a.ID,
				Title:               a.Title,
				CreatorID:           a.CreatorID,
				Status:              a.Status,
				BiddingPhase:        a.BiddingPhase,
				StartingPoints:      a.StartingPoints,
				TurnTimeLimitSec:    a.TurnTimeLimitSec,
				TeamCount:           a.TeamCount,
				MaxParticipants:     a.MaxParticipants,
				TimerPaused:         a.TimerPaused,
				PausedTimeRemaining: a.PausedTimeRemaining,
				LinkedScrimID:       a.LinkedScrimID,
			},
			ServerTime: now,
		}

		byUser := make(map[uuid.UUID]*models.Participant, len(participants))
		for _, part := range participants {
			byUser[part.UserID] = part
			state.Participants = append(state.Participants, ParticipantView{
				UserID:      part.UserID,
				DisplayName: part.DisplayName,
				Role:        part.Role,
			})
		}

		if a.CurrentBiddingPlayer != nil {
			if player, ok := byUser[*a.CurrentBiddingPlayer]; ok {
				state.CurrentPlayer = &PlayerView{
					UserID:       player.UserID,
					DisplayName:  player.DisplayName,
					BiddingOrder: player.BiddingOrder,
				}
			}
			bids, err := tx.ActiveBidsForPlayer(ctx, *a.CurrentBiddingPlayer)
			if err != nil {
				return err
			}
			if highest := highestBid(bids); highest != nil {
				view := &BidView{BidderID: highest.BidderID, Amount: highest.Amount}
				if bidder, ok := byUser[highest.BidderID]; ok {
					view.BidderName = bidder.DisplayName
				}
				state.HighestBid = view
			}
		}

		if a.CurrentBiddingEndTime != nil && !a.TimerPaused {
			remaining := int(a.CurrentBiddingEndTime.Sub(now).Seconds())
			if remaining < 0 {
				remaining = 0
			}
			state.TimeRemainingSec = &remaining
		} else if a.TimerPaused && a.PausedTimeRemaining != nil {
			state.TimeRemainingSec = a.PausedTimeRemaining
		}

		state.Teams, err = buildTeams(ctx, tx, participants)
		if err != nil {
			return err
		}

		for _, part := range participants {
			if part.Role == models.RolePlayer && !part.Assigned() {
				state.UnsoldPlayers = append(state.UnsoldPlayers, PlayerView{
					UserID:       part.UserID,
					DisplayName:  part.DisplayName,
					BiddingOrder: part.BiddingOrder,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func buildTeams(ctx context.Context, tx store.Tx, participants []*models.Participant) ([]TeamView, error) {
	var teams []TeamView
	for _, captain := range participants {
		if captain.Role != models.RoleCaptain {
			continue
		}
		bids, err := tx.ActiveBidsByBidder(ctx, captain.UserID)
		if err != nil {
			return nil, err
		}
		committed := 0
		for _, b := range bids {
			committed += b.Amount
		}

		team := TeamView{
			CaptainID:       captain.UserID,
			CaptainName:     captain.DisplayName,
			RemainingPoints: captain.CurrentPoints - committed,
		}
		for _, member := range participants {
			if member.Role != models.RolePlayer || member.AssignedTeamCaptainID == nil || *member.AssignedTeamCaptainID != captain.UserID {
				continue
			}
			price := 0
			if member.SoldPrice != nil {
				price = *member.SoldPrice
			}
			team.Members = append(team.Members, DraftedView{
				UserID:      member.UserID,
				DisplayName: member.DisplayName,
				Price:       price,
				WasUnsold:   member.WasUnsold,
			})
		}
		sort.Slice(team.Members, func(i, j int) bool {
			return team.Members[i].DisplayName < team.Members[j].DisplayName
		})
		teams = append(teams, team)
	}
	return teams, nil
}

func highestBid(bids []*models.Bid) *models.Bid {
	var best *models.Bid
	for _, b := range bids {
		if best == nil || b.Amount > best.Amount {
			best = b
		}
	}
	return best
}
