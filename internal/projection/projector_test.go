package projection

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/clanarena/draftauction/internal/models"
	"github.com/clanarena/draftauction/internal/store"
	"github.com/clanarena/draftauction/internal/store/memory"
)

type fixture struct {
	ctx       context.Context
	clock     *clockwork.FakeClock
	store     *memory.Store
	projector *Projector

	auction  *models.Auction
	captain1 uuid.UUID
	captain2 uuid.UUID
	player1  uuid.UUID
	player2  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		ctx:      context.Background(),
		clock:    clockwork.NewFakeClockAt(time.Date(2025, 7, 1, 18, 0, 0, 0, time.UTC)),
		store:    memory.New(),
		captain1: uuid.New(),
		captain2: uuid.New(),
		player1:  uuid.New(),
		player2:  uuid.New(),
	}
	f.projector = New(f.store, f.clock)

	f.auction = &models.Auction{
		ID:               uuid.New(),
		Title:            "projection draft",
		CreatorID:        uuid.New(),
		Status:           models.AuctionStatusOngoing,
		BiddingPhase:     models.BiddingPhaseWaiting,
		StartingPoints:   1000,
		TurnTimeLimitSec: 60,
		TeamCount:        2,
		MaxParticipants:  10,
		CreatedAt:        f.clock.Now(),
		UpdatedAt:        f.clock.Now(),
	}
	require.NoError(t, f.store.CreateAuction(f.ctx, f.auction))

	err := f.store.Atomic(f.ctx, f.auction.ID, func(tx store.Tx) error {
		add := func(userID uuid.UUID, name string, role models.ParticipantRole, points int) error {
			return tx.AddParticipant(f.ctx, &models.Participant{
				ID: uuid.New(), AuctionID: f.auction.ID, UserID: userID,
				DisplayName: name, Role: role, CurrentPoints: points,
				JoinedAt: f.clock.Now(),
			})
		}
		if err := add(f.captain1, "alpha", models.RoleCaptain, 1000); err != nil {
			return err
		}
		if err := add(f.captain2, "bravo", models.RoleCaptain, 1000); err != nil {
			return err
		}
		if err := add(f.player1, "charlie", models.RolePlayer, 0); err != nil {
			return err
		}
		return add(f.player2, "delta", models.RolePlayer, 0)
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) mutate(t *testing.T, fn func(tx store.Tx) error) {
	require.NoError(t, f.store.Atomic(f.ctx, f.auction.ID, fn))
}

func TestSnapshotBaseState(t *testing.T) {
	f := newFixture(t)

	state, err := f.projector.Snapshot(f.ctx, f.auction.ID)
	require.NoError(t, err)

	require.Equal(t, f.auction.ID, state.Auction.ID)
	require.Equal(t, models.AuctionStatusOngoing, state.Auction.Status)
	require.Len(t, state.Participants, 4)
	require.Len(t, state.Teams, 2)
	require.Len(t, state.UnsoldPlayers, 2)
	require.Nil(t, state.CurrentPlayer)
	require.Nil(t, state.HighestBid)
	require.Nil(t, state.TimeRemainingSec)
	require.Equal(t, f.clock.Now(), state.ServerTime)
}

func TestSnapshotOpenRound(t *testing.T) {
	f := newFixture(t)
	end := f.clock.Now().Add(45 * time.Second)

	f.mutate(t, func(tx store.Tx) error {
		a, _ := tx.Auction(f.ctx)
		a.BiddingPhase = models.BiddingPhaseBidding
		a.CurrentBiddingPlayer = &f.player1
		a.CurrentBiddingEndTime = &end
		if err := tx.SaveAuction(f.ctx, a); err != nil {
			return err
		}
		if err := tx.InsertBid(f.ctx, &models.Bid{
			ID: uuid.New(), AuctionID: f.auction.ID, BidderID: f.captain1,
			TargetPlayerID: f.player1, Amount: 100, IsActive: true,
		}); err != nil {
			return err
		}
		return tx.InsertBid(f.ctx, &models.Bid{
			ID: uuid.New(), AuctionID: f.auction.ID, BidderID: f.captain2,
			TargetPlayerID: f.player1, Amount: 150, IsActive: true,
		})
	})

	state, err := f.projector.Snapshot(f.ctx, f.auction.ID)
	require.NoError(t, err)

	require.NotNil(t, state.CurrentPlayer)
	require.Equal(t, f.player1, state.CurrentPlayer.UserID)

	require.NotNil(t, state.HighestBid)
	require.Equal(t, f.captain2, state.HighestBid.BidderID)
	require.Equal(t, "bravo", state.HighestBid.BidderName)
	require.Equal(t, 150, state.HighestBid.Amount)

	require.NotNil(t, state.TimeRemainingSec)
	require.Equal(t, 45, *state.TimeRemainingSec)

	// Active bids reduce each captain's spendable points.
	byCaptain := map[uuid.UUID]TeamView{}
	for _, team := range state.Teams {
		byCaptain[team.CaptainID] = team
	}
	require.Equal(t, 900, byCaptain[f.captain1].RemainingPoints)
	require.Equal(t, 850, byCaptain[f.captain2].RemainingPoints)
}

func TestSnapshotPausedTimer(t *testing.T) {
	f := newFixture(t)
	end := f.clock.Now().Add(45 * time.Second)
	remaining := 37

	f.mutate(t, func(tx store.Tx) error {
		a, _ := tx.Auction(f.ctx)
		a.BiddingPhase = models.BiddingPhaseBidding
		a.CurrentBiddingPlayer = &f.player1
		a.CurrentBiddingEndTime = &end
		a.TimerPaused = true
		a.PausedTimeRemaining = &remaining
		return tx.SaveAuction(f.ctx, a)
	})

	state, err := f.projector.Snapshot(f.ctx, f.auction.ID)
	require.NoError(t, err)
	require.True(t, state.Auction.TimerPaused)
	require.NotNil(t, state.TimeRemainingSec)
	require.Equal(t, 37, *state.TimeRemainingSec)
}

func TestSnapshotAssignedPlayers(t *testing.T) {
	f := newFixture(t)

	f.mutate(t, func(tx store.Tx) error {
		p, err := tx.Participant(f.ctx, f.player1)
		if err != nil {
			return err
		}
		price := 200
		p.AssignedTeamCaptainID = &f.captain1
		p.SoldPrice = &price
		return tx.SaveParticipant(f.ctx, p)
	})

	state, err := f.projector.Snapshot(f.ctx, f.auction.ID)
	require.NoError(t, err)

	require.Len(t, state.UnsoldPlayers, 1)
	require.Equal(t, f.player2, state.UnsoldPlayers[0].UserID)

	var team *TeamView
	for i := range state.Teams {
		if state.Teams[i].CaptainID == f.captain1 {
			team = &state.Teams[i]
		}
	}
	require.NotNil(t, team)
	require.Len(t, team.Members, 1)
	require.Equal(t, f.player1, team.Members[0].UserID)
	require.Equal(t, 200, team.Members[0].Price)
	require.False(t, team.Members[0].WasUnsold)
}

func TestSnapshotExpiredDeadlineClampsToZero(t *testing.T) {
	f := newFixture(t)
	end := f.clock.Now().Add(-5 * time.Second)

	f.mutate(t, func(tx store.Tx) error {
		a, _ := tx.Auction(f.ctx)
		a.BiddingPhase = models.BiddingPhaseBidding
		a.CurrentBiddingPlayer = &f.player1
		a.CurrentBiddingEndTime = &end
		return tx.SaveAuction(f.ctx, a)
	})

	state, err := f.projector.Snapshot(f.ctx, f.auction.ID)
	require.NoError(t, err)
	require.NotNil(t, state.TimeRemainingSec)
	require.Equal(t, 0, *state.TimeRemainingSec)
}

func TestSnapshotMissingAuction(t *testing.T) {
	f := newFixture(t)
	_, err := f.projector.Snapshot(f.ctx, uuid.New())
	require.ErrorIs(t, err, store.ErrNotFound)
}
