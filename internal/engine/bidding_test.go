package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/clanarena/draftauction/internal/models"
	"github.com/clanarena/draftauction/internal/store"
)

// seedActiveBid plants a standing bid directly in the store, simulating
// exposure left on another contested player.
func (s *EngineTestSuite) seedActiveBid(auctionID, bidderID, playerID uuid.UUID, amount int) {
	err := s.store.Atomic(s.ctx, auctionID, func(tx store.Tx) error {
		return tx.InsertBid(s.ctx, &models.Bid{
			ID:             uuid.New(),
			AuctionID:      auctionID,
			BidderID:       bidderID,
			TargetPlayerID: playerID,
			Amount:         amount,
			IsActive:       true,
			CreatedAt:      s.clock.Now(),
		})
	})
	s.Require().NoError(err)
}

func (s *EngineTestSuite) activeBidsFor(auctionID, playerID uuid.UUID) []*models.Bid {
	var bids []*models.Bid
	err := s.store.View(s.ctx, auctionID, func(tx store.Tx) error {
		var err error
		bids, err = tx.ActiveBidsForPlayer(s.ctx, playerID)
		return err
	})
	s.Require().NoError(err)
	return bids
}

func (s *EngineTestSuite) TestFirstBidMinimumIsOne() {
	a := s.startedAuction()
	_, err := s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)

	_, err = s.engine.PlaceBid(s.ctx, a.ID, s.captain1, s.player1, 0)
	s.ErrorIs(err, ErrBidTooLow)

	result, err := s.engine.PlaceBid(s.ctx, a.ID, s.captain1, s.player1, 1)
	s.Require().NoError(err)
	s.Equal(1, result.Bid.Amount)
}

func (s *EngineTestSuite) TestRaiseMustExceedHighest() {
	a := s.startedAuction()
	_, err := s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)

	_, err = s.engine.PlaceBid(s.ctx, a.ID, s.captain1, s.player1, 150)
	s.Require().NoError(err)

	_, err = s.engine.PlaceBid(s.ctx, a.ID, s.captain2, s.player1, 150)
	s.ErrorIs(err, ErrBidTooLow)

	_, err = s.engine.PlaceBid(s.ctx, a.ID, s.captain2, s.player1, 151)
	s.NoError(err)
}

func (s *EngineTestSuite) TestCommitmentCeiling() {
	a := s.startedAuction()

	// Captain one already carries 300 of exposure on another player.
	s.seedActiveBid(a.ID, s.captain1, s.player2, 300)

	_, err := s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)

	// 300 committed + 800 requested > 1000 ceiling.
	_, err = s.engine.PlaceBid(s.ctx, a.ID, s.captain1, s.player1, 800)
	s.ErrorIs(err, ErrBudgetExceeded)

	// 300 + 700 fits exactly.
	_, err = s.engine.PlaceBid(s.ctx, a.ID, s.captain1, s.player1, 700)
	s.NoError(err)
}

func (s *EngineTestSuite) TestOwnBidSupersededNotDoubleCounted() {
	a := s.startedAuction()
	_, err := s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)

	_, err = s.engine.PlaceBid(s.ctx, a.ID, s.captain1, s.player1, 600)
	s.Require().NoError(err)
	_, err = s.engine.PlaceBid(s.ctx, a.ID, s.captain2, s.player1, 700)
	s.Require().NoError(err)

	// Raising to 900 is fine: the prior 600 on this player is superseded,
	// not added on top.
	result, err := s.engine.PlaceBid(s.ctx, a.ID, s.captain1, s.player1, 900)
	s.Require().NoError(err)
	s.Equal(900, result.Bid.Amount)

	bids := s.activeBidsFor(a.ID, s.player1)
	s.Len(bids, 2)
	for _, b := range bids {
		if b.BidderID == s.captain1 {
			s.Equal(900, b.Amount)
		}
	}
}

func (s *EngineTestSuite) TestBidExtendsDeadline() {
	a := s.startedAuction()
	round, err := s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)
	s.Equal(s.clock.Now().Add(60*time.Second), round.EndTime)

	s.clock.Advance(30 * time.Second)

	result, err := s.engine.PlaceBid(s.ctx, a.ID, s.captain1, s.player1, 10)
	s.Require().NoError(err)
	s.Equal(s.clock.Now().Add(60*time.Second), result.EndTime)

	after := s.auction(a.ID)
	s.Require().NotNil(after.CurrentBiddingEndTime)
	s.Equal(result.EndTime, *after.CurrentBiddingEndTime)
}

func (s *EngineTestSuite) TestAutoConfirmWhenNoCompetitorCanRaise() {
	a := s.startedAuction()
	_, err := s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)

	// Captain two's full ceiling is 1000; a bid of 1000 leaves nothing to
	// raise with, so the round resolves inside the same transaction.
	result, err := s.engine.PlaceBid(s.ctx, a.ID, s.captain1, s.player1, 1000)
	s.Require().NoError(err)
	s.Require().NotNil(result.Sale)
	s.True(result.Sale.Auto)
	s.Equal(s.captain1, result.Sale.CaptainID)
	s.Equal(1000, result.Sale.Amount)

	after := s.auction(a.ID)
	s.Equal(models.BiddingPhaseSold, after.BiddingPhase)
	s.Nil(after.CurrentBiddingEndTime)
	s.Empty(s.activeBidsFor(a.ID, s.player1))

	sold := s.participant(a.ID, s.player1)
	s.Require().NotNil(sold.AssignedTeamCaptainID)
	s.Equal(s.captain1, *sold.AssignedTeamCaptainID)
}

func (s *EngineTestSuite) TestNoAutoConfirmWhileCompetitorCanRaise() {
	a := s.startedAuction()
	_, err := s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)

	result, err := s.engine.PlaceBid(s.ctx, a.ID, s.captain1, s.player1, 500)
	s.Require().NoError(err)
	s.Nil(result.Sale)
	s.Equal(models.BiddingPhaseBidding, s.auction(a.ID).BiddingPhase)
}

func (s *EngineTestSuite) TestAutoConfirmCountsCompetitorExposure() {
	a := s.startedAuction()

	// Captain two is carrying 950 on another player, leaving 50 spendable.
	s.seedActiveBid(a.ID, s.captain2, s.player2, 950)

	_, err := s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)

	result, err := s.engine.PlaceBid(s.ctx, a.ID, s.captain1, s.player1, 50)
	s.Require().NoError(err)
	s.Require().NotNil(result.Sale)
	s.Equal("no competitor can raise", result.Sale.Reason)
}

func (s *EngineTestSuite) TestBidRequiresOpenRoundOnPlayer() {
	a := s.startedAuction()

	_, err := s.engine.PlaceBid(s.ctx, a.ID, s.captain1, s.player1, 10)
	s.ErrorIs(err, ErrPlayerNotOnBlock)

	_, err = s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)

	_, err = s.engine.PlaceBid(s.ctx, a.ID, s.captain1, s.player2, 10)
	s.ErrorIs(err, ErrPlayerNotOnBlock)
}

func (s *EngineTestSuite) TestOnlyCaptainsBid() {
	a := s.startedAuction()
	_, err := s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)

	_, err = s.engine.PlaceBid(s.ctx, a.ID, s.player2, s.player1, 10)
	s.ErrorIs(err, ErrNotCaptain)

	_, err = s.engine.PlaceBid(s.ctx, a.ID, uuid.New(), s.player1, 10)
	s.ErrorIs(err, ErrParticipantNotFound)
}

func (s *EngineTestSuite) TestBidWhilePausedRejected() {
	a := s.startedAuction()
	_, err := s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)
	_, err = s.engine.PauseAuction(s.ctx, a.ID)
	s.Require().NoError(err)

	_, err = s.engine.PlaceBid(s.ctx, a.ID, s.captain1, s.player1, 10)
	s.ErrorIs(err, ErrAuctionNotActive)
}

func (s *EngineTestSuite) TestBidWhileTimerPausedRejected() {
	a := s.startedAuction()
	_, err := s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)
	s.clock.Advance(10 * time.Second)
	pause, err := s.engine.PauseTimer(s.ctx, a.ID)
	s.Require().NoError(err)

	_, err = s.engine.PlaceBid(s.ctx, a.ID, s.captain1, s.player1, 10)
	s.ErrorIs(err, ErrTimerPaused)

	// The banked remainder survives the rejected bid intact.
	after := s.auction(a.ID)
	s.True(after.TimerPaused)
	s.Require().NotNil(after.PausedTimeRemaining)
	s.Require().NotNil(pause.RemainingSec)
	s.Equal(*pause.RemainingSec, *after.PausedTimeRemaining)
}
