package engine

import (
	"github.com/google/uuid"

	"github.com/clanarena/draftauction/internal/models"
)

func (s *EngineTestSuite) TestSelectPlayerOpensRound() {
	a := s.startedAuction()

	round, err := s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)
	s.Equal(s.player1, round.PlayerID)

	after := s.auction(a.ID)
	s.Equal(models.BiddingPhaseBidding, after.BiddingPhase)
	s.Require().NotNil(after.CurrentBiddingPlayer)
	s.Equal(s.player1, *after.CurrentBiddingPlayer)

	offered := s.participant(a.ID, s.player1)
	s.Require().NotNil(offered.BiddingOrder)
	s.Equal(1, *offered.BiddingOrder)

	_, err = s.engine.SelectPlayer(s.ctx, a.ID, s.player2)
	s.ErrorIs(err, ErrRoundInProgress)
}

func (s *EngineTestSuite) TestSelectPlayerValidatesTarget() {
	a := s.startedAuction()

	_, err := s.engine.SelectPlayer(s.ctx, a.ID, s.captain1)
	s.ErrorIs(err, ErrNotPlayer)

	_, err = s.engine.SelectPlayer(s.ctx, a.ID, uuid.New())
	s.ErrorIs(err, ErrPlayerNotFound)
}

func (s *EngineTestSuite) TestSelectAssignedPlayerRejected() {
	a := s.startedAuction()
	_, err := s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)
	_, err = s.engine.PlaceBid(s.ctx, a.ID, s.captain1, s.player1, 100)
	s.Require().NoError(err)
	_, err = s.engine.ConfirmBid(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.engine.NextPlayer(s.ctx, a.ID))

	_, err = s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.ErrorIs(err, ErrPlayerAlreadyAssigned)
}

func (s *EngineTestSuite) TestBiddingOrderAdvancesAndSticks() {
	a := s.startedAuction()

	_, err := s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)
	_, err = s.engine.PassPlayer(s.ctx, a.ID)
	s.Require().NoError(err)

	_, err = s.engine.SelectPlayer(s.ctx, a.ID, s.player2)
	s.Require().NoError(err)
	s.Equal(2, *s.participant(a.ID, s.player2).BiddingOrder)
	_, err = s.engine.PassPlayer(s.ctx, a.ID)
	s.Require().NoError(err)

	// Re-offering a passed player keeps the order assigned the first time.
	_, err = s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)
	s.Equal(1, *s.participant(a.ID, s.player1).BiddingOrder)
}

func (s *EngineTestSuite) TestConfirmAssignsHighestBidder() {
	a := s.startedAuction()
	_, err := s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)

	_, err = s.engine.PlaceBid(s.ctx, a.ID, s.captain1, s.player1, 100)
	s.Require().NoError(err)
	_, err = s.engine.PlaceBid(s.ctx, a.ID, s.captain2, s.player1, 150)
	s.Require().NoError(err)
	_, err = s.engine.PlaceBid(s.ctx, a.ID, s.captain1, s.player1, 200)
	s.Require().NoError(err)

	sale, err := s.engine.ConfirmBid(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(s.captain1, sale.CaptainID)
	s.Equal(200, sale.Amount)
	s.False(sale.Auto)

	sold := s.participant(a.ID, s.player1)
	s.Require().NotNil(sold.AssignedTeamCaptainID)
	s.Equal(s.captain1, *sold.AssignedTeamCaptainID)
	s.Require().NotNil(sold.SoldPrice)
	s.Equal(200, *sold.SoldPrice)
	s.False(sold.WasUnsold)

	s.Empty(s.activeBidsFor(a.ID, s.player1))

	after := s.auction(a.ID)
	s.Equal(models.BiddingPhaseSold, after.BiddingPhase)
	s.Nil(after.CurrentBiddingEndTime)
	// The sold player stays on the block until nextPlayer advances.
	s.Require().NotNil(after.CurrentBiddingPlayer)
	s.Equal(s.player1, *after.CurrentBiddingPlayer)
}

func (s *EngineTestSuite) TestConfirmWithoutBidsRejected() {
	a := s.startedAuction()
	_, err := s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)

	_, err = s.engine.ConfirmBid(s.ctx, a.ID)
	s.ErrorIs(err, ErrNothingToConfirm)

	// The rejected confirm must leave the round untouched.
	after := s.auction(a.ID)
	s.Equal(models.BiddingPhaseBidding, after.BiddingPhase)
	s.NotNil(after.CurrentBiddingPlayer)
	s.NotNil(after.CurrentBiddingEndTime)
}

func (s *EngineTestSuite) TestConfirmWithoutRoundRejected() {
	a := s.startedAuction()
	_, err := s.engine.ConfirmBid(s.ctx, a.ID)
	s.ErrorIs(err, ErrNoActiveRound)
}

func (s *EngineTestSuite) TestPassReturnsPlayerToPool() {
	a := s.startedAuction()
	_, err := s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)
	_, err = s.engine.PlaceBid(s.ctx, a.ID, s.captain1, s.player1, 100)
	s.Require().NoError(err)

	passed, err := s.engine.PassPlayer(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(s.player1, passed)

	after := s.auction(a.ID)
	s.Equal(models.BiddingPhaseWaiting, after.BiddingPhase)
	s.Nil(after.CurrentBiddingPlayer)
	s.Nil(after.CurrentBiddingEndTime)
	s.Empty(s.activeBidsFor(a.ID, s.player1))
	s.False(s.participant(a.ID, s.player1).Assigned())
}

func (s *EngineTestSuite) TestNextPlayerOnlyAfterSold() {
	a := s.startedAuction()
	_, err := s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)

	err = s.engine.NextPlayer(s.ctx, a.ID)
	s.ErrorIs(err, ErrRoundNotSold)

	_, err = s.engine.PlaceBid(s.ctx, a.ID, s.captain1, s.player1, 100)
	s.Require().NoError(err)
	_, err = s.engine.ConfirmBid(s.ctx, a.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.engine.NextPlayer(s.ctx, a.ID))

	after := s.auction(a.ID)
	s.Equal(models.BiddingPhaseWaiting, after.BiddingPhase)
	s.Nil(after.CurrentBiddingPlayer)
}

func (s *EngineTestSuite) TestUndoSoldPlayer() {
	a := s.startedAuction()
	_, err := s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)
	_, err = s.engine.PlaceBid(s.ctx, a.ID, s.captain1, s.player1, 100)
	s.Require().NoError(err)
	_, err = s.engine.ConfirmBid(s.ctx, a.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.engine.UndoSoldPlayer(s.ctx, a.ID, s.player1))

	undone := s.participant(a.ID, s.player1)
	s.False(undone.Assigned())
	s.Nil(undone.SoldPrice)
	s.False(undone.WasUnsold)

	err = s.engine.UndoSoldPlayer(s.ctx, a.ID, s.player1)
	s.ErrorIs(err, ErrPlayerNotAssigned)
}

func (s *EngineTestSuite) TestManualAssignOnlyInAssignmentPhase() {
	a := s.startedAuction()

	err := s.engine.ManualAssignPlayer(s.ctx, a.ID, s.player1, s.captain1)
	s.ErrorIs(err, ErrAuctionNotActive)

	s.Require().NoError(s.engine.EnterAssignmentPhase(s.ctx, a.ID))

	s.Require().NoError(s.engine.ManualAssignPlayer(s.ctx, a.ID, s.player1, s.captain1))

	assigned := s.participant(a.ID, s.player1)
	s.Require().NotNil(assigned.AssignedTeamCaptainID)
	s.Equal(s.captain1, *assigned.AssignedTeamCaptainID)
	s.Require().NotNil(assigned.SoldPrice)
	s.Equal(0, *assigned.SoldPrice)
	s.True(assigned.WasUnsold)

	err = s.engine.ManualAssignPlayer(s.ctx, a.ID, s.player1, s.captain2)
	s.ErrorIs(err, ErrPlayerAlreadyAssigned)

	err = s.engine.ManualAssignPlayer(s.ctx, a.ID, s.player2, s.player3)
	s.ErrorIs(err, ErrNotCaptain)
}

func (s *EngineTestSuite) TestTimeoutSellsToHighestBidder() {
	a := s.startedAuction()
	_, err := s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)
	_, err = s.engine.PlaceBid(s.ctx, a.ID, s.captain2, s.player1, 120)
	s.Require().NoError(err)

	outcome, err := s.engine.ResolveTimeout(s.ctx, a.ID)
	s.Require().NoError(err)
	s.False(outcome.Noop)
	s.Require().NotNil(outcome.Sale)
	s.Equal(s.captain2, outcome.Sale.CaptainID)
	s.True(outcome.Sale.Auto)
	s.Equal("timeout", outcome.Sale.Reason)
}

func (s *EngineTestSuite) TestTimeoutWithoutBidsPasses() {
	a := s.startedAuction()
	_, err := s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)

	outcome, err := s.engine.ResolveTimeout(s.ctx, a.ID)
	s.Require().NoError(err)
	s.False(outcome.Noop)
	s.Nil(outcome.Sale)
	s.Require().NotNil(outcome.PassedID)
	s.Equal(s.player1, *outcome.PassedID)

	after := s.auction(a.ID)
	s.Equal(models.BiddingPhaseWaiting, after.BiddingPhase)
	s.Nil(after.CurrentBiddingPlayer)
}

func (s *EngineTestSuite) TestTimeoutDegradesToNoop() {
	a := s.startedAuction()

	// No round open.
	outcome, err := s.engine.ResolveTimeout(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(outcome.Noop)

	// Timer paused mid-round.
	_, err = s.engine.SelectPlayer(s.ctx, a.ID, s.player1)
	s.Require().NoError(err)
	_, err = s.engine.PauseTimer(s.ctx, a.ID)
	s.Require().NoError(err)

	outcome, err = s.engine.ResolveTimeout(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(outcome.Noop)

	// Auction gone entirely.
	outcome, err = s.engine.ResolveTimeout(s.ctx, uuid.New())
	s.Require().NoError(err)
	s.True(outcome.Noop)
}
