package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/clanarena/draftauction/internal/models"
	"github.com/clanarena/draftauction/internal/store"
)

// PlaceBid validates and commits a single bid. The minimum raise, the
// commitment-ceiling check, the supersession of the bidder's prior bid, and
// the deadline extension all happen in one atomic unit of work, so two
// concurrent bids can never validate against a stale highest-bid snapshot.
//
// After the bid commits its effects, the auto-resolution policy runs in the
// same transaction: if no competitor can raise, the round is confirmed
// immediately and the result carries the sale.
func (e *Engine) PlaceBid(ctx context.Context, auctionID, bidderID, playerID uuid.UUID, amount int) (*BidResult, error) {
	var result BidResult
	err := e.atomic(ctx, auctionID, func(tx store.Tx) error {
		a, err := tx.Auction(ctx)
		if err != nil {
			return err
		}
		if a.Status != models.AuctionStatusOngoing {
			return ErrAuctionNotActive
		}
		if a.BiddingPhase != models.BiddingPhaseBidding || a.CurrentBiddingPlayer == nil || *a.CurrentBiddingPlayer != playerID {
			return ErrPlayerNotOnBlock
		}
		// A frozen countdown freezes the round: accepting a bid here would
		// rewrite the deadline behind the banked remainder.
		if a.TimerPaused {
			return ErrTimerPaused
		}

		bidder, err := tx.Participant(ctx, bidderID)
		if err != nil {
			return ErrParticipantNotFound
		}
		if bidder.Role != models.RoleCaptain {
			return ErrNotCaptain
		}

		playerBids, err := tx.ActiveBidsForPlayer(ctx, playerID)
		if err != nil {
			return err
		}
		minimum := 1
		if highest := highestBid(playerBids); highest != nil {
			minimum = highest.Amount + 1
		}
		if amount < minimum {
			return ErrBidTooLow
		}

		// Commitment check: the bidder's active exposure on all *other*
		// contested players plus this amount must fit under the ceiling.
		// The prior bid on this player is about to be superseded and does
		// not count.
		committed, err := e.commitmentExcluding(ctx, tx, bidderID, playerID)
		if err != nil {
			return err
		}
		if committed+amount > bidder.CurrentPoints {
			return ErrBudgetExceeded
		}

		for _, b := range playerBids {
			if b.BidderID == bidderID {
				if err := tx.DeactivateBid(ctx, b.ID); err != nil {
					return err
				}
			}
		}

		bid := &models.Bid{
			ID:             uuid.New(),
			AuctionID:      auctionID,
			BidderID:       bidderID,
			TargetPlayerID: playerID,
			Amount:         amount,
			IsActive:       true,
			CreatedAt:      e.clock.Now(),
		}
		if err := tx.InsertBid(ctx, bid); err != nil {
			return err
		}

		end := e.clock.Now().Add(secondsToDuration(a.TurnTimeLimitSec))
		a.CurrentBiddingEndTime = &end
		a.UpdatedAt = e.clock.Now()
		if err := tx.SaveAuction(ctx, a); err != nil {
			return err
		}

		result = BidResult{Bid: bid, EndTime: end}

		unbeatable, err := e.noCompetitorCanRaise(ctx, tx, bidderID, playerID, amount)
		if err != nil {
			return err
		}
		if unbeatable {
			sale, err := e.confirmCurrentRound(ctx, tx, a, true, "no competitor can raise")
			if err != nil {
				return err
			}
			result.Sale = sale
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("auction_id", auctionID.String()).
		Str("bidder_id", bidderID.String()).
		Str("player_id", playerID.String()).
		Int("amount", amount).
		Bool("auto_confirmed", result.Sale != nil).
		Msg("bid placed")
	return &result, nil
}

// commitmentExcluding sums a bidder's active bid amounts across every
// contested player except the excluded one.
func (e *Engine) commitmentExcluding(ctx context.Context, tx store.Tx, bidderID, excludePlayerID uuid.UUID) (int, error) {
	bids, err := tx.ActiveBidsByBidder(ctx, bidderID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, b := range bids {
		if b.TargetPlayerID != excludePlayerID {
			total += b.Amount
		}
	}
	return total, nil
}

// noCompetitorCanRaise implements the early-confirm policy: true when every
// other captain's spendable budget (ceiling minus commitments on other
// players) is below the minimum raise over the current highest bid.
func (e *Engine) noCompetitorCanRaise(ctx context.Context, tx store.Tx, leaderID, playerID uuid.UUID, highestAmount int) (bool, error) {
	participants, err := tx.Participants(ctx)
	if err != nil {
		return false, err
	}
	threshold := highestAmount + 1
	for _, p := range participants {
		if p.Role != models.RoleCaptain || p.UserID == leaderID {
			continue
		}
		committed, err := e.commitmentExcluding(ctx, tx, p.UserID, playerID)
		if err != nil {
			return false, err
		}
		if p.CurrentPoints-committed >= threshold {
			return false, nil
		}
	}
	return true, nil
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

func secondsToDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
