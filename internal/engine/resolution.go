package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/clanarena/draftauction/internal/models"
	"github.com/clanarena/draftauction/internal/store"
)

// SelectPlayer offers a player for bidding and opens a fresh deadline.
// Legal only while the auction is ONGOING with no round open.
func (e *Engine) SelectPlayer(ctx context.Context, auctionID, playerID uuid.UUID) (*RoundResult, error) {
	var result RoundResult
	err := e.atomic(ctx, auctionID, func(tx store.Tx) error {
		a, err := tx.Auction(ctx)
		if err != nil {
			return err
		}
		if a.Status != models.AuctionStatusOngoing {
			return ErrAuctionNotActive
		}
		if a.BiddingPhase != models.BiddingPhaseWaiting {
			return ErrRoundInProgress
		}

		player, err := tx.Participant(ctx, playerID)
		if err != nil {
			return ErrPlayerNotFound
		}
		if player.Role != models.RolePlayer {
			return ErrNotPlayer
		}
		if player.Assigned() {
			return ErrPlayerAlreadyAssigned
		}

		if player.BiddingOrder == nil {
			next, err := nextBiddingOrder(ctx, tx)
			if err != nil {
				return err
			}
			player.BiddingOrder = &next
			if err := tx.SaveParticipant(ctx, player); err != nil {
				return err
			}
		}

		end := e.clock.Now().Add(secondsToDuration(a.TurnTimeLimitSec))
		a.CurrentBiddingPlayer = &playerID
		a.CurrentBiddingEndTime = &end
		a.BiddingPhase = models.BiddingPhaseBidding
		a.TimerPaused = false
		a.PausedTimeRemaining = nil
		a.UpdatedAt = e.clock.Now()
		if err := tx.SaveAuction(ctx, a); err != nil {
			return err
		}

		result = RoundResult{PlayerID: playerID, EndTime: end}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("auction_id", auctionID.String()).
		Str("player_id", playerID.String()).
		Msg("player selected for bidding")
	return &result, nil
}

// ConfirmBid resolves the open round by assigning the offered player to the
// highest bidder. Rejected with ErrNothingToConfirm when no active bid
// exists (pass instead).
func (e *Engine) ConfirmBid(ctx context.Context, auctionID uuid.UUID) (*Sale, error) {
	var sale *Sale
	err := e.atomic(ctx, auctionID, func(tx store.Tx) error {
		a, err := tx.Auction(ctx)
		if err != nil {
			return err
		}
		if a.Status != models.AuctionStatusOngoing {
			return ErrAuctionNotActive
		}
		if a.BiddingPhase != models.BiddingPhaseBidding {
			return ErrNoActiveRound
		}
		sale, err = e.confirmCurrentRound(ctx, tx, a, false, "")
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("auction_id", auctionID.String()).
		Str("player_id", sale.PlayerID.String()).
		Str("captain_id", sale.CaptainID.String()).
		Int("amount", sale.Amount).
		Msg("bid confirmed")
	return sale, nil
}

// confirmCurrentRound applies confirm semantics inside an open transaction:
// assign the offered player to the highest bidder at that price, deactivate
// all remaining active bids on the player, phase -> SOLD, clear the
// deadline. The offered player stays recorded until nextPlayer advances.
func (e *Engine) confirmCurrentRound(ctx context.Context, tx store.Tx, a *models.Auction, auto bool, reason string) (*Sale, error) {
	playerID := *a.CurrentBiddingPlayer
	bids, err := tx.ActiveBidsForPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	winner := highestBid(bids)
	if winner == nil {
		return nil, ErrNothingToConfirm
	}

	player, err := tx.Participant(ctx, playerID)
	if err != nil {
		return nil, ErrPlayerNotFound
	}
	price := winner.Amount
	player.AssignedTeamCaptainID = &winner.BidderID
	player.SoldPrice = &price
	player.WasUnsold = false
	if err := tx.SaveParticipant(ctx, player); err != nil {
		return nil, err
	}

	if err := tx.DeactivateBidsForPlayer(ctx, playerID); err != nil {
		return nil, err
	}

	a.BiddingPhase = models.BiddingPhaseSold
	a.CurrentBiddingEndTime = nil
	a.TimerPaused = false
	a.PausedTimeRemaining = nil
	a.UpdatedAt = e.clock.Now()
	if err := tx.SaveAuction(ctx, a); err != nil {
		return nil, err
	}

	return &Sale{
		PlayerID:  playerID,
		CaptainID: winner.BidderID,
		Amount:    winner.Amount,
		Auto:      auto,
		Reason:    reason,
	}, nil
}

// PassPlayer returns the offered player to the unsold pool, deactivating all
// active bids on them. Legal only while a round is open.
func (e *Engine) PassPlayer(ctx context.Context, auctionID uuid.UUID) (uuid.UUID, error) {
	var passed uuid.UUID
	err := e.atomic(ctx, auctionID, func(tx store.Tx) error {
		a, err := tx.Auction(ctx)
		if err != nil {
			return err
		}
		if a.Status != models.AuctionStatusOngoing {
			return ErrAuctionNotActive
		}
		if a.BiddingPhase != models.BiddingPhaseBidding || a.CurrentBiddingPlayer == nil {
			return ErrNoActiveRound
		}
		passed = *a.CurrentBiddingPlayer
		return e.passCurrentRound(ctx, tx, a)
	})
	if err != nil {
		return uuid.Nil, err
	}

	log.Info().
		Str("auction_id", auctionID.String()).
		Str("player_id", passed.String()).
		Msg("player passed")
	return passed, nil
}

func (e *Engine) passCurrentRound(ctx context.Context, tx store.Tx, a *models.Auction) error {
	if err := tx.DeactivateBidsForPlayer(ctx, *a.CurrentBiddingPlayer); err != nil {
		return err
	}
	a.CurrentBiddingPlayer = nil
	a.CurrentBiddingEndTime = nil
	a.BiddingPhase = models.BiddingPhaseWaiting
	a.TimerPaused = false
	a.PausedTimeRemaining = nil
	a.UpdatedAt = e.clock.Now()
	return tx.SaveAuction(ctx, a)
}

// NextPlayer clears a resolved round, making the auction ready for the next
// selectPlayer. Legal only from SOLD.
func (e *Engine) NextPlayer(ctx context.Context, auctionID uuid.UUID) error {
	err := e.atomic(ctx, auctionID, func(tx store.Tx) error {
		a, err := tx.Auction(ctx)
		if err != nil {
			return err
		}
		if a.Status != models.AuctionStatusOngoing {
			return ErrAuctionNotActive
		}
		if a.BiddingPhase != models.BiddingPhaseSold {
			return ErrRoundNotSold
		}
		a.CurrentBiddingPlayer = nil
		a.BiddingPhase = models.BiddingPhaseWaiting
		a.UpdatedAt = e.clock.Now()
		return tx.SaveAuction(ctx, a)
	})
	if err != nil {
		return err
	}

	log.Info().Str("auction_id", auctionID.String()).Msg("ready for next player")
	return nil
}

// UndoSoldPlayer reverses a win: clears the assignment and zeroes the sold
// price. A manually assigned leftover carries no charge, so there is nothing
// to refund in either case - the ceiling never shrank.
func (e *Engine) UndoSoldPlayer(ctx context.Context, auctionID, playerID uuid.UUID) error {
	err := e.atomic(ctx, auctionID, func(tx store.Tx) error {
		player, err := tx.Participant(ctx, playerID)
		if err != nil {
			return ErrPlayerNotFound
		}
		if !player.Assigned() {
			return ErrPlayerNotAssigned
		}
		player.AssignedTeamCaptainID = nil
		player.SoldPrice = nil
		player.WasUnsold = false
		return tx.SaveParticipant(ctx, player)
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("auction_id", auctionID.String()).
		Str("player_id", playerID.String()).
		Msg("sold player undone")
	return nil
}

// ManualAssignPlayer hand-places an unsold player onto a captain's team at
// price 0. Legal only during the assignment phase.
func (e *Engine) ManualAssignPlayer(ctx context.Context, auctionID, playerID, captainID uuid.UUID) error {
	err := e.atomic(ctx, auctionID, func(tx store.Tx) error {
		a, err := tx.Auction(ctx)
		if err != nil {
			return err
		}
		if a.Status != models.AuctionStatusAssigning {
			return ErrAuctionNotActive
		}

		captain, err := tx.Participant(ctx, captainID)
		if err != nil {
			return ErrParticipantNotFound
		}
		if captain.Role != models.RoleCaptain {
			return ErrNotCaptain
		}

		player, err := tx.Participant(ctx, playerID)
		if err != nil {
			return ErrPlayerNotFound
		}
		if player.Role != models.RolePlayer {
			return ErrNotPlayer
		}
		if player.Assigned() {
			return ErrPlayerAlreadyAssigned
		}

		zero := 0
		player.AssignedTeamCaptainID = &captainID
		player.SoldPrice = &zero
		player.WasUnsold = true
		return tx.SaveParticipant(ctx, player)
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("auction_id", auctionID.String()).
		Str("player_id", playerID.String()).
		Str("captain_id", captainID.String()).
		Msg("player manually assigned")
	return nil
}

// ResolveTimeout applies timeout resolution when the round countdown hits
// zero: confirm the highest active bid if one exists, otherwise pass. An
// auction that was concurrently cancelled, paused, or resolved degrades to a
// no-op - no client is waiting on a timer-driven resolution to succeed.
func (e *Engine) ResolveTimeout(ctx context.Context, auctionID uuid.UUID) (*TimeoutOutcome, error) {
	var outcome TimeoutOutcome
	err := e.atomic(ctx, auctionID, func(tx store.Tx) error {
		a, err := tx.Auction(ctx)
		if err != nil {
			return err
		}
		if a.Status != models.AuctionStatusOngoing ||
			a.BiddingPhase != models.BiddingPhaseBidding ||
			a.CurrentBiddingPlayer == nil ||
			a.TimerPaused {
			outcome.Noop = true
			return nil
		}

		playerID := *a.CurrentBiddingPlayer
		sale, err := e.confirmCurrentRound(ctx, tx, a, true, "timeout")
		if err == nil {
			outcome.Sale = sale
			return nil
		}
		if !errors.Is(err, ErrNothingToConfirm) {
			return err
		}
		if err := e.passCurrentRound(ctx, tx, a); err != nil {
			return err
		}
		outcome.PassedID = &playerID
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAuctionNotFound) {
			return &TimeoutOutcome{Noop: true}, nil
		}
		return nil, err
	}

	log.Info().
		Str("auction_id", auctionID.String()).
		Bool("noop", outcome.Noop).
		Bool("sold", outcome.Sale != nil).
		Msg("timeout resolved")
	return &outcome, nil
}

func nextBiddingOrder(ctx context.Context, tx store.Tx) (int, error) {
	participants, err := tx.Participants(ctx)
	if err != nil {
		return 0, err
	}
	next := 1
	for _, p := range participants {
		if p.BiddingOrder != nil && *p.BiddingOrder >= next {
			next = *p.BiddingOrder + 1
		}
	}
	return next, nil
}
