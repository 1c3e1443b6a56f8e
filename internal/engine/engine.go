// Package engine implements the live auction draft engine: the bidding and
// resolution state machine, the point-budget validation algorithm, and the
// auto-resolution policy. Every operation executes as one atomic unit of
// work against the store; the store serializes writers per auction.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/clanarena/draftauction/internal/models"
	"github.com/clanarena/draftauction/internal/scrim"
	"github.com/clanarena/draftauction/internal/store"
)

// Engine coordinates all auction mutations. It owns no state of its own;
// the store is the single source of truth.
type Engine struct {
	store store.Store
	clock clockwork.Clock
	scrim scrim.Creator
}

func New(st store.Store, clock clockwork.Clock, creator scrim.Creator) *Engine {
	return &Engine{
		store: st,
		clock: clock,
		scrim: creator,
	}
}

// statusTransitions lists the legal auction status transitions. Same-status
// updates are treated as no-ops and allowed.
var statusTransitions = map[models.AuctionStatus][]models.AuctionStatus{
	models.AuctionStatusPending:   {models.AuctionStatusOngoing, models.AuctionStatusCancelled},
	models.AuctionStatusOngoing:   {models.AuctionStatusPaused, models.AuctionStatusAssigning, models.AuctionStatusCompleted, models.AuctionStatusCancelled},
	models.AuctionStatusPaused:    {models.AuctionStatusOngoing, models.AuctionStatusCancelled},
	models.AuctionStatusAssigning: {models.AuctionStatusCompleted, models.AuctionStatusCancelled},
	models.AuctionStatusCompleted: {},
	models.AuctionStatusCancelled: {},
}

func validateTransition(from, to models.AuctionStatus) error {
	if from == to {
		return nil
	}
	for _, allowed := range statusTransitions[from] {
		if to == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// CreateAuction creates a new auction in PENDING status.
func (e *Engine) CreateAuction(ctx context.Context, req CreateAuctionRequest) (*models.Auction, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if req.StartingPoints <= 0 {
		return nil, fmt.Errorf("starting_points must be greater than 0")
	}
	if req.TurnTimeLimitSec <= 0 {
		return nil, fmt.Errorf("turn_time_limit_sec must be greater than 0")
	}
	if req.TeamCount <= 0 {
		return nil, fmt.Errorf("team_count must be greater than 0")
	}
	if req.MaxParticipants <= 0 {
		return nil, fmt.Errorf("max_participants must be greater than 0")
	}

	now := e.clock.Now()
	a := &models.Auction{
		ID:               uuid.New(),
		Title:            req.Title,
		CreatorID:        req.CreatorID,
		AccessCode:       req.AccessCode,
		Status:           models.AuctionStatusPending,
		BiddingPhase:     models.BiddingPhaseWaiting,
		StartingPoints:   req.StartingPoints,
		TurnTimeLimitSec: req.TurnTimeLimitSec,
		TeamCount:        req.TeamCount,
		MaxParticipants:  req.MaxParticipants,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := e.store.CreateAuction(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}

	log.Info().
		Str("auction_id", a.ID.String()).
		Str("creator_id", a.CreatorID.String()).
		Int("starting_points", a.StartingPoints).
		Msg("auction created")
	return a, nil
}

// JoinAuction adds a user to an auction. Captains and players may join only
// before the auction starts; spectators may join any time pre-completion.
func (e *Engine) JoinAuction(ctx context.Context, req JoinRequest) (*models.Participant, error) {
	var joined *models.Participant
	err := e.atomic(ctx, req.AuctionID, func(tx store.Tx) error {
		a, err := tx.Auction(ctx)
		if err != nil {
			return err
		}

		switch req.Role {
		case models.RoleCaptain, models.RolePlayer:
			if a.Status != models.AuctionStatusPending {
				return ErrAuctionNotActive
			}
		case models.RoleSpectator:
			if a.Status == models.AuctionStatusCompleted || a.Status == models.AuctionStatusCancelled {
				return ErrAuctionNotActive
			}
		default:
			return ErrInvalidRole
		}

		if a.AccessCode != nil {
			if req.AccessCode == nil || *req.AccessCode != *a.AccessCode {
				return ErrInvalidAccessCode
			}
		}

		if _, err := tx.Participant(ctx, req.UserID); err == nil {
			return ErrAlreadyJoined
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		all, err := tx.Participants(ctx)
		if err != nil {
			return err
		}
		if len(all) >= a.MaxParticipants {
			return ErrAuctionFull
		}
		if req.Role == models.RoleCaptain {
			captains := 0
			for _, p := range all {
				if p.Role == models.RoleCaptain {
					captains++
				}
			}
			if captains >= a.TeamCount {
				return ErrTeamsFull
			}
		}

		p := &models.Participant{
			ID:          uuid.New(),
			AuctionID:   req.AuctionID,
			UserID:      req.UserID,
			DisplayName: req.DisplayName,
			Role:        req.Role,
			JoinedAt:    e.clock.Now(),
		}
		if req.Role == models.RoleCaptain {
			p.CurrentPoints = a.StartingPoints
		}
		if err := tx.AddParticipant(ctx, p); err != nil {
			return err
		}
		joined = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("user_id", req.UserID.String()).
		Str("role", string(req.Role)).
		Msg("participant joined")
	return joined, nil
}

// StartAuction moves a pending auction to ONGOING with an empty round.
func (e *Engine) StartAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	var started *models.Auction
	err := e.atomic(ctx, auctionID, func(tx store.Tx) error {
		a, err := tx.Auction(ctx)
		if err != nil {
			return err
		}
		if err := validateTransition(a.Status, models.AuctionStatusOngoing); err != nil {
			return err
		}
		all, err := tx.Participants(ctx)
		if err != nil {
			return err
		}
		captains := 0
		for _, p := range all {
			if p.Role == models.RoleCaptain {
				captains++
			}
		}
		if captains == 0 {
			return ErrNoCaptains
		}

		a.Status = models.AuctionStatusOngoing
		a.BiddingPhase = models.BiddingPhaseWaiting
		a.UpdatedAt = e.clock.Now()
		if err := tx.SaveAuction(ctx, a); err != nil {
			return err
		}
		started = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("auction_id", auctionID.String()).Msg("auction started")
	return started, nil
}

// PauseAuction freezes an ongoing auction. If a round is active its
// remaining seconds are banked on the record so a later resume (or a process
// restart) can restore the countdown.
func (e *Engine) PauseAuction(ctx context.Context, auctionID uuid.UUID) (*TimerChange, error) {
	var change TimerChange
	err := e.atomic(ctx, auctionID, func(tx store.Tx) error {
		a, err := tx.Auction(ctx)
		if err != nil {
			return err
		}
		if err := validateTransition(a.Status, models.AuctionStatusPaused); err != nil {
			return err
		}
		a.Status = models.AuctionStatusPaused
		e.bankRemaining(a, &change)
		a.UpdatedAt = e.clock.Now()
		return tx.SaveAuction(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("auction_id", auctionID.String()).Msg("auction paused")
	return &change, nil
}

// ResumeAuction restarts a paused auction. A banked countdown resumes from
// the remembered remainder, not from a full turn.
func (e *Engine) ResumeAuction(ctx context.Context, auctionID uuid.UUID) (*TimerChange, error) {
	var change TimerChange
	err := e.atomic(ctx, auctionID, func(tx store.Tx) error {
		a, err := tx.Auction(ctx)
		if err != nil {
			return err
		}
		if err := validateTransition(a.Status, models.AuctionStatusOngoing); err != nil {
			return err
		}
		a.Status = models.AuctionStatusOngoing
		e.restoreRemaining(a, &change)
		a.UpdatedAt = e.clock.Now()
		return tx.SaveAuction(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("auction_id", auctionID.String()).Msg("auction resumed")
	return &change, nil
}

// PauseTimer freezes the round countdown without pausing the auction.
func (e *Engine) PauseTimer(ctx context.Context, auctionID uuid.UUID) (*TimerChange, error) {
	var change TimerChange
	err := e.atomic(ctx, auctionID, func(tx store.Tx) error {
		a, err := tx.Auction(ctx)
		if err != nil {
			return err
		}
		if a.Status != models.AuctionStatusOngoing {
			return ErrAuctionNotActive
		}
		if a.BiddingPhase != models.BiddingPhaseBidding || a.CurrentBiddingEndTime == nil {
			return ErrNoActiveRound
		}
		if a.TimerPaused {
			return ErrTimerAlreadyPaused
		}
		e.bankRemaining(a, &change)
		a.UpdatedAt = e.clock.Now()
		return tx.SaveAuction(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("auction_id", auctionID.String()).Msg("timer paused")
	return &change, nil
}

// ResumeTimer restarts a paused round countdown from the banked remainder.
func (e *Engine) ResumeTimer(ctx context.Context, auctionID uuid.UUID) (*TimerChange, error) {
	var change TimerChange
	err := e.atomic(ctx, auctionID, func(tx store.Tx) error {
		a, err := tx.Auction(ctx)
		if err != nil {
			return err
		}
		if a.Status != models.AuctionStatusOngoing {
			return ErrAuctionNotActive
		}
		if !a.TimerPaused {
			return ErrTimerNotPaused
		}
		e.restoreRemaining(a, &change)
		a.UpdatedAt = e.clock.Now()
		return tx.SaveAuction(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("auction_id", auctionID.String()).Msg("timer resumed")
	return &change, nil
}

// CancelAuction cancels an auction from any pre-completed state.
func (e *Engine) CancelAuction(ctx context.Context, auctionID uuid.UUID) error {
	err := e.atomic(ctx, auctionID, func(tx store.Tx) error {
		a, err := tx.Auction(ctx)
		if err != nil {
			return err
		}
		if err := validateTransition(a.Status, models.AuctionStatusCancelled); err != nil {
			return err
		}
		// An interrupted round must not leave live exposure behind.
		if a.CurrentBiddingPlayer != nil {
			if err := tx.DeactivateBidsForPlayer(ctx, *a.CurrentBiddingPlayer); err != nil {
				return err
			}
		}
		a.Status = models.AuctionStatusCancelled
		a.BiddingPhase = models.BiddingPhaseWaiting
		a.CurrentBiddingPlayer = nil
		a.CurrentBiddingEndTime = nil
		a.TimerPaused = false
		a.PausedTimeRemaining = nil
		a.UpdatedAt = e.clock.Now()
		return tx.SaveAuction(ctx, a)
	})
	if err != nil {
		return err
	}

	log.Info().Str("auction_id", auctionID.String()).Msg("auction cancelled")
	return nil
}

// EnterAssignmentPhase ends live bidding; unsold players may now be hand-
// placed onto teams at price 0.
func (e *Engine) EnterAssignmentPhase(ctx context.Context, auctionID uuid.UUID) error {
	err := e.atomic(ctx, auctionID, func(tx store.Tx) error {
		a, err := tx.Auction(ctx)
		if err != nil {
			return err
		}
		if a.Status != models.AuctionStatusOngoing {
			return ErrAuctionNotActive
		}
		if a.BiddingPhase == models.BiddingPhaseBidding {
			return ErrRoundInProgress
		}
		a.Status = models.AuctionStatusAssigning
		a.BiddingPhase = models.BiddingPhaseWaiting
		a.CurrentBiddingPlayer = nil
		a.CurrentBiddingEndTime = nil
		a.UpdatedAt = e.clock.Now()
		return tx.SaveAuction(ctx, a)
	})
	if err != nil {
		return err
	}

	log.Info().Str("auction_id", auctionID.String()).Msg("assignment phase started")
	return nil
}

// CompleteAuction finalizes the auction and hands the completed roster to
// the external scrim collaborator. Scrim creation happens after commit; a
// failure there leaves the auction completed with no linked scrim, and the
// command can be re-issued (same-status transitions are no-ops) to retry.
func (e *Engine) CompleteAuction(ctx context.Context, auctionID uuid.UUID) (*CompletionResult, error) {
	var (
		roster  scrim.Roster
		already *uuid.UUID
	)
	err := e.atomic(ctx, auctionID, func(tx store.Tx) error {
		a, err := tx.Auction(ctx)
		if err != nil {
			return err
		}
		if err := validateTransition(a.Status, models.AuctionStatusCompleted); err != nil {
			return err
		}
		if a.CurrentBiddingPlayer != nil {
			if err := tx.DeactivateBidsForPlayer(ctx, *a.CurrentBiddingPlayer); err != nil {
				return err
			}
		}
		already = a.LinkedScrimID
		a.Status = models.AuctionStatusCompleted
		a.BiddingPhase = models.BiddingPhaseWaiting
		a.CurrentBiddingPlayer = nil
		a.CurrentBiddingEndTime = nil
		a.UpdatedAt = e.clock.Now()
		if err := tx.SaveAuction(ctx, a); err != nil {
			return err
		}

		all, err := tx.Participants(ctx)
		if err != nil {
			return err
		}
		roster = buildRoster(a, all)
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &CompletionResult{AuctionID: auctionID, LinkedScrimID: already}
	if already == nil && e.scrim != nil {
		scrimID, err := e.scrim.CreateFromRoster(ctx, roster)
		if err != nil {
			log.Warn().Err(err).Str("auction_id", auctionID.String()).Msg("scrim creation failed; auction completed without linked scrim")
			return result, nil
		}
		err = e.atomic(ctx, auctionID, func(tx store.Tx) error {
			a, err := tx.Auction(ctx)
			if err != nil {
				return err
			}
			a.LinkedScrimID = &scrimID
			a.UpdatedAt = e.clock.Now()
			return tx.SaveAuction(ctx, a)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to store linked scrim: %w", err)
		}
		result.LinkedScrimID = &scrimID
	}

	log.Info().Str("auction_id", auctionID.String()).Msg("auction completed")
	return result, nil
}

// IsCreator reports whether userID created the auction. The gateway uses it
// to authorize admin-only commands.
func (e *Engine) IsCreator(ctx context.Context, auctionID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := e.store.View(ctx, auctionID, func(tx store.Tx) error {
		a, err := tx.Auction(ctx)
		if err != nil {
			return err
		}
		ok = a.CreatorID == userID
		return nil
	})
	if err != nil {
		return false, e.mapStoreErr(err)
	}
	return ok, nil
}

// bankRemaining freezes the running countdown onto the auction record.
func (e *Engine) bankRemaining(a *models.Auction, change *TimerChange) {
	if a.CurrentBiddingEndTime == nil || a.TimerPaused {
		return
	}
	remaining := int(a.CurrentBiddingEndTime.Sub(e.clock.Now()).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	a.TimerPaused = true
	a.PausedTimeRemaining = &remaining
	change.RemainingSec = &remaining
}

// restoreRemaining rebuilds the deadline from the banked remainder.
func (e *Engine) restoreRemaining(a *models.Auction, change *TimerChange) {
	if !a.TimerPaused || a.PausedTimeRemaining == nil {
		return
	}
	end := e.clock.Now().Add(secondsToDuration(*a.PausedTimeRemaining))
	a.CurrentBiddingEndTime = &end
	a.TimerPaused = false
	a.PausedTimeRemaining = nil
	change.NewEndTime = &end
}

func buildRoster(a *models.Auction, participants []*models.Participant) scrim.Roster {
	teams := make(map[uuid.UUID]*scrim.Team)
	order := make([]uuid.UUID, 0)
	for _, p := range participants {
		if p.Role != models.RoleCaptain {
			continue
		}
		teams[p.UserID] = &scrim.Team{CaptainID: p.UserID, CaptainName: p.DisplayName}
		order = append(order, p.UserID)
	}
	for _, p := range participants {
		if p.Role != models.RolePlayer || p.AssignedTeamCaptainID == nil {
			continue
		}
		team, ok := teams[*p.AssignedTeamCaptainID]
		if !ok {
			continue
		}
		price := 0
		if p.SoldPrice != nil {
			price = *p.SoldPrice
		}
		team.Members = append(team.Members, scrim.Member{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Price:       price,
			WasUnsold:   p.WasUnsold,
		})
	}

	roster := scrim.Roster{AuctionID: a.ID, Title: a.Title}
	for _, captainID := range order {
		roster.Teams = append(roster.Teams, *teams[captainID])
	}
	return roster
}

// atomic wraps store.Atomic, translating store-level not-found into the
// engine's error taxonomy.
func (e *Engine) atomic(ctx context.Context, auctionID uuid.UUID, fn func(tx store.Tx) error) error {
	return e.mapStoreErr(e.store.Atomic(ctx, auctionID, fn))
}

func (e *Engine) mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrAuctionNotFound
	}
	return err
}
