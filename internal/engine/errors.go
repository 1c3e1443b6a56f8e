package engine

import "errors"

// Every precondition violation is a distinct, non-retryable rejection
// returned to the initiating caller. Callers discriminate with errors.Is.

// Not-found.
var (
	ErrAuctionNotFound     = errors.New("auction not found")
	ErrParticipantNotFound = errors.New("participant not found in this auction")
	ErrPlayerNotFound      = errors.New("player not found in this auction")
)

// Validation.
var (
	ErrNotCaptain         = errors.New("bidder is not a captain in this auction")
	ErrNotPlayer          = errors.New("participant is not a player")
	ErrInvalidAccessCode  = errors.New("invalid access code")
	ErrAlreadyJoined      = errors.New("user already joined this auction")
	ErrAuctionFull        = errors.New("auction is at maximum capacity")
	ErrTeamsFull          = errors.New("all captain slots are taken")
	ErrInvalidRole        = errors.New("invalid participant role")
)

// State-conflict.
var (
	ErrAuctionNotActive      = errors.New("auction is not ongoing")
	ErrInvalidTransition     = errors.New("status transition not allowed")
	ErrRoundInProgress       = errors.New("a bidding round is already open")
	ErrNoActiveRound         = errors.New("no bidding round is open")
	ErrRoundNotSold          = errors.New("current round is not resolved")
	ErrPlayerNotOnBlock      = errors.New("player is not the one currently offered")
	ErrPlayerAlreadyAssigned = errors.New("player is already assigned to a team")
	ErrPlayerNotAssigned     = errors.New("player is not assigned to a team")
	ErrNothingToConfirm      = errors.New("no active bid to confirm; pass instead")
	ErrTimerPaused           = errors.New("round timer is paused")
	ErrTimerAlreadyPaused    = errors.New("timer is already paused")
	ErrTimerNotPaused        = errors.New("timer is not paused")
	ErrNoCaptains            = errors.New("auction has no captains")
)

// Budget-violation.
var (
	ErrBidTooLow      = errors.New("bid is below the minimum raise")
	ErrBudgetExceeded = errors.New("bid exceeds the captain's commitment ceiling")
)
