package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clanarena/draftauction/internal/models"
)

// ErrNotFound is returned when an auction, participant, or bid does not exist.
var ErrNotFound = errors.New("not found")

// Tx exposes the records of one auction inside an atomic unit of work.
// All reads observe the transaction's snapshot; all writes are applied
// together on commit or discarded on rollback.
type Tx interface {
	// Auction returns the auction the transaction is scoped to.
	Auction(ctx context.Context) (*models.Auction, error)
	SaveAuction(ctx context.Context, a *models.Auction) error

	Participant(ctx context.Context, userID uuid.UUID) (*models.Participant, error)
	Participants(ctx context.Context) ([]*models.Participant, error)
	AddParticipant(ctx context.Context, p *models.Participant) error
	SaveParticipant(ctx context.Context, p *models.Participant) error

	ActiveBidsForPlayer(ctx context.Context, playerID uuid.UUID) ([]*models.Bid, error)
	ActiveBidsByBidder(ctx context.Context, bidderID uuid.UUID) ([]*models.Bid, error)
	InsertBid(ctx context.Context, b *models.Bid) error
	DeactivateBid(ctx context.Context, bidID uuid.UUID) error
	DeactivateBidsForPlayer(ctx context.Context, playerID uuid.UUID) error
}

// Store is the persistence boundary for auctions.
//
// Atomic serializes writers per auction: two concurrent calls for the same
// auction never interleave, so read-then-write validation (minimum bid,
// commitment ceiling) cannot act on a stale snapshot.
type Store interface {
	CreateAuction(ctx context.Context, a *models.Auction) error
	// Atomic runs fn in a read-write unit of work scoped to one auction.
	// If fn returns an error the work rolls back, else it commits.
	Atomic(ctx context.Context, auctionID uuid.UUID, fn func(tx Tx) error) error
	// View runs fn in a read-only unit of work scoped to one auction.
	View(ctx context.Context, auctionID uuid.UUID, fn func(tx Tx) error) error
	// ActiveDeadlines lists the round deadlines of every ongoing auction
	// with a live countdown, keyed by auction ID. Used to restart timers
	// after a process restart.
	ActiveDeadlines(ctx context.Context) (map[uuid.UUID]time.Time, error)
}
