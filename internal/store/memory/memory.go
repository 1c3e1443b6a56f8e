// Package memory provides an in-memory Store used by tests and single-node
// development deployments. A per-auction mutex gives the single-writer
// serialization the engine relies on; transactions mutate a deep copy that
// replaces the live record only on commit.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clanarena/draftauction/internal/models"
	"github.com/clanarena/draftauction/internal/store"
)

type record struct {
	mu           sync.Mutex
	auction      *models.Auction
	participants []*models.Participant
	bids         []*models.Bid
}

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*record
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		records: make(map[uuid.UUID]*record),
	}
}

func (s *Store) CreateAuction(ctx context.Context, a *models.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[a.ID] = &record{auction: copyAuction(a)}
	return nil
}

func (s *Store) Atomic(ctx context.Context, auctionID uuid.UUID, fn func(tx store.Tx) error) error {
	rec, err := s.record(auctionID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	tx := &memTx{
		auction:      copyAuction(rec.auction),
		participants: copyParticipants(rec.participants),
		bids:         copyBids(rec.bids),
	}
	if err := fn(tx); err != nil {
		return err
	}

	rec.auction = tx.auction
	rec.participants = tx.participants
	rec.bids = tx.bids
	return nil
}

func (s *Store) View(ctx context.Context, auctionID uuid.UUID, fn func(tx store.Tx) error) error {
	rec, err := s.record(auctionID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	tx := &memTx{
		auction:      copyAuction(rec.auction),
		participants: copyParticipants(rec.participants),
		bids:         copyBids(rec.bids),
	}
	rec.mu.Unlock()

	return fn(tx)
}

func (s *Store) ActiveDeadlines(ctx context.Context) (map[uuid.UUID]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[uuid.UUID]time.Time)
	for id, rec := range s.records {
		rec.mu.Lock()
		a := rec.auction
		if a.Status == models.AuctionStatusOngoing && !a.TimerPaused && a.CurrentBiddingEndTime != nil {
			out[id] = *a.CurrentBiddingEndTime
		}
		rec.mu.Unlock()
	}
	return out, nil
}

func (s *Store) record(auctionID uuid.UUID) (*record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[auctionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

// memTx operates on a copied snapshot of one auction's records.
type memTx struct {
	auction      *models.Auction
	participants []*models.Participant
	bids         []*models.Bid
}

var _ store.Tx = (*memTx)(nil)

func (t *memTx) Auction(ctx context.Context) (*models.Auction, error) {
	return copyAuction(t.auction), nil
}

func (t *memTx) SaveAuction(ctx context.Context, a *models.Auction) error {
	t.auction = copyAuction(a)
	return nil
}

func (t *memTx) Participant(ctx context.Context, userID uuid.UUID) (*models.Participant, error) {
	for _, p := range t.participants {
		if p.UserID == userID {
			return copyParticipant(p), nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *memTx) Participants(ctx context.Context) ([]*models.Participant, error) {
	return copyParticipants(t.participants), nil
}

func (t *memTx) AddParticipant(ctx context.Context, p *models.Participant) error {
	t.participants = append(t.participants, copyParticipant(p))
	return nil
}

func (t *memTx) SaveParticipant(ctx context.Context, p *models.Participant) error {
	for i, existing := range t.participants {
		if existing.UserID == p.UserID {
			t.participants[i] = copyParticipant(p)
			return nil
		}
	}
	return store.ErrNotFound
}

func (t *memTx) ActiveBidsForPlayer(ctx context.Context, playerID uuid.UUID) ([]*models.Bid, error) {
	var out []*models.Bid
	for _, b := range t.bids {
		if b.IsActive && b.TargetPlayerID == playerID {
			out = append(out, copyBid(b))
		}
	}
	return out, nil
}

func (t *memTx) ActiveBidsByBidder(ctx context.Context, bidderID uuid.UUID) ([]*models.Bid, error) {
	var out []*models.Bid
	for _, b := range t.bids {
		if b.IsActive && b.BidderID == bidderID {
			out = append(out, copyBid(b))
		}
	}
	return out, nil
}

func (t *memTx) InsertBid(ctx context.Context, b *models.Bid) error {
	t.bids = append(t.bids, copyBid(b))
	return nil
}

func (t *memTx) DeactivateBid(ctx context.Context, bidID uuid.UUID) error {
	for _, b := range t.bids {
		if b.ID == bidID {
			b.IsActive = false
			return nil
		}
	}
	return store.ErrNotFound
}

func (t *memTx) DeactivateBidsForPlayer(ctx context.Context, playerID uuid.UUID) error {
	for _, b := range t.bids {
		if b.IsActive && b.TargetPlayerID == playerID {
			b.IsActive = false
		}
	}
	return nil
}

// Copy helpers keep committed state isolated from callers.

func copyAuction(a *models.Auction) *models.Auction {
	out := *a
	out.AccessCode = copyPtr(a.AccessCode)
	out.CurrentBiddingPlayer = copyPtr(a.CurrentBiddingPlayer)
	out.CurrentBiddingEndTime = copyPtr(a.CurrentBiddingEndTime)
	out.PausedTimeRemaining = copyPtr(a.PausedTimeRemaining)
	out.LinkedScrimID = copyPtr(a.LinkedScrimID)
	return &out
}

func copyParticipant(p *models.Participant) *models.Participant {
	out := *p
	out.AssignedTeamCaptainID = copyPtr(p.AssignedTeamCaptainID)
	out.SoldPrice = copyPtr(p.SoldPrice)
	out.BiddingOrder = copyPtr(p.BiddingOrder)
	return &out
}

func copyBid(b *models.Bid) *models.Bid {
	out := *b
	return &out
}

func copyParticipants(ps []*models.Participant) []*models.Participant {
	out := make([]*models.Participant, len(ps))
	for i, p := range ps {
		out[i] = copyParticipant(p)
	}
	return out
}

func copyBids(bs []*models.Bid) []*models.Bid {
	out := make([]*models.Bid, len(bs))
	for i, b := range bs {
		out[i] = copyBid(b)
	}
	return out
}

func copyPtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
