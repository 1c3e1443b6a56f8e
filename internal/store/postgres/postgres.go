// Package postgres implements the auction store on PostgreSQL via pgx.
//
// Atomic takes a row lock on the auction (SELECT ... FOR UPDATE), which
// serializes all read-then-write units of work per auction across every
// process sharing the database.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clanarena/draftauction/internal/models"
	"github.com/clanarena/draftauction/internal/store"
)

//go:embed schema.sql
var schema string

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate applies the schema. Statements are idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) CreateAuction(ctx context.Context, a *models.Auction) error {
	const q = `
		INSERT INTO auctions (
			id, title, creator_id, access_code, status, bidding_phase,
			starting_points, turn_time_limit_sec, team_count, max_participants,
			current_bidding_player_id, current_bidding_end_time,
			timer_paused, paused_time_remaining, linked_scrim_id,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	_, err := s.pool.Exec(ctx, q,
		a.ID, a.Title, a.CreatorID, a.AccessCode, a.Status, a.BiddingPhase,
		a.StartingPoints, a.TurnTimeLimitSec, a.TeamCount, a.MaxParticipants,
		a.CurrentBiddingPlayer, a.CurrentBiddingEndTime,
		a.TimerPaused, a.PausedTimeRemaining, a.LinkedScrimID,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert auction: %w", err)
	}
	return nil
}

func (s *Store) ActiveDeadlines(ctx context.Context) (map[uuid.UUID]time.Time, error) {
	const q = `
		SELECT id, current_bidding_end_time FROM auctions
		WHERE status = 'ONGOING' AND NOT timer_paused
		  AND current_bidding_end_time IS NOT NULL`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select active deadlines: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]time.Time)
	for rows.Next() {
		var id uuid.UUID
		var deadline time.Time
		if err := rows.Scan(&id, &deadline); err != nil {
			return nil, fmt.Errorf("scan deadline: %w", err)
		}
		out[id] = deadline
	}
	return out, rows.Err()
}

func (s *Store) Atomic(ctx context.Context, auctionID uuid.UUID, fn func(tx store.Tx) error) error {
	return s.run(ctx, auctionID, fn, true)
}

func (s *Store) View(ctx context.Context, auctionID uuid.UUID, fn func(tx store.Tx) error) error {
	return s.run(ctx, auctionID, fn, false)
}

func (s *Store) run(ctx context.Context, auctionID uuid.UUID, fn func(tx store.Tx) error, forUpdate bool) error {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer pgtx.Rollback(ctx)

	// Pin the auction row. FOR UPDATE serializes writers; the plain
	// variant just verifies existence for reads.
	lock := `SELECT id FROM auctions WHERE id = $1`
	if forUpdate {
		lock += ` FOR UPDATE`
	}
	var id uuid.UUID
	if err := pgtx.QueryRow(ctx, lock, auctionID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		return fmt.Errorf("lock auction: %w", err)
	}

	if err := fn(&tx{pgtx: pgtx, auctionID: auctionID}); err != nil {
		return err
	}

	if err := pgtx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// tx implements store.Tx on one pgx transaction.
type tx struct {
	pgtx      pgx.Tx
	auctionID uuid.UUID
}

const auctionColumns = `
	id, title, creator_id, access_code, status, bidding_phase,
	starting_points, turn_time_limit_sec, team_count, max_participants,
	current_bidding_player_id, current_bidding_end_time,
	timer_paused, paused_time_remaining, linked_scrim_id,
	created_at, updated_at`

func (t *tx) Auction(ctx context.Context) (*models.Auction, error) {
	q := `SELECT` + auctionColumns + ` FROM auctions WHERE id = $1`
	row := t.pgtx.QueryRow(ctx, q, t.auctionID)

	var a models.Auction
	err := row.Scan(
		&a.ID, &a.Title, &a.CreatorID, &a.AccessCode, &a.Status, &a.BiddingPhase,
		&a.StartingPoints, &a.TurnTimeLimitSec, &a.TeamCount, &a.MaxParticipants,
		&a.CurrentBiddingPlayer, &a.CurrentBiddingEndTime,
		&a.TimerPaused, &a.PausedTimeRemaining, &a.LinkedScrimID,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("select auction: %w", err)
	}
	return &a, nil
}

func (t *tx) SaveAuction(ctx context.Context, a *models.Auction) error {
	const q = `
		UPDATE auctions SET
			title = $2, access_code = $3, status = $4, bidding_phase = $5,
			starting_points = $6, turn_time_limit_sec = $7, team_count = $8,
			max_participants = $9, current_bidding_player_id = $10,
			current_bidding_end_time = $11, timer_paused = $12,
			paused_time_remaining = $13, linked_scrim_id = $14, updated_at = $15
		WHERE id = $1`
	tag, err := t.pgtx.Exec(ctx, q,
		a.ID, a.Title, a.AccessCode, a.Status, a.BiddingPhase,
		a.StartingPoints, a.TurnTimeLimitSec, a.TeamCount,
		a.MaxParticipants, a.CurrentBiddingPlayer,
		a.CurrentBiddingEndTime, a.TimerPaused,
		a.PausedTimeRemaining, a.LinkedScrimID, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update auction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const participantColumns = `
	id, auction_id, user_id, display_name, role, current_points,
	assigned_team_captain_id, sold_price, was_unsold, bidding_order, joined_at`

func scanParticipant(row pgx.Row) (*models.Participant, error) {
	var p models.Participant
	err := row.Scan(
		&p.ID, &p.AuctionID, &p.UserID, &p.DisplayName, &p.Role, &p.CurrentPoints,
		&p.AssignedTeamCaptainID, &p.SoldPrice, &p.WasUnsold, &p.BiddingOrder, &p.JoinedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *tx) Participant(ctx context.Context, userID uuid.UUID) (*models.Participant, error) {
	q := `SELECT` + participantColumns + ` FROM auction_participants WHERE auction_id = $1 AND user_id = $2`
	p, err := scanParticipant(t.pgtx.QueryRow(ctx, q, t.auctionID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("select participant: %w", err)
	}
	return p, nil
}

func (t *tx) Participants(ctx context.Context) ([]*models.Participant, error) {
	q := `SELECT` + participantColumns + ` FROM auction_participants WHERE auction_id = $1 ORDER BY joined_at`
	rows, err := t.pgtx.Query(ctx, q, t.auctionID)
	if err != nil {
		return nil, fmt.Errorf("select participants: %w", err)
	}
	defer rows.Close()

	var out []*models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *tx) AddParticipant(ctx context.Context, p *models.Participant) error {
	const q = `
		INSERT INTO auction_participants (
			id, auction_id, user_id, display_name, role, current_points,
			assigned_team_captain_id, sold_price, was_unsold, bidding_order, joined_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := t.pgtx.Exec(ctx, q,
		p.ID, p.AuctionID, p.UserID, p.DisplayName, p.Role, p.CurrentPoints,
		p.AssignedTeamCaptainID, p.SoldPrice, p.WasUnsold, p.BiddingOrder, p.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (t *tx) SaveParticipant(ctx context.Context, p *models.Participant) error {
	const q = `
		UPDATE auction_participants SET
			display_name = $3, role = $4, current_points = $5,
			assigned_team_captain_id = $6, sold_price = $7,
			was_unsold = $8, bidding_order = $9
		WHERE auction_id = $1 AND user_id = $2`
	tag, err := t.pgtx.Exec(ctx, q,
		p.AuctionID, p.UserID, p.DisplayName, p.Role, p.CurrentPoints,
		p.AssignedTeamCaptainID, p.SoldPrice, p.WasUnsold, p.BiddingOrder,
	)
	if err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const bidColumns = `id, auction_id, bidder_id, target_player_id, amount, is_active, created_at`

func (t *tx) activeBids(ctx context.Context, q string, arg any) ([]*models.Bid, error) {
	rows, err := t.pgtx.Query(ctx, q, t.auctionID, arg)
	if err != nil {
		return nil, fmt.Errorf("select bids: %w", err)
	}
	defer rows.Close()

	var out []*models.Bid
	for rows.Next() {
		var b models.Bid
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.TargetPlayerID, &b.Amount, &b.IsActive, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

func (t *tx) ActiveBidsForPlayer(ctx context.Context, playerID uuid.UUID) ([]*models.Bid, error) {
	q := `SELECT ` + bidColumns + ` FROM auction_bids
		WHERE auction_id = $1 AND target_player_id = $2 AND is_active
		ORDER BY amount DESC, created_at`
	return t.activeBids(ctx, q, playerID)
}

func (t *tx) ActiveBidsByBidder(ctx context.Context, bidderID uuid.UUID) ([]*models.Bid, error) {
	q := `SELECT ` + bidColumns + ` FROM auction_bids
		WHERE auction_id = $1 AND bidder_id = $2 AND is_active
		ORDER BY created_at`
	return t.activeBids(ctx, q, bidderID)
}

func (t *tx) InsertBid(ctx context.Context, b *models.Bid) error {
	const q = `
		INSERT INTO auction_bids (id, auction_id, bidder_id, target_player_id, amount, is_active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := t.pgtx.Exec(ctx, q, b.ID, b.AuctionID, b.BidderID, b.TargetPlayerID, b.Amount, b.IsActive, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}
	return nil
}

func (t *tx) DeactivateBid(ctx context.Context, bidID uuid.UUID) error {
	const q = `UPDATE auction_bids SET is_active = FALSE WHERE id = $1 AND auction_id = $2`
	if _, err := t.pgtx.Exec(ctx, q, bidID, t.auctionID); err != nil {
		return fmt.Errorf("deactivate bid: %w", err)
	}
	return nil
}

func (t *tx) DeactivateBidsForPlayer(ctx context.Context, playerID uuid.UUID) error {
	const q = `UPDATE auction_bids SET is_active = FALSE WHERE auction_id = $1 AND target_player_id = $2 AND is_active`
	if _, err := t.pgtx.Exec(ctx, q, t.auctionID, playerID); err != nil {
		return fmt.Errorf("deactivate bids for player: %w", err)
	}
	return nil
}
