package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cristianortiz/farmbid/internal/auction/domain"
	"github.com/cristianortiz/farmbid/internal/shared/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const auctionColumns = `id, product_ref, farmer_id, title, base_price, current_highest, start_time, end_time, status, created_at, updated_at`

// AuctionStore implements domain.AuctionStore on PostgreSQL. Every
// compare-and-apply is a conditional UPDATE keyed on the expected prior
// status (or current_highest for bids): zero affected rows means someone
// else won the race and the caller gets ErrConflict.
type AuctionStore struct {
	pool *pgxpool.Pool
}

// NewAuctionStore creates a new instance of AuctionStore
func NewAuctionStore(pool *pgxpool.Pool) *AuctionStore {
	return &AuctionStore{pool: pool}
}

// Create inserts a new auction row
func (s *AuctionStore) Create(ctx context.Context, a *domain.Auction) error {
	query := `
        INSERT INTO auctions (id, product_ref, farmer_id, title, base_price, current_highest, start_time, end_time, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
	_, err := s.pool.Exec(ctx, query,
		a.ID,
		a.ProductRef,
		a.FarmerID,
		a.Title,
		a.BasePrice,
		a.CurrentHighest,
		a.StartTime,
		a.EndTime,
		a.Status,
	)
	if err != nil {
		return fmt.Errorf("insert auction %s: %w", a.ID, err)
	}
	return nil
}

// Get loads one auction together with its ordered bid history
func (s *AuctionStore) Get(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`
	a, err := scanAuction(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if a.Bids, err = s.bidsFor(ctx, id); err != nil {
		return nil, err
	}
	return a, nil
}

// List returns all auctions, newest first
func (s *AuctionStore) List(ctx context.Context) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions ORDER BY created_at DESC`
	return s.queryAuctions(ctx, query)
}

// ListByStatus returns all auctions currently in status
func (s *AuctionStore) ListByStatus(ctx context.Context, status domain.AuctionStatus) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = $1 ORDER BY created_at DESC`
	return s.queryAuctions(ctx, query, status)
}

// ListExpired returns active auctions whose end time is at or before now
func (s *AuctionStore) ListExpired(ctx context.Context, now time.Time) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = $1 AND end_time <= $2`
	return s.queryAuctions(ctx, query, domain.StatusActive, now)
}

// TransitionStatus applies from -> to with a conditional UPDATE. The losing
// side of a timer/sweep race affects zero rows and gets ErrConflict.
func (s *AuctionStore) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.AuctionStatus) (*domain.Auction, error) {
	query := `
        UPDATE auctions SET status = $3, updated_at = NOW()
        WHERE id = $1 AND status = $2
    `
	tag, err := s.pool.Exec(ctx, query, id, from, to)
	if err != nil {
		return nil, fmt.Errorf("transition auction %s %s->%s: %w", id, from, to, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, s.classifyMiss(ctx, id, domain.ErrConflict)
	}
	log.Info("auction status transition applied",
		zap.String("auctionID", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return s.Get(ctx, id)
}

// ApplyBid commits a bid inside one transaction: the auction update is keyed
// on the previously observed current_highest, the bid row is appended only
// if that update took.
func (s *AuctionStore) ApplyBid(ctx context.Context, id uuid.UUID, expectedHighest float64, bid *domain.Bid) (*domain.Auction, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("apply bid: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	update := `
        UPDATE auctions SET current_highest = $3, updated_at = NOW()
        WHERE id = $1 AND status = 'active' AND current_highest = $2 AND current_highest < $3
    `
	tag, err := tx.Exec(ctx, update, id, expectedHighest, bid.Amount)
	if err != nil {
		return nil, fmt.Errorf("apply bid on auction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, s.classifyBidMiss(ctx, id, bid.Amount)
	}

	insert := `
        INSERT INTO bids (id, auction_id, bidder_id, bidder_name, amount, placed_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	if _, err := tx.Exec(ctx, insert, bid.ID, bid.AuctionID, bid.BidderID, bid.BidderName, bid.Amount, bid.Timestamp); err != nil {
		return nil, fmt.Errorf("insert bid %s: %w", bid.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("apply bid: commit: %w", err)
	}
	return s.Get(ctx, id)
}

// UpdateSchedule rewrites the time window, only while the auction is scheduled
func (s *AuctionStore) UpdateSchedule(ctx context.Context, id uuid.UUID, startTime, endTime time.Time) (*domain.Auction, error) {
	if !endTime.After(startTime) {
		return nil, domain.ErrInvalidTimeWindow
	}
	query := `
        UPDATE auctions SET start_time = $2, end_time = $3, updated_at = NOW()
        WHERE id = $1 AND status = 'scheduled'
    `
	tag, err := s.pool.Exec(ctx, query, id, startTime, endTime)
	if err != nil {
		return nil, fmt.Errorf("update schedule for auction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, s.classifyMiss(ctx, id, domain.ErrConflict)
	}
	return s.Get(ctx, id)
}

// classifyMiss distinguishes an unknown auction from a lost precondition
func (s *AuctionStore) classifyMiss(ctx context.Context, id uuid.UUID, miss error) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM auctions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrAuctionNotFound
	}
	return miss
}

// classifyBidMiss maps a zero-row bid update to the precise rejection
// reason: a bid that does not beat the stored highest is too low, one that
// would have beaten it lost the compare-and-apply to a concurrent writer
func (s *AuctionStore) classifyBidMiss(ctx context.Context, id uuid.UUID, amount float64) error {
	var status domain.AuctionStatus
	var highest float64
	err := s.pool.QueryRow(ctx, `SELECT status, current_highest FROM auctions WHERE id = $1`, id).Scan(&status, &highest)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrAuctionNotFound
		}
		return err
	}
	if status != domain.StatusActive {
		return domain.ErrAuctionNotActive
	}
	if amount <= highest {
		return &domain.BidTooLowError{CurrentHighest: highest}
	}
	return domain.ErrConflict
}

func (s *AuctionStore) queryAuctions(ctx context.Context, query string, args ...any) ([]*domain.Auction, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	auctions := []*domain.Auction{}
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, a := range auctions {
		if a.Bids, err = s.bidsFor(ctx, a.ID); err != nil {
			return nil, err
		}
	}
	return auctions, nil
}

func (s *AuctionStore) bidsFor(ctx context.Context, auctionID uuid.UUID) ([]*domain.Bid, error) {
	query := `
        SELECT id, auction_id, bidder_id, bidder_name, amount, placed_at
        FROM bids
        WHERE auction_id = $1
        ORDER BY placed_at ASC, amount ASC
    `
	rows, err := s.pool.Query(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bids := []*domain.Bid{}
	for rows.Next() {
		bid := &domain.Bid{}
		err := rows.Scan(
			&bid.ID,
			&bid.AuctionID,
			&bid.BidderID,
			&bid.BidderName,
			&bid.Amount,
			&bid.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

func scanAuction(row pgx.Row) (*domain.Auction, error) {
	a := &domain.Auction{}
	err := row.Scan(
		&a.ID,
		&a.ProductRef,
		&a.FarmerID,
		&a.Title,
		&a.BasePrice,
		&a.CurrentHighest,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, err
	}
	return a, nil
}
