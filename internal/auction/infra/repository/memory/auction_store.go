package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cristianortiz/farmbid/internal/auction/domain"
	"github.com/cristianortiz/farmbid/internal/shared/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// entry pairs one auction with its own lock so writers on unrelated
// auctions never contend
type entry struct {
	mu      sync.Mutex
	auction *domain.Auction
}

// AuctionStore is the in-memory implementation of domain.AuctionStore.
// Arena-style storage keyed by auction id: the outer map is guarded by an
// RWMutex, every mutation runs under the per-entry mutex, which gives the
// compare-and-apply its single-writer-at-a-time discipline per auction.
type AuctionStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry
}

// NewAuctionStore creates an empty in-memory store
func NewAuctionStore() *AuctionStore {
	return &AuctionStore{entries: make(map[uuid.UUID]*entry)}
}

func (s *AuctionStore) lookup(id uuid.UUID) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	return e, nil
}

// Create registers a new auction in the arena
func (s *AuctionStore) Create(ctx context.Context, auction *domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[auction.ID]; ok {
		return domain.ErrConflict
	}
	cp := auction.Clone()
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.entries[auction.ID] = &entry{auction: cp}
	return nil
}

// Get returns a copy of the auction, never shared mutable state
func (s *AuctionStore) Get(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.auction.Clone(), nil
}

// List returns all auctions, newest first
func (s *AuctionStore) List(ctx context.Context) ([]*domain.Auction, error) {
	return s.collect(func(a *domain.Auction) bool { return true }), nil
}

// ListByStatus returns all auctions currently in status
func (s *AuctionStore) ListByStatus(ctx context.Context, status domain.AuctionStatus) ([]*domain.Auction, error) {
	return s.collect(func(a *domain.Auction) bool { return a.Status == status }), nil
}

// ListExpired returns active auctions whose end time has passed
func (s *AuctionStore) ListExpired(ctx context.Context, now time.Time) ([]*domain.Auction, error) {
	return s.collect(func(a *domain.Auction) bool {
		return a.Status == domain.StatusActive && a.Expired(now)
	}), nil
}

func (s *AuctionStore) collect(keep func(*domain.Auction) bool) []*domain.Auction {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := []*domain.Auction{}
	for _, e := range entries {
		e.mu.Lock()
		if keep(e.auction) {
			out = append(out, e.auction.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// TransitionStatus applies from -> to only if the auction is still in from.
// The losing side of a timer/sweep race observes ErrConflict and no-ops.
func (s *AuctionStore) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.AuctionStatus) (*domain.Auction, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.auction.Status != from {
		return nil, domain.ErrConflict
	}
	e.auction.Status = to
	e.auction.UpdatedAt = time.Now()
	log.Info("auction status transition applied",
		zap.String("auctionID", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return e.auction.Clone(), nil
}

// ApplyBid commits a validated bid keyed on the previously observed highest
func (s *AuctionStore) ApplyBid(ctx context.Context, id uuid.UUID, expectedHighest float64, bid *domain.Bid) (*domain.Auction, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	a := e.auction
	if a.Status != domain.StatusActive {
		return nil, domain.ErrAuctionNotActive
	}
	if a.CurrentHighest != expectedHighest {
		//another bid committed between the caller's read and this apply
		return nil, domain.ErrConflict
	}
	if bid.Amount <= a.CurrentHighest {
		return nil, &domain.BidTooLowError{CurrentHighest: a.CurrentHighest}
	}

	//keep server-assigned timestamps monotonic per auction even if the
	//caller's clock reads raced
	if last := a.WinningBid(); last != nil && bid.Timestamp.Before(last.Timestamp) {
		bid.Timestamp = last.Timestamp
	}
	a.CurrentHighest = bid.Amount
	a.Bids = append(a.Bids, bid)
	a.UpdatedAt = time.Now()
	return a.Clone(), nil
}

// UpdateSchedule rewrites the time window while the auction is still scheduled
func (s *AuctionStore) UpdateSchedule(ctx context.Context, id uuid.UUID, startTime, endTime time.Time) (*domain.Auction, error) {
	if !endTime.After(startTime) {
		return nil, domain.ErrInvalidTimeWindow
	}
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.auction.Status != domain.StatusScheduled {
		return nil, domain.ErrConflict
	}
	e.auction.StartTime = startTime
	e.auction.EndTime = endTime
	e.auction.UpdatedAt = time.Now()
	return e.auction.Clone(), nil
}
