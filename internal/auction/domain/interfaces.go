package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuctionStore owns the canonical state of every auction. Every mutation is a
// compare-and-apply keyed on the expected prior state: the first writer to
// commit wins and competing writers observe ErrConflict without side effect.
// Implementations must serialize writers per auction id, never globally.
type AuctionStore interface {
	Create(ctx context.Context, auction *Auction) error
	Get(ctx context.Context, id uuid.UUID) (*Auction, error)
	List(ctx context.Context) ([]*Auction, error)
	ListByStatus(ctx context.Context, status AuctionStatus) ([]*Auction, error)
	// ListExpired returns active auctions whose end time is at or before now,
	// the sweep reconciler's scan set
	ListExpired(ctx context.Context, now time.Time) ([]*Auction, error)

	// TransitionStatus applies from -> to if the auction is still in from,
	// returning the updated auction or ErrConflict
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to AuctionStatus) (*Auction, error)
	// ApplyBid appends bid and raises CurrentHighest to bid.Amount, keyed on
	// the previously observed highest. Returns ErrConflict if another bid
	// committed first, ErrAuctionNotActive outside the active state.
	ApplyBid(ctx context.Context, id uuid.UUID, expectedHighest float64, bid *Bid) (*Auction, error)
	// UpdateSchedule rewrites the time window, permitted only while scheduled
	UpdateSchedule(ctx context.Context, id uuid.UUID, startTime, endTime time.Time) (*Auction, error)
}

// Notifier receives confirmed state changes so the room and any external
// consumers can be told. Called only after the store committed the mutation;
// implementations must never block the caller on slow observers.
type Notifier interface {
	AuctionCreated(auction *Auction)
	AuctionStarted(auction *Auction)
	AuctionEnded(auction *Auction)
	AuctionCanceled(auction *Auction)
	BidPlaced(auction *Auction, bid *Bid)
}
