package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuctionStatus represents the lifecycle state of an auction
type AuctionStatus string

const (
	StatusScheduled AuctionStatus = "scheduled"
	StatusActive    AuctionStatus = "active"
	StatusEnded     AuctionStatus = "ended"
	StatusCanceled  AuctionStatus = "canceled"
)

// IsTerminal reports whether no further transition is possible from s
func (s AuctionStatus) IsTerminal() bool {
	return s == StatusEnded || s == StatusCanceled
}

// Auction is the aggregate root for one time-boxed bidding process over a listed product.
// All mutations go through the AuctionStore, which serializes writers per auction id,
// so the entity itself carries no lock.
type Auction struct {
	ID         uuid.UUID
	ProductRef string //reference to the listed item, owned by the listing service
	FarmerID   string //opaque identity of the owning farmer
	Title      string
	BasePrice  float64
	//CurrentHighest is monotonically non-decreasing, equals BasePrice while Bids is empty
	CurrentHighest float64
	StartTime      time.Time
	EndTime        time.Time
	Status         AuctionStatus
	//Bids is append-only, insertion order = arrival order
	Bids      []*Bid
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAuction builds a scheduled auction with both timers still pending.
// CurrentHighest starts at BasePrice.
func NewAuction(id uuid.UUID, productRef, farmerID, title string, basePrice float64, startTime, endTime time.Time) (*Auction, error) {
	if basePrice <= 0 {
		return nil, ErrInvalidBasePrice
	}
	if !endTime.After(startTime) {
		return nil, ErrInvalidTimeWindow
	}
	return &Auction{
		ID:             id,
		ProductRef:     productRef,
		FarmerID:       farmerID,
		Title:          title,
		BasePrice:      basePrice,
		CurrentHighest: basePrice,
		StartTime:      startTime,
		EndTime:        endTime,
		Status:         StatusScheduled,
		Bids:           []*Bid{},
	}, nil
}

// WinningBid returns the highest accepted bid, nil for a zero-bid auction.
// Bid amounts are strictly increasing, so the last bid is the winner.
func (a *Auction) WinningBid() *Bid {
	if len(a.Bids) == 0 {
		return nil
	}
	return a.Bids[len(a.Bids)-1]
}

// Expired reports whether the auction's end time has passed
func (a *Auction) Expired(now time.Time) bool {
	return !now.Before(a.EndTime)
}

// Clone returns a deep copy so store callers never share mutable state
func (a *Auction) Clone() *Auction {
	cp := *a
	cp.Bids = make([]*Bid, len(a.Bids))
	for i, b := range a.Bids {
		bc := *b
		cp.Bids[i] = &bc
	}
	return &cp
}
