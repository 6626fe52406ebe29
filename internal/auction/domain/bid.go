package domain

import (
	"time"

	"github.com/google/uuid"
)

// Bid represents one accepted bid inside an Auction aggregate.
// Bids are owned by their auction and never mutated after creation.
type Bid struct {
	ID         uuid.UUID
	AuctionID  uuid.UUID
	BidderID   string //opaque identity from the identity collaborator
	BidderName string
	Amount     float64
	//Timestamp is server-assigned and monotonic per auction
	Timestamp time.Time
}

// NewBid creates a new Bid instance
func NewBid(id, auctionID uuid.UUID, bidderID, bidderName string, amount float64, timestamp time.Time) *Bid {
	return &Bid{
		ID:         id,
		AuctionID:  auctionID,
		BidderID:   bidderID,
		BidderName: bidderName,
		Amount:     amount,
		Timestamp:  timestamp,
	}
}
