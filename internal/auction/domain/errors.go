package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAuctionNotFound   = errors.New("auction not found")
	ErrAuctionNotActive  = errors.New("auction is not active")
	ErrBidTooLow         = errors.New("bid amount must exceed current highest")
	ErrInvalidAmount     = errors.New("bid amount cannot be zero or less than zero")
	ErrInvalidBasePrice  = errors.New("base price must be positive")
	ErrInvalidTimeWindow = errors.New("end time must be after start time")
	ErrNotOwner          = errors.New("only the owning farmer may do this")
	ErrInvalidState      = errors.New("operation not permitted in current auction state")
	//ErrConflict signals a lost compare-and-apply race, someone else already
	//applied a competing mutation. Never surfaced to end users.
	ErrConflict = errors.New("auction state changed concurrently")
)

// BidTooLowError reports a rejected bid together with the highest value
// observed at admission time so the bidder can resubmit.
type BidTooLowError struct {
	CurrentHighest float64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid amount must exceed current highest of %.2f", e.CurrentHighest)
}

// Is lets callers match the sentinel with errors.Is(err, ErrBidTooLow)
func (e *BidTooLowError) Is(target error) bool {
	return target == ErrBidTooLow
}
