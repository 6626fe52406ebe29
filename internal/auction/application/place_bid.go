package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/cristianortiz/farmbid/internal/auction/domain"
	"github.com/cristianortiz/farmbid/internal/shared/logger"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// PlaceBidDTO is the input for the PlaceBid use case
type PlaceBidDTO struct {
	AuctionID  uuid.UUID
	BidderID   string
	BidderName string
	Amount     float64
}

// PlaceBidUseCase validates a single bid against the auction's current state
// and commits it through the store's compare-and-apply keyed on the observed
// currentHighest. It is the only writer of bid data.
type PlaceBidUseCase struct {
	store    domain.AuctionStore
	notifier domain.Notifier
	clock    clockwork.Clock
}

// NewPlaceBidUseCase creates a new instance of PlaceBidUseCase
func NewPlaceBidUseCase(store domain.AuctionStore, notifier domain.Notifier, clock clockwork.Clock) *PlaceBidUseCase {
	return &PlaceBidUseCase{
		store:    store,
		notifier: notifier,
		clock:    clock,
	}
}

// Execute admits or rejects one bid. Under contention the losing bidder gets
// BidTooLowError carrying the value that beat it, never a silent overwrite
// of a higher bid; losing a race is the expected common case, not a fault.
func (uc *PlaceBidUseCase) Execute(ctx context.Context, cmd PlaceBidDTO) (*domain.Bid, error) {
	if cmd.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	auction, err := uc.store.Get(ctx, cmd.AuctionID)
	if err != nil {
		return nil, fmt.Errorf("place bid: load auction %s: %w", cmd.AuctionID, err)
	}
	if auction.Status != domain.StatusActive {
		log.Warn("bid rejected: auction not active",
			zap.String("auctionID", cmd.AuctionID.String()),
			zap.String("status", string(auction.Status)),
			zap.String("bidderID", cmd.BidderID),
		)
		return nil, domain.ErrAuctionNotActive
	}
	if cmd.Amount <= auction.CurrentHighest {
		//strict inequality required, a tie loses
		log.Warn("bid rejected: amount too low",
			zap.String("auctionID", cmd.AuctionID.String()),
			zap.Float64("amount", cmd.Amount),
			zap.Float64("currentHighest", auction.CurrentHighest),
			zap.String("bidderID", cmd.BidderID),
		)
		return nil, &domain.BidTooLowError{CurrentHighest: auction.CurrentHighest}
	}

	bid := domain.NewBid(uuid.New(), cmd.AuctionID, cmd.BidderID, cmd.BidderName, cmd.Amount, uc.clock.Now())
	updated, err := uc.store.ApplyBid(ctx, cmd.AuctionID, auction.CurrentHighest, bid)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			//another bid committed between our read and the apply, report the
			//fresher value so the bidder can resubmit
			current, getErr := uc.store.Get(ctx, cmd.AuctionID)
			if getErr != nil {
				return nil, fmt.Errorf("place bid: reload after conflict: %w", getErr)
			}
			log.Warn("bid rejected: lost race to concurrent bid",
				zap.String("auctionID", cmd.AuctionID.String()),
				zap.Float64("amount", cmd.Amount),
				zap.Float64("currentHighest", current.CurrentHighest),
				zap.String("bidderID", cmd.BidderID),
			)
			return nil, &domain.BidTooLowError{CurrentHighest: current.CurrentHighest}
		}
		return nil, fmt.Errorf("place bid on auction %s: %w", cmd.AuctionID, err)
	}

	log.Info("bid placed",
		zap.String("auctionID", cmd.AuctionID.String()),
		zap.String("bidID", bid.ID.String()),
		zap.String("bidderID", cmd.BidderID),
		zap.Float64("amount", cmd.Amount),
	)
	uc.notifier.BidPlaced(updated, bid)
	return bid, nil
}
