package application

import (
	"context"
	"time"

	"github.com/cristianortiz/farmbid/internal/auction/domain"
	"github.com/google/uuid"
)

// recentBidTail caps how much bid history a snapshot carries
const recentBidTail = 10

// BidDTO exposes one accepted bid to observers
type BidDTO struct {
	BidderID   string    `json:"bidder_id"`
	BidderName string    `json:"bidder_name"`
	Amount     float64   `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
}

// AuctionSnapshotDTO is the full-state view delivered on join and over the
// REST surface, enough for a late joiner to reconstruct state without
// waiting for the next event
type AuctionSnapshotDTO struct {
	AuctionID      uuid.UUID `json:"auction_id"`
	ProductRef     string    `json:"product_ref"`
	FarmerID       string    `json:"farmer_id"`
	Title          string    `json:"title"`
	Status         string    `json:"status"`
	BasePrice      float64   `json:"base_price"`
	CurrentHighest float64   `json:"current_highest"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	WinnerID       string    `json:"winner_id,omitempty"`
	WinnerName     string    `json:"winner_name,omitempty"`
	RecentBids     []BidDTO  `json:"recent_bids"`
}

// SnapshotFromAuction maps an aggregate to its observer-facing view.
// The winner is only disclosed once the auction has ended.
func SnapshotFromAuction(a *domain.Auction) *AuctionSnapshotDTO {
	dto := &AuctionSnapshotDTO{
		AuctionID:      a.ID,
		ProductRef:     a.ProductRef,
		FarmerID:       a.FarmerID,
		Title:          a.Title,
		Status:         string(a.Status),
		BasePrice:      a.BasePrice,
		CurrentHighest: a.CurrentHighest,
		StartTime:      a.StartTime,
		EndTime:        a.EndTime,
		RecentBids:     []BidDTO{},
	}
	if a.Status == domain.StatusEnded {
		if winner := a.WinningBid(); winner != nil {
			dto.WinnerID = winner.BidderID
			dto.WinnerName = winner.BidderName
		}
	}
	bids := a.Bids
	if len(bids) > recentBidTail {
		bids = bids[len(bids)-recentBidTail:]
	}
	for _, b := range bids {
		dto.RecentBids = append(dto.RecentBids, BidDTO{
			BidderID:   b.BidderID,
			BidderName: b.BidderName,
			Amount:     b.Amount,
			Timestamp:  b.Timestamp,
		})
	}
	return dto
}

// GetAuctionUseCase retrieves auction state for the gateway and REST routes
type GetAuctionUseCase struct {
	store domain.AuctionStore
}

// NewGetAuctionUseCase creates a new instance of GetAuctionUseCase
func NewGetAuctionUseCase(store domain.AuctionStore) *GetAuctionUseCase {
	return &GetAuctionUseCase{store: store}
}

func (uc *GetAuctionUseCase) Execute(ctx context.Context, auctionID uuid.UUID) (*AuctionSnapshotDTO, error) {
	auction, err := uc.store.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	return SnapshotFromAuction(auction), nil
}

// List returns every auction, newest first
func (uc *GetAuctionUseCase) List(ctx context.Context) ([]*AuctionSnapshotDTO, error) {
	auctions, err := uc.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return snapshots(auctions), nil
}

// ListLive returns auctions that are active and not yet past their end time
func (uc *GetAuctionUseCase) ListLive(ctx context.Context, now time.Time) ([]*AuctionSnapshotDTO, error) {
	auctions, err := uc.store.ListByStatus(ctx, domain.StatusActive)
	if err != nil {
		return nil, err
	}
	live := []*domain.Auction{}
	for _, a := range auctions {
		if !a.Expired(now) {
			live = append(live, a)
		}
	}
	return snapshots(live), nil
}

func snapshots(auctions []*domain.Auction) []*AuctionSnapshotDTO {
	out := make([]*AuctionSnapshotDTO, 0, len(auctions))
	for _, a := range auctions {
		out = append(out, SnapshotFromAuction(a))
	}
	return out
}
