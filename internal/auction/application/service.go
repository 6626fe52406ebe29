package application

import (
	"context"
	"time"

	"github.com/cristianortiz/farmbid/internal/auction/domain"
	"github.com/google/uuid"
)

// AuctionService is the application boundary of the auction module,
// consumed by the HTTP routes and the websocket gateway
type AuctionService interface {
	CreateAuction(ctx context.Context, cmd CreateAuctionDTO) (*domain.Auction, error)
	PlaceBid(ctx context.Context, cmd PlaceBidDTO) (*domain.Bid, error)
	CancelAuction(ctx context.Context, auctionID uuid.UUID, farmerID string) (*domain.Auction, error)
	UpdateSchedule(ctx context.Context, cmd UpdateScheduleDTO) (*domain.Auction, error)
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*AuctionSnapshotDTO, error)
	ListAuctions(ctx context.Context) ([]*AuctionSnapshotDTO, error)
	ListLiveAuctions(ctx context.Context, now time.Time) ([]*AuctionSnapshotDTO, error)
}

type auctionService struct {
	createUC   *CreateAuctionUseCase
	placeBidUC *PlaceBidUseCase
	cancelUC   *CancelAuctionUseCase
	updateUC   *UpdateScheduleUseCase
	getUC      *GetAuctionUseCase
}

func NewAuctionService(
	createUC *CreateAuctionUseCase,
	placeBidUC *PlaceBidUseCase,
	cancelUC *CancelAuctionUseCase,
	updateUC *UpdateScheduleUseCase,
	getUC *GetAuctionUseCase,
) AuctionService {
	return &auctionService{
		createUC:   createUC,
		placeBidUC: placeBidUC,
		cancelUC:   cancelUC,
		updateUC:   updateUC,
		getUC:      getUC,
	}
}

func (s *auctionService) CreateAuction(ctx context.Context, cmd CreateAuctionDTO) (*domain.Auction, error) {
	return s.createUC.Execute(ctx, cmd)
}

func (s *auctionService) PlaceBid(ctx context.Context, cmd PlaceBidDTO) (*domain.Bid, error) {
	return s.placeBidUC.Execute(ctx, cmd)
}

func (s *auctionService) CancelAuction(ctx context.Context, auctionID uuid.UUID, farmerID string) (*domain.Auction, error) {
	return s.cancelUC.Execute(ctx, auctionID, farmerID)
}

func (s *auctionService) UpdateSchedule(ctx context.Context, cmd UpdateScheduleDTO) (*domain.Auction, error) {
	return s.updateUC.Execute(ctx, cmd)
}

func (s *auctionService) GetAuction(ctx context.Context, auctionID uuid.UUID) (*AuctionSnapshotDTO, error) {
	return s.getUC.Execute(ctx, auctionID)
}

func (s *auctionService) ListAuctions(ctx context.Context) ([]*AuctionSnapshotDTO, error) {
	return s.getUC.List(ctx)
}

func (s *auctionService) ListLiveAuctions(ctx context.Context, now time.Time) ([]*AuctionSnapshotDTO, error) {
	return s.getUC.ListLive(ctx, now)
}
