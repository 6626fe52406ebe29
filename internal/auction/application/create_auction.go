package application

import (
	"context"
	"fmt"
	"time"

	"github.com/cristianortiz/farmbid/internal/auction/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TimerScheduler is the slice of the lifecycle scheduler the use cases need
type TimerScheduler interface {
	Schedule(ctx context.Context, auction *domain.Auction)
	Cancel(auctionID uuid.UUID)
}

// CreateAuctionDTO carries the fields the listing service supplies
type CreateAuctionDTO struct {
	ProductRef string
	FarmerID   string
	Title      string
	BasePrice  float64
	StartTime  time.Time
	EndTime    time.Time
}

// CreateAuctionUseCase registers a new scheduled auction and arms its
// start/end timers
type CreateAuctionUseCase struct {
	store     domain.AuctionStore
	scheduler TimerScheduler
	notifier  domain.Notifier
}

// NewCreateAuctionUseCase creates a new instance of CreateAuctionUseCase
func NewCreateAuctionUseCase(store domain.AuctionStore, scheduler TimerScheduler, notifier domain.Notifier) *CreateAuctionUseCase {
	return &CreateAuctionUseCase{
		store:     store,
		scheduler: scheduler,
		notifier:  notifier,
	}
}

func (uc *CreateAuctionUseCase) Execute(ctx context.Context, cmd CreateAuctionDTO) (*domain.Auction, error) {
	auction, err := domain.NewAuction(uuid.New(), cmd.ProductRef, cmd.FarmerID, cmd.Title, cmd.BasePrice, cmd.StartTime, cmd.EndTime)
	if err != nil {
		return nil, err
	}
	if err := uc.store.Create(ctx, auction); err != nil {
		return nil, fmt.Errorf("create auction: %w", err)
	}

	log.Info("auction created",
		zap.String("auctionID", auction.ID.String()),
		zap.String("farmerID", auction.FarmerID),
		zap.Float64("basePrice", auction.BasePrice),
		zap.Time("startTime", auction.StartTime),
		zap.Time("endTime", auction.EndTime),
	)

	//arm both timers; a start time already in the past activates immediately
	uc.scheduler.Schedule(ctx, auction)
	uc.notifier.AuctionCreated(auction)
	return auction, nil
}
