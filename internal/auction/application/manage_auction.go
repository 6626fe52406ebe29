package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cristianortiz/farmbid/internal/auction/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CancelAuctionUseCase handles the explicit farmer cancellation, permitted
// only while the auction is still scheduled
type CancelAuctionUseCase struct {
	store     domain.AuctionStore
	scheduler TimerScheduler
	notifier  domain.Notifier
}

// NewCancelAuctionUseCase creates a new instance of CancelAuctionUseCase
func NewCancelAuctionUseCase(store domain.AuctionStore, scheduler TimerScheduler, notifier domain.Notifier) *CancelAuctionUseCase {
	return &CancelAuctionUseCase{
		store:     store,
		scheduler: scheduler,
		notifier:  notifier,
	}
}

func (uc *CancelAuctionUseCase) Execute(ctx context.Context, auctionID uuid.UUID, farmerID string) (*domain.Auction, error) {
	auction, err := uc.store.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.FarmerID != farmerID {
		return nil, domain.ErrNotOwner
	}

	canceled, err := uc.store.TransitionStatus(ctx, auctionID, domain.StatusScheduled, domain.StatusCanceled)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			//already started or finished, too late to cancel
			return nil, domain.ErrInvalidState
		}
		return nil, fmt.Errorf("cancel auction %s: %w", auctionID, err)
	}

	uc.scheduler.Cancel(auctionID)
	log.Info("auction canceled",
		zap.String("auctionID", auctionID.String()),
		zap.String("farmerID", farmerID),
	)
	uc.notifier.AuctionCanceled(canceled)
	return canceled, nil
}

// UpdateScheduleDTO carries the pre-start edits a farmer may make
type UpdateScheduleDTO struct {
	AuctionID uuid.UUID
	FarmerID  string
	StartTime time.Time
	EndTime   time.Time
}

// UpdateScheduleUseCase rewrites the time window of a scheduled auction and
// re-arms its timers against the new deadlines
type UpdateScheduleUseCase struct {
	store     domain.AuctionStore
	scheduler TimerScheduler
}

// NewUpdateScheduleUseCase creates a new instance of UpdateScheduleUseCase
func NewUpdateScheduleUseCase(store domain.AuctionStore, scheduler TimerScheduler) *UpdateScheduleUseCase {
	return &UpdateScheduleUseCase{
		store:     store,
		scheduler: scheduler,
	}
}

func (uc *UpdateScheduleUseCase) Execute(ctx context.Context, cmd UpdateScheduleDTO) (*domain.Auction, error) {
	auction, err := uc.store.Get(ctx, cmd.AuctionID)
	if err != nil {
		return nil, err
	}
	if auction.FarmerID != cmd.FarmerID {
		return nil, domain.ErrNotOwner
	}

	updated, err := uc.store.UpdateSchedule(ctx, cmd.AuctionID, cmd.StartTime, cmd.EndTime)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.ErrInvalidState
		}
		return nil, fmt.Errorf("update schedule for auction %s: %w", cmd.AuctionID, err)
	}

	//drop the timers armed for the old window and arm the new one
	uc.scheduler.Cancel(cmd.AuctionID)
	uc.scheduler.Schedule(ctx, updated)
	log.Info("auction schedule updated",
		zap.String("auctionID", cmd.AuctionID.String()),
		zap.Time("startTime", updated.StartTime),
		zap.Time("endTime", updated.EndTime),
	)
	return updated, nil
}
