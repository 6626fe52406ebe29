package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/cristianortiz/farmbid/internal/auction/application"
	"github.com/cristianortiz/farmbid/internal/auction/domain"
	"github.com/cristianortiz/farmbid/internal/auction/infra/repository/memory"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type managementFixture struct {
	store     *memory.AuctionStore
	notifier  *recordingNotifier
	scheduler *recordingScheduler
	clock     *clockwork.FakeClock
	create    *application.CreateAuctionUseCase
	cancel    *application.CancelAuctionUseCase
	update    *application.UpdateScheduleUseCase
	get       *application.GetAuctionUseCase
}

func newManagementFixture(t *testing.T) *managementFixture {
	t.Helper()
	store := memory.NewAuctionStore()
	notifier := &recordingNotifier{}
	scheduler := &recordingScheduler{}
	return &managementFixture{
		store:     store,
		notifier:  notifier,
		scheduler: scheduler,
		clock:     clockwork.NewFakeClock(),
		create:    application.NewCreateAuctionUseCase(store, scheduler, notifier),
		cancel:    application.NewCancelAuctionUseCase(store, scheduler, notifier),
		update:    application.NewUpdateScheduleUseCase(store, scheduler),
		get:       application.NewGetAuctionUseCase(store),
	}
}

func (f *managementFixture) createAuction(t *testing.T) *domain.Auction {
	t.Helper()
	now := f.clock.Now()
	a, err := f.create.Execute(context.Background(), application.CreateAuctionDTO{
		ProductRef: "product-1",
		FarmerID:   "farmer-1",
		Title:      "Heirloom tomatoes",
		BasePrice:  100,
		StartTime:  now.Add(time.Minute),
		EndTime:    now.Add(time.Hour),
	})
	require.NoError(t, err)
	return a
}

func TestCreateAuctionArmsTimers(t *testing.T) {
	f := newManagementFixture(t)
	a := f.createAuction(t)

	assert.Equal(t, domain.StatusScheduled, a.Status)
	require.Len(t, f.scheduler.scheduled, 1)
	assert.Equal(t, a.ID, f.scheduler.scheduled[0])
	require.Len(t, f.notifier.created, 1)

	stored, err := f.store.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, stored.CurrentHighest)
}

func TestCreateAuctionValidation(t *testing.T) {
	f := newManagementFixture(t)
	now := f.clock.Now()

	_, err := f.create.Execute(context.Background(), application.CreateAuctionDTO{
		ProductRef: "p", FarmerID: "f", Title: "t",
		BasePrice: 0, StartTime: now, EndTime: now.Add(time.Hour),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidBasePrice)

	_, err = f.create.Execute(context.Background(), application.CreateAuctionDTO{
		ProductRef: "p", FarmerID: "f", Title: "t",
		BasePrice: 100, StartTime: now.Add(time.Hour), EndTime: now,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTimeWindow)
	assert.Empty(t, f.scheduler.scheduled)
}

func TestCancelScheduledAuction(t *testing.T) {
	f := newManagementFixture(t)
	a := f.createAuction(t)

	canceled, err := f.cancel.Execute(context.Background(), a.ID, "farmer-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, canceled.Status)
	require.Len(t, f.scheduler.canceled, 1)
	assert.Equal(t, a.ID, f.scheduler.canceled[0])
	require.Len(t, f.notifier.canceled, 1)
}

func TestCancelRequiresOwnership(t *testing.T) {
	f := newManagementFixture(t)
	a := f.createAuction(t)

	_, err := f.cancel.Execute(context.Background(), a.ID, "farmer-2")
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	stored, err := f.store.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, stored.Status)
}

func TestCancelTooLateOnceActive(t *testing.T) {
	f := newManagementFixture(t)
	a := f.createAuction(t)
	_, err := f.store.TransitionStatus(context.Background(), a.ID, domain.StatusScheduled, domain.StatusActive)
	require.NoError(t, err)

	_, err = f.cancel.Execute(context.Background(), a.ID, "farmer-1")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Empty(t, f.notifier.canceled)
}

func TestUpdateScheduleRearmsTimers(t *testing.T) {
	f := newManagementFixture(t)
	a := f.createAuction(t)

	start := f.clock.Now().Add(2 * time.Hour)
	end := start.Add(time.Hour)
	updated, err := f.update.Execute(context.Background(), application.UpdateScheduleDTO{
		AuctionID: a.ID, FarmerID: "farmer-1", StartTime: start, EndTime: end,
	})
	require.NoError(t, err)
	assert.True(t, updated.StartTime.Equal(start))
	assert.True(t, updated.EndTime.Equal(end))

	//old timers dropped, new window armed
	require.Len(t, f.scheduler.canceled, 1)
	require.Len(t, f.scheduler.scheduled, 2)
}

func TestUpdateScheduleRejectedOnceActive(t *testing.T) {
	f := newManagementFixture(t)
	a := f.createAuction(t)
	_, err := f.store.TransitionStatus(context.Background(), a.ID, domain.StatusScheduled, domain.StatusActive)
	require.NoError(t, err)

	start := f.clock.Now().Add(2 * time.Hour)
	_, err = f.update.Execute(context.Background(), application.UpdateScheduleDTO{
		AuctionID: a.ID, FarmerID: "farmer-1", StartTime: start, EndTime: start.Add(time.Hour),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestSnapshotDisclosesWinnerOnlyWhenEnded(t *testing.T) {
	f := newManagementFixture(t)
	a := f.createAuction(t)
	ctx := context.Background()

	_, err := f.store.TransitionStatus(ctx, a.ID, domain.StatusScheduled, domain.StatusActive)
	require.NoError(t, err)
	bid := domain.NewBid(uuid.New(), a.ID, "buyer-1", "Ana", 150, f.clock.Now())
	_, err = f.store.ApplyBid(ctx, a.ID, 100, bid)
	require.NoError(t, err)

	snap, err := f.get.Execute(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusActive), snap.Status)
	assert.Empty(t, snap.WinnerID)
	require.Len(t, snap.RecentBids, 1)
	assert.Equal(t, 150.0, snap.CurrentHighest)

	_, err = f.store.TransitionStatus(ctx, a.ID, domain.StatusActive, domain.StatusEnded)
	require.NoError(t, err)

	snap, err = f.get.Execute(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusEnded), snap.Status)
	assert.Equal(t, "buyer-1", snap.WinnerID)
	assert.Equal(t, "Ana", snap.WinnerName)
}

func TestSnapshotCapsRecentBidTail(t *testing.T) {
	f := newManagementFixture(t)
	a := f.createAuction(t)
	ctx := context.Background()
	_, err := f.store.TransitionStatus(ctx, a.ID, domain.StatusScheduled, domain.StatusActive)
	require.NoError(t, err)

	highest := 100.0
	for i := 0; i < 15; i++ {
		amount := highest + 1
		bid := domain.NewBid(uuid.New(), a.ID, "buyer-1", "Ana", amount, f.clock.Now())
		_, err = f.store.ApplyBid(ctx, a.ID, highest, bid)
		require.NoError(t, err)
		highest = amount
	}

	snap, err := f.get.Execute(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, snap.RecentBids, 10)
	//the tail keeps the most recent bids, ending at the current highest
	assert.Equal(t, highest, snap.RecentBids[len(snap.RecentBids)-1].Amount)
}

func TestListLiveExcludesOverdueActives(t *testing.T) {
	f := newManagementFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	overdue, err := domain.NewAuction(uuid.New(), "p1", "f1", "overdue", 100, now.Add(-2*time.Hour), now.Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, f.store.Create(ctx, overdue))
	_, err = f.store.TransitionStatus(ctx, overdue.ID, domain.StatusScheduled, domain.StatusActive)
	require.NoError(t, err)

	running, err := domain.NewAuction(uuid.New(), "p2", "f2", "running", 100, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, f.store.Create(ctx, running))
	_, err = f.store.TransitionStatus(ctx, running.ID, domain.StatusScheduled, domain.StatusActive)
	require.NoError(t, err)

	live, err := f.get.ListLive(ctx, now)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, running.ID, live[0].AuctionID)
}
