package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cristianortiz/farmbid/internal/auction/domain"
	"github.com/cristianortiz/farmbid/internal/auction/infra/repository/memory"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// eventNotifier exposes lifecycle events as channels so tests can block on
// them instead of sleeping
type eventNotifier struct {
	started chan *domain.Auction
	ended   chan *domain.Auction
}

func newEventNotifier() *eventNotifier {
	return &eventNotifier{
		started: make(chan *domain.Auction, 16),
		ended:   make(chan *domain.Auction, 16),
	}
}

func (n *eventNotifier) AuctionCreated(a *domain.Auction)           {}
func (n *eventNotifier) AuctionStarted(a *domain.Auction)           { n.started <- a }
func (n *eventNotifier) AuctionEnded(a *domain.Auction)             { n.ended <- a }
func (n *eventNotifier) AuctionCanceled(a *domain.Auction)          {}
func (n *eventNotifier) BidPlaced(a *domain.Auction, b *domain.Bid) {}

func awaitEvent(t *testing.T, ch chan *domain.Auction, what string) *domain.Auction {
	t.Helper()
	select {
	case a := <-ch:
		return a
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s event", what)
		return nil
	}
}

func assertNoEvent(t *testing.T, ch chan *domain.Auction, what string) {
	t.Helper()
	select {
	case a := <-ch:
		t.Fatalf("unexpected %s event for auction %s", what, a.ID)
	default:
	}
}

type lifecycleFixture struct {
	store     *memory.AuctionStore
	notifier  *eventNotifier
	clock     *clockwork.FakeClock
	scheduler *Scheduler
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	store := memory.NewAuctionStore()
	notifier := newEventNotifier()
	clock := clockwork.NewFakeClock()
	scheduler := NewScheduler(store, notifier, clock)
	t.Cleanup(scheduler.Shutdown)
	return &lifecycleFixture{
		store:     store,
		notifier:  notifier,
		clock:     clock,
		scheduler: scheduler,
	}
}

func (f *lifecycleFixture) seed(t *testing.T, status domain.AuctionStatus, start, end time.Time) *domain.Auction {
	t.Helper()
	a, err := domain.NewAuction(uuid.New(), "product-1", "farmer-1", "Goat cheese", 100, start, end)
	require.NoError(t, err)
	require.NoError(t, f.store.Create(context.Background(), a))
	if status != domain.StatusScheduled {
		_, err = f.store.TransitionStatus(context.Background(), a.ID, domain.StatusScheduled, status)
		require.NoError(t, err)
	}
	got, err := f.store.Get(context.Background(), a.ID)
	require.NoError(t, err)
	return got
}

func (f *lifecycleFixture) timerCount() int {
	f.scheduler.mu.Lock()
	defer f.scheduler.mu.Unlock()
	return len(f.scheduler.timers)
}

func status(t *testing.T, store *memory.AuctionStore, id uuid.UUID) domain.AuctionStatus {
	t.Helper()
	a, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	return a.Status
}

func TestTimersDriveLifecycle(t *testing.T) {
	f := newLifecycleFixture(t)
	now := f.clock.Now()
	a := f.seed(t, domain.StatusScheduled, now.Add(time.Minute), now.Add(2*time.Minute))

	f.scheduler.Schedule(context.Background(), a)

	f.clock.Advance(time.Minute)
	started := awaitEvent(t, f.notifier.started, "started")
	assert.Equal(t, a.ID, started.ID)
	assert.Equal(t, domain.StatusActive, status(t, f.store, a.ID))

	f.clock.Advance(time.Minute)
	ended := awaitEvent(t, f.notifier.ended, "ended")
	assert.Equal(t, a.ID, ended.ID)
	assert.Equal(t, domain.StatusEnded, status(t, f.store, a.ID))

	//end fire releases the timer entry
	require.Eventually(t, func() bool { return f.timerCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestScheduleIsIdempotent(t *testing.T) {
	f := newLifecycleFixture(t)
	now := f.clock.Now()
	a := f.seed(t, domain.StatusScheduled, now.Add(time.Minute), now.Add(2*time.Minute))

	f.scheduler.Schedule(context.Background(), a)
	f.scheduler.Schedule(context.Background(), a)
	f.scheduler.Schedule(context.Background(), a)

	f.clock.Advance(time.Minute)
	awaitEvent(t, f.notifier.started, "started")
	f.clock.Advance(time.Minute)
	awaitEvent(t, f.notifier.ended, "ended")
	require.Eventually(t, func() bool { return f.timerCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	assertNoEvent(t, f.notifier.started, "started")
	assertNoEvent(t, f.notifier.ended, "ended")
}

func TestOverdueStartFiresImmediately(t *testing.T) {
	f := newLifecycleFixture(t)
	now := f.clock.Now()
	a := f.seed(t, domain.StatusScheduled, now.Add(-time.Minute), now.Add(time.Hour))

	//start time already passed, activation happens during Schedule itself
	f.scheduler.Schedule(context.Background(), a)
	awaitEvent(t, f.notifier.started, "started")
	assert.Equal(t, domain.StatusActive, status(t, f.store, a.ID))
	assertNoEvent(t, f.notifier.ended, "ended")
}

func TestOverdueWindowFiresStartThenEnd(t *testing.T) {
	f := newLifecycleFixture(t)
	now := f.clock.Now()
	a := f.seed(t, domain.StatusScheduled, now.Add(-2*time.Hour), now.Add(-time.Hour))

	//both deadlines missed, e.g. across a restart: the auction still walks
	//through active before ending so observers see a consistent history
	f.scheduler.Schedule(context.Background(), a)
	awaitEvent(t, f.notifier.started, "started")
	awaitEvent(t, f.notifier.ended, "ended")
	assert.Equal(t, domain.StatusEnded, status(t, f.store, a.ID))
}

func TestCancelStopsPendingTimers(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newLifecycleFixture(t)
	now := f.clock.Now()
	a := f.seed(t, domain.StatusScheduled, now.Add(time.Minute), now.Add(2*time.Minute))

	f.scheduler.Schedule(context.Background(), a)
	f.scheduler.Cancel(a.ID)
	assert.Zero(t, f.timerCount())

	f.clock.Advance(2 * time.Minute)
	assertNoEvent(t, f.notifier.started, "started")
	assertNoEvent(t, f.notifier.ended, "ended")
	assert.Equal(t, domain.StatusScheduled, status(t, f.store, a.ID))
}

func TestShutdownReleasesEverything(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newLifecycleFixture(t)
	now := f.clock.Now()
	for i := 0; i < 3; i++ {
		a := f.seed(t, domain.StatusScheduled, now.Add(time.Minute), now.Add(2*time.Minute))
		f.scheduler.Schedule(context.Background(), a)
	}
	require.Equal(t, 3, f.timerCount())

	f.scheduler.Shutdown()
	assert.Zero(t, f.timerCount())
}

// TestTimerAndSweepRaceEndsOnce runs an overdue end timer against a sweep of
// the same auction and checks the guarded transition admits exactly one of
// them, producing a single ended event.
func TestTimerAndSweepRaceEndsOnce(t *testing.T) {
	f := newLifecycleFixture(t)
	now := f.clock.Now()
	a := f.seed(t, domain.StatusActive, now.Add(-2*time.Hour), now.Add(-time.Hour))
	sweeper := NewSweeper(f.store, f.notifier, f.clock, DefaultSweepPeriod)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.scheduler.Schedule(context.Background(), a) //overdue end fires inline
	}()
	go func() {
		defer wg.Done()
		sweeper.Sweep(context.Background())
	}()
	wg.Wait()

	awaitEvent(t, f.notifier.ended, "ended")
	assertNoEvent(t, f.notifier.ended, "ended")
	assert.Equal(t, domain.StatusEnded, status(t, f.store, a.ID))
}

func TestResyncRearmsNonTerminalAuctions(t *testing.T) {
	f := newLifecycleFixture(t)
	now := f.clock.Now()
	pending := f.seed(t, domain.StatusScheduled, now.Add(time.Minute), now.Add(2*time.Minute))
	running := f.seed(t, domain.StatusActive, now.Add(-time.Minute), now.Add(time.Minute))
	done := f.seed(t, domain.StatusEnded, now.Add(-2*time.Hour), now.Add(-time.Hour))

	require.NoError(t, f.scheduler.Resync(context.Background()))

	f.clock.Advance(time.Minute)
	awaitEvent(t, f.notifier.started, "started")
	awaitEvent(t, f.notifier.ended, "ended")
	assert.Equal(t, domain.StatusActive, status(t, f.store, pending.ID))
	assert.Equal(t, domain.StatusEnded, status(t, f.store, running.ID))

	f.clock.Advance(time.Minute)
	awaitEvent(t, f.notifier.ended, "ended")
	assert.Equal(t, domain.StatusEnded, status(t, f.store, pending.ID))

	//terminal auctions are never re-armed
	assert.Equal(t, domain.StatusEnded, status(t, f.store, done.ID))
}
