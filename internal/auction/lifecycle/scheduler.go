package lifecycle

import (
	"context"
	"errors"
	"sync"

	"github.com/cristianortiz/farmbid/internal/auction/domain"
	"github.com/cristianortiz/farmbid/internal/shared/logger"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// auctionTimers holds the pending one-shot timers for a single auction.
// done is closed exactly once to stop the waiter goroutines.
type auctionTimers struct {
	start  clockwork.Timer
	end    clockwork.Timer
	done   chan struct{}
	closed bool
}

// Scheduler arms a start and an end timer per auction and drives the
// scheduled -> active -> ended transitions when they fire. Every transition
// is a compare-and-apply against the store, so a timer that lost the race
// to the sweep reconciler (or to a duplicate timer) observes a conflict and
// silently discards its effect.
type Scheduler struct {
	store    domain.AuctionStore
	notifier domain.Notifier
	clock    clockwork.Clock

	mu     sync.Mutex
	timers map[uuid.UUID]*auctionTimers
}

// NewScheduler creates a scheduler; pass clockwork.NewRealClock outside tests
func NewScheduler(store domain.AuctionStore, notifier domain.Notifier, clock clockwork.Clock) *Scheduler {
	return &Scheduler{
		store:    store,
		notifier: notifier,
		clock:    clock,
		timers:   make(map[uuid.UUID]*auctionTimers),
	}
}

// Schedule arms the pending timers for an auction. Arming is idempotent:
// an auction that already has timers registered is a no-op, so duplicate
// calls never produce duplicate broadcasts. Deadlines already in the past
// fire immediately (delay floored at zero).
func (s *Scheduler) Schedule(ctx context.Context, a *domain.Auction) {
	if a.Status.IsTerminal() {
		return
	}

	s.mu.Lock()
	if _, exists := s.timers[a.ID]; exists {
		s.mu.Unlock()
		log.Debug("timers already armed, skipping", zap.String("auctionID", a.ID.String()))
		return
	}

	at := &auctionTimers{done: make(chan struct{})}
	var overdue []func()

	if a.Status == domain.StatusScheduled {
		if d := a.StartTime.Sub(s.clock.Now()); d > 0 {
			at.start = s.clock.NewTimer(d)
			go s.wait(ctx, at.start, at.done, func() { s.fireStart(ctx, a.ID) })
		} else {
			overdue = append(overdue, func() { s.fireStart(ctx, a.ID) })
		}
	}
	if d := a.EndTime.Sub(s.clock.Now()); d > 0 {
		at.end = s.clock.NewTimer(d)
		go s.wait(ctx, at.end, at.done, func() { s.fireEnd(ctx, a.ID) })
	} else {
		overdue = append(overdue, func() { s.fireEnd(ctx, a.ID) })
	}
	s.timers[a.ID] = at
	s.mu.Unlock()

	log.Info("auction timers armed",
		zap.String("auctionID", a.ID.String()),
		zap.Time("startTime", a.StartTime),
		zap.Time("endTime", a.EndTime),
	)

	//overdue deadlines run in arming order: a past start fires before a past end
	for _, fire := range overdue {
		fire()
	}
}

// Resync reloads every non-terminal auction from the store and re-arms its
// timers. Called once on boot so transitions missed during a restart fire
// immediately instead of waiting for the sweep.
func (s *Scheduler) Resync(ctx context.Context) error {
	for _, status := range []domain.AuctionStatus{domain.StatusScheduled, domain.StatusActive} {
		auctions, err := s.store.ListByStatus(ctx, status)
		if err != nil {
			return err
		}
		for _, a := range auctions {
			s.Schedule(ctx, a)
		}
	}
	return nil
}

// Cancel stops and discards any pending timers for an auction. Used when a
// farmer cancels a scheduled auction and on terminal cleanup.
func (s *Scheduler) Cancel(auctionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release(auctionID)
}

// release must be called with s.mu held
func (s *Scheduler) release(auctionID uuid.UUID) {
	at, ok := s.timers[auctionID]
	if !ok {
		return
	}
	if !at.closed {
		at.closed = true
		close(at.done)
	}
	delete(s.timers, auctionID)
	log.Debug("auction timers released", zap.String("auctionID", auctionID.String()))
}

// Shutdown cancels every pending timer
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.timers {
		s.release(id)
	}
}

// wait blocks on a single timer and runs fire when it goes off. On
// cancellation the timer is stopped and drained so no goroutine leaks.
func (s *Scheduler) wait(ctx context.Context, t clockwork.Timer, done <-chan struct{}, fire func()) {
	select {
	case <-t.Chan():
		fire()
	case <-done:
		stopAndDrainTimer(t)
	case <-ctx.Done():
		stopAndDrainTimer(t)
	}
}

// stopAndDrainTimer stops a timer and drains its channel if it already
// fired, per the time.Timer.Stop documentation.
func stopAndDrainTimer(t clockwork.Timer) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}

func (s *Scheduler) fireStart(ctx context.Context, auctionID uuid.UUID) {
	a, err := s.store.TransitionStatus(ctx, auctionID, domain.StatusScheduled, domain.StatusActive)
	if err != nil {
		//someone else already moved the auction on, nothing to do
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrAuctionNotFound) {
			log.Debug("start timer lost transition race", zap.String("auctionID", auctionID.String()))
			return
		}
		log.Error("start transition failed", zap.String("auctionID", auctionID.String()), zap.Error(err))
		return
	}
	log.Info("auction started", zap.String("auctionID", a.ID.String()), zap.Time("endTime", a.EndTime))
	s.notifier.AuctionStarted(a)
}

func (s *Scheduler) fireEnd(ctx context.Context, auctionID uuid.UUID) {
	defer func() {
		s.mu.Lock()
		s.release(auctionID)
		s.mu.Unlock()
	}()

	a, err := s.store.TransitionStatus(ctx, auctionID, domain.StatusActive, domain.StatusEnded)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrAuctionNotFound) {
			log.Debug("end timer lost transition race", zap.String("auctionID", auctionID.String()))
			return
		}
		log.Error("end transition failed", zap.String("auctionID", auctionID.String()), zap.Error(err))
		return
	}
	log.Info("auction ended",
		zap.String("auctionID", a.ID.String()),
		zap.Float64("finalPrice", a.CurrentHighest),
		zap.Int("bids", len(a.Bids)),
	)
	s.notifier.AuctionEnded(a)
}
