package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/cristianortiz/farmbid/internal/auction/domain"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultSweepPeriod is how often the reconciler rescans for overdue auctions
const DefaultSweepPeriod = 5 * time.Second

// Sweeper is the periodic safety net for end transitions whose timer never
// fired (process restart, clock drift, scheduling delay). Each tick it scans
// active auctions past their end time and applies the same guarded
// active -> ended transition as the end timer, so running concurrently with
// timer callbacks is safe: at most one of them wins per auction.
type Sweeper struct {
	store    domain.AuctionStore
	notifier domain.Notifier
	clock    clockwork.Clock
	period   time.Duration
}

// NewSweeper creates a sweeper; period <= 0 falls back to DefaultSweepPeriod
func NewSweeper(store domain.AuctionStore, notifier domain.Notifier, clock clockwork.Clock, period time.Duration) *Sweeper {
	if period <= 0 {
		period = DefaultSweepPeriod
	}
	return &Sweeper{
		store:    store,
		notifier: notifier,
		clock:    clock,
		period:   period,
	}
}

// Run ticks until the context is cancelled
func (w *Sweeper) Run(ctx context.Context) {
	log.Info("sweep reconciler started", zap.Duration("period", w.period))
	ticker := w.clock.NewTicker(w.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("sweep reconciler stopped")
			return
		case <-ticker.Chan():
			w.Sweep(ctx)
		}
	}
}

// Sweep force-closes every active auction whose end time has passed
func (w *Sweeper) Sweep(ctx context.Context) {
	expired, err := w.store.ListExpired(ctx, w.clock.Now())
	if err != nil {
		log.Error("sweep scan failed", zap.Error(err))
		return
	}
	for _, a := range expired {
		ended, err := w.store.TransitionStatus(ctx, a.ID, domain.StatusActive, domain.StatusEnded)
		if err != nil {
			//a timer callback got there first, which is the expected race
			if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrAuctionNotFound) {
				continue
			}
			log.Error("sweep transition failed", zap.String("auctionID", a.ID.String()), zap.Error(err))
			continue
		}
		log.Warn("sweep closed overdue auction",
			zap.String("auctionID", ended.ID.String()),
			zap.Time("endTime", ended.EndTime),
			zap.Float64("finalPrice", ended.CurrentHighest),
		)
		w.notifier.AuctionEnded(ended)
	}
}
