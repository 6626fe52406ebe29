package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/cristianortiz/farmbid/internal/auction/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestSweepClosesOverdueActives(t *testing.T) {
	f := newLifecycleFixture(t)
	now := f.clock.Now()
	overdue := f.seed(t, domain.StatusActive, now.Add(-2*time.Hour), now.Add(-time.Hour))
	running := f.seed(t, domain.StatusActive, now.Add(-time.Hour), now.Add(time.Hour))
	pending := f.seed(t, domain.StatusScheduled, now.Add(time.Hour), now.Add(2*time.Hour))

	sweeper := NewSweeper(f.store, f.notifier, f.clock, DefaultSweepPeriod)
	sweeper.Sweep(context.Background())

	ended := awaitEvent(t, f.notifier.ended, "ended")
	assert.Equal(t, overdue.ID, ended.ID)
	assertNoEvent(t, f.notifier.ended, "ended")

	assert.Equal(t, domain.StatusEnded, status(t, f.store, overdue.ID))
	assert.Equal(t, domain.StatusActive, status(t, f.store, running.ID))
	assert.Equal(t, domain.StatusScheduled, status(t, f.store, pending.ID))
}

func TestSweepIsIdempotent(t *testing.T) {
	f := newLifecycleFixture(t)
	now := f.clock.Now()
	overdue := f.seed(t, domain.StatusActive, now.Add(-2*time.Hour), now.Add(-time.Hour))

	sweeper := NewSweeper(f.store, f.notifier, f.clock, DefaultSweepPeriod)
	sweeper.Sweep(context.Background())
	sweeper.Sweep(context.Background())

	awaitEvent(t, f.notifier.ended, "ended")
	assertNoEvent(t, f.notifier.ended, "ended")
	assert.Equal(t, domain.StatusEnded, status(t, f.store, overdue.ID))
}

// TestSweepRecoversLostTimer covers the crash scenario: an auction went active
// but its end timer was never armed. The reconciler must close it within one
// sweep period on its own.
func TestSweepRecoversLostTimer(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newLifecycleFixture(t)
	now := f.clock.Now()
	orphan := f.seed(t, domain.StatusActive, now.Add(-2*time.Hour), now.Add(-time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := NewSweeper(f.store, f.notifier, f.clock, DefaultSweepPeriod)
	go sweeper.Run(ctx)

	//wait for the ticker to arm before moving the clock
	f.clock.BlockUntil(1)
	f.clock.Advance(DefaultSweepPeriod)

	ended := awaitEvent(t, f.notifier.ended, "ended")
	assert.Equal(t, orphan.ID, ended.ID)
	assert.Equal(t, domain.StatusEnded, status(t, f.store, orphan.ID))
	cancel()
}

func TestNewSweeperDefaultsPeriod(t *testing.T) {
	f := newLifecycleFixture(t)
	sweeper := NewSweeper(f.store, f.notifier, clockwork.NewFakeClock(), 0)
	require.NotNil(t, sweeper)
	assert.Equal(t, DefaultSweepPeriod, sweeper.period)
}
