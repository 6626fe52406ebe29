package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cristianortiz/farmbid/internal/auction/application"
	"github.com/cristianortiz/farmbid/internal/auction/domain"
	sharedws "github.com/cristianortiz/farmbid/internal/shared/websocket"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// timeSyncInterval is how often observers of an active auction get the
// server clock
const timeSyncInterval = time.Second

// timeSyncTicker runs one countdown loop per active auction room. Starting
// is idempotent, so repeated joins or bids never stack duplicate streams.
// A loop stops itself once the auction leaves active or the room empties.
type timeSyncTicker struct {
	service application.AuctionService
	hub     *sharedws.Hub
	clock   clockwork.Clock

	mu      sync.Mutex
	running map[uuid.UUID]chan struct{}
}

func newTimeSyncTicker(service application.AuctionService, hub *sharedws.Hub, clock clockwork.Clock) *timeSyncTicker {
	return &timeSyncTicker{
		service: service,
		hub:     hub,
		clock:   clock,
		running: make(map[uuid.UUID]chan struct{}),
	}
}

// Start launches the loop for one auction if it is not already running
func (t *timeSyncTicker) Start(ctx context.Context, auctionID uuid.UUID) {
	t.mu.Lock()
	if _, ok := t.running[auctionID]; ok {
		t.mu.Unlock()
		return
	}
	done := make(chan struct{})
	t.running[auctionID] = done
	t.mu.Unlock()

	log.Debug("time sync started", zap.String("auctionID", auctionID.String()))
	go t.run(ctx, auctionID, done)
}

// Stop halts the loop for one auction, if any
func (t *timeSyncTicker) Stop(auctionID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if done, ok := t.running[auctionID]; ok {
		close(done)
		delete(t.running, auctionID)
	}
}

// remove drops the map entry when the loop stops on its own
func (t *timeSyncTicker) remove(auctionID uuid.UUID, done chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if current, ok := t.running[auctionID]; ok && current == done {
		delete(t.running, auctionID)
	}
}

func (t *timeSyncTicker) run(ctx context.Context, auctionID uuid.UUID, done chan struct{}) {
	defer t.remove(auctionID, done)

	//emit once right away so a fresh joiner sees a countdown immediately
	if !t.tick(ctx, auctionID) {
		return
	}
	ticker := t.clock.NewTicker(timeSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.Chan():
			if !t.tick(ctx, auctionID) {
				log.Debug("time sync stopped", zap.String("auctionID", auctionID.String()))
				return
			}
		}
	}
}

// tick emits one time_sync event, reporting false when the stream should end
func (t *timeSyncTicker) tick(ctx context.Context, auctionID uuid.UUID) bool {
	if t.hub.RoomSize(auctionID.String()) == 0 {
		return false
	}
	snap, err := t.service.GetAuction(ctx, auctionID)
	if err != nil {
		log.Error("time sync lookup failed", zap.String("auctionID", auctionID.String()), zap.Error(err))
		return false
	}
	if snap.Status != string(domain.StatusActive) {
		return false
	}

	msg := TimeSyncMessage{BaseMessage: BaseMessage{Type: MessageTypeTimeSync}}
	msg.Payload.AuctionID = auctionID
	msg.Payload.ServerTime = t.clock.Now().UnixMilli()
	msg.Payload.EndTime = snap.EndTime.UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error("time sync marshal failed", zap.Error(err))
		return false
	}
	t.hub.Broadcast(auctionID.String(), data)
	return true
}
