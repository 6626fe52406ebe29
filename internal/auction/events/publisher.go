package events

import (
	"encoding/json"
	"time"

	"github.com/cristianortiz/farmbid/internal/auction/domain"
	"github.com/cristianortiz/farmbid/internal/shared/logger"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// NATS subjects for downstream consumers (archival, notifications)
const (
	SubjectCreated  = "auctions.events.created"
	SubjectStarted  = "auctions.events.started"
	SubjectEnded    = "auctions.events.ended"
	SubjectCanceled = "auctions.events.canceled"
	SubjectBid      = "auctions.events.bid"
)

// AuctionEvent is the wire form of a lifecycle change
type AuctionEvent struct {
	AuctionID      string    `json:"auction_id"`
	ProductRef     string    `json:"product_ref"`
	FarmerID       string    `json:"farmer_id"`
	Status         string    `json:"status"`
	BasePrice      float64   `json:"base_price"`
	CurrentHighest float64   `json:"current_highest"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	WinnerID       string    `json:"winner_id,omitempty"`
	WinnerName     string    `json:"winner_name,omitempty"`
}

// BidEvent is the wire form of an accepted bid
type BidEvent struct {
	AuctionID      string    `json:"auction_id"`
	BidID          string    `json:"bid_id"`
	BidderID       string    `json:"bidder_id"`
	BidderName     string    `json:"bidder_name"`
	Amount         float64   `json:"amount"`
	CurrentHighest float64   `json:"current_highest"`
	Timestamp      time.Time `json:"timestamp"`
}

// Publisher mirrors confirmed auction state changes onto NATS so services
// outside this process can react without coupling to the store. Publishing
// is best-effort: a broken connection is logged, never propagated into the
// bidding or lifecycle path.
type Publisher struct {
	nc *nats.Conn
}

// NewPublisher creates a new instance of Publisher
func NewPublisher(nc *nats.Conn) *Publisher {
	return &Publisher{nc: nc}
}

func (p *Publisher) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("event marshal failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		log.Error("event publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

func auctionEvent(a *domain.Auction) AuctionEvent {
	ev := AuctionEvent{
		AuctionID:      a.ID.String(),
		ProductRef:     a.ProductRef,
		FarmerID:       a.FarmerID,
		Status:         string(a.Status),
		BasePrice:      a.BasePrice,
		CurrentHighest: a.CurrentHighest,
		StartTime:      a.StartTime,
		EndTime:        a.EndTime,
	}
	if a.Status == domain.StatusEnded {
		if winner := a.WinningBid(); winner != nil {
			ev.WinnerID = winner.BidderID
			ev.WinnerName = winner.BidderName
		}
	}
	return ev
}

// AuctionCreated implements domain.Notifier
func (p *Publisher) AuctionCreated(a *domain.Auction) {
	p.publish(SubjectCreated, auctionEvent(a))
}

// AuctionStarted implements domain.Notifier
func (p *Publisher) AuctionStarted(a *domain.Auction) {
	p.publish(SubjectStarted, auctionEvent(a))
}

// AuctionEnded implements domain.Notifier
func (p *Publisher) AuctionEnded(a *domain.Auction) {
	p.publish(SubjectEnded, auctionEvent(a))
}

// AuctionCanceled implements domain.Notifier
func (p *Publisher) AuctionCanceled(a *domain.Auction) {
	p.publish(SubjectCanceled, auctionEvent(a))
}

// BidPlaced implements domain.Notifier
func (p *Publisher) BidPlaced(a *domain.Auction, b *domain.Bid) {
	p.publish(SubjectBid, BidEvent{
		AuctionID:      a.ID.String(),
		BidID:          b.ID.String(),
		BidderID:       b.BidderID,
		BidderName:     b.BidderName,
		Amount:         b.Amount,
		CurrentHighest: a.CurrentHighest,
		Timestamp:      b.Timestamp,
	})
}
