package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cristianortiz/farmbid/internal/auction/application"
	"github.com/cristianortiz/farmbid/internal/auction/domain"
	"github.com/cristianortiz/farmbid/internal/shared/logger"
	sharedws "github.com/cristianortiz/farmbid/internal/shared/websocket"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Gateway is the real-time boundary of the auction module: it accepts
// observer join/leave and bid submissions, and relays room broadcasts
// outward. It performs no business logic itself; every decision is delegated
// to the application service, and confirmed state changes come back in
// through the domain.Notifier methods.
type Gateway struct {
	service application.AuctionService
	hub     *sharedws.Hub
	ticker  *timeSyncTicker

	//ctx bounds broadcast tickers and pumps to the process lifetime,
	//fixed at construction so handler goroutines read it race-free
	ctx context.Context
}

// NewGateway creates a new instance of Gateway
func NewGateway(ctx context.Context, service application.AuctionService, hub *sharedws.Hub, clock clockwork.Clock) *Gateway {
	return &Gateway{
		service: service,
		hub:     hub,
		ticker:  newTimeSyncTicker(service, hub, clock),
		ctx:     ctx,
	}
}

// Run consumes inbound client messages from the hub until the gateway's
// context is cancelled
func (g *Gateway) Run() {
	log.Info("auction gateway listening for inbound messages")
	for {
		select {
		case <-g.ctx.Done():
			log.Info("auction gateway stopped")
			return
		case msg := <-g.hub.Inbound:
			go g.processMessage(msg.Client, msg.Data)
		}
	}
}

// HandleConnection serves one upgraded websocket connection: joins the room,
// delivers the full-state snapshot, then pumps until the peer disconnects.
// Blocks for the lifetime of the connection.
func (g *Gateway) HandleConnection(conn *fiberws.Conn, auctionID uuid.UUID) {
	snap, err := g.service.GetAuction(g.ctx, auctionID)
	if err != nil {
		//the room for an unknown auction must never be created
		msg := ErrorMessage{BaseMessage: BaseMessage{Type: MessageTypeError}}
		msg.Payload.Error = "auction not found"
		if data, mErr := json.Marshal(msg); mErr == nil {
			_ = conn.WriteMessage(fiberws.TextMessage, data)
		}
		_ = conn.Close()
		return
	}

	client := sharedws.NewClient(g.hub, conn, auctionID.String(), uuid.NewString())
	g.hub.Join(client)

	//late joiners reconstruct state from the snapshot, even after ended
	g.sendToClient(client, SnapshotMessage{
		BaseMessage: BaseMessage{Type: MessageTypeSnapshot},
		Payload:     snap,
	})
	if snap.Status == string(domain.StatusActive) {
		g.ticker.Start(g.ctx, auctionID)
	}

	go client.WritePump(g.ctx)
	client.ReadPump(g.ctx)
}

// processMessage dispatches one raw client payload by its envelope type
func (g *Gateway) processMessage(client *sharedws.Client, data []byte) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		g.sendError(client, "invalid message format")
		return
	}
	switch base.Type {
	case MessageTypeClientBid:
		g.handleClientBid(client, data)
	default:
		g.sendError(client, "unknown message type")
	}
}

func (g *Gateway) handleClientBid(client *sharedws.Client, data []byte) {
	var bidMsg ClientBidMessage
	if err := json.Unmarshal(data, &bidMsg); err != nil {
		g.sendError(client, "invalid bid message format")
		return
	}
	auctionID, err := uuid.Parse(client.RoomID)
	if err != nil {
		g.sendError(client, "invalid auction id")
		return
	}

	cmd := application.PlaceBidDTO{
		AuctionID:  auctionID,
		BidderID:   bidMsg.Payload.BidderID,
		BidderName: bidMsg.Payload.BidderName,
		Amount:     bidMsg.Payload.Amount,
	}
	if _, err := g.service.PlaceBid(g.ctx, cmd); err != nil {
		g.sendBidRejection(client, auctionID, err)
		return
	}
	//the accepted bid reaches the room via BidPlaced; just make sure the
	//countdown stream is running
	g.ticker.Start(g.ctx, auctionID)
}

// sendBidRejection targets the submitter only, never the room
func (g *Gateway) sendBidRejection(client *sharedws.Client, auctionID uuid.UUID, err error) {
	msg := BidRejectedMessage{BaseMessage: BaseMessage{Type: MessageTypeBidRejected}}
	msg.Payload.AuctionID = auctionID

	var tooLow *domain.BidTooLowError
	switch {
	case errors.As(err, &tooLow):
		msg.Payload.Reason = "bid must be higher"
		msg.Payload.CurrentHighest = tooLow.CurrentHighest
	case errors.Is(err, domain.ErrAuctionNotActive):
		msg.Payload.Reason = "auction is not active"
	case errors.Is(err, domain.ErrAuctionNotFound):
		msg.Payload.Reason = "auction not found"
	case errors.Is(err, domain.ErrInvalidAmount):
		msg.Payload.Reason = "invalid bid amount"
	default:
		log.Error("bid failed", zap.String("auctionID", auctionID.String()), zap.Error(err))
		g.sendError(client, "server error placing bid")
		return
	}
	g.sendToClient(client, msg)
}

// sendError serializes and sends an error message to one client
func (g *Gateway) sendError(client *sharedws.Client, errorMessage string) {
	msg := ErrorMessage{BaseMessage: BaseMessage{Type: MessageTypeError}}
	msg.Payload.Error = errorMessage
	g.sendToClient(client, msg)
}

func (g *Gateway) sendToClient(client *sharedws.Client, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("failed to marshal client message", zap.Error(err))
		return
	}
	g.hub.SendTo(client, data)
}

func (g *Gateway) broadcast(auctionID uuid.UUID, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("failed to marshal broadcast message", zap.Error(err))
		return
	}
	g.hub.Broadcast(auctionID.String(), data)
}

// AuctionCreated implements domain.Notifier. No room can exist before the
// first observer joins, so there is nothing to deliver.
func (g *Gateway) AuctionCreated(a *domain.Auction) {}

// AuctionStarted implements domain.Notifier
func (g *Gateway) AuctionStarted(a *domain.Auction) {
	msg := AuctionStartedMessage{BaseMessage: BaseMessage{Type: MessageTypeAuctionStarted}}
	msg.Payload.AuctionID = a.ID
	msg.Payload.CurrentHighest = a.CurrentHighest
	msg.Payload.EndTime = a.EndTime
	g.broadcast(a.ID, msg)
	g.ticker.Start(g.ctx, a.ID)
}

// AuctionEnded implements domain.Notifier; a zero-bid auction ends with no
// winner fields
func (g *Gateway) AuctionEnded(a *domain.Auction) {
	g.ticker.Stop(a.ID)
	msg := AuctionEndedMessage{BaseMessage: BaseMessage{Type: MessageTypeAuctionEnded}}
	msg.Payload.AuctionID = a.ID
	msg.Payload.FinalPrice = a.CurrentHighest
	if winner := a.WinningBid(); winner != nil {
		msg.Payload.WinnerID = winner.BidderID
		msg.Payload.WinnerName = winner.BidderName
	}
	g.broadcast(a.ID, msg)
}

// AuctionCanceled implements domain.Notifier
func (g *Gateway) AuctionCanceled(a *domain.Auction) {
	g.ticker.Stop(a.ID)
	msg := AuctionCanceledMessage{BaseMessage: BaseMessage{Type: MessageTypeAuctionCanceled}}
	msg.Payload.AuctionID = a.ID
	g.broadcast(a.ID, msg)
}

// BidPlaced implements domain.Notifier, fanning the accepted bid out to the
// room (the submitter included)
func (g *Gateway) BidPlaced(a *domain.Auction, b *domain.Bid) {
	msg := BidUpdateMessage{BaseMessage: BaseMessage{Type: MessageTypeBidUpdate}}
	msg.Payload.AuctionID = a.ID
	msg.Payload.BidderID = b.BidderID
	msg.Payload.BidderName = b.BidderName
	msg.Payload.Amount = b.Amount
	msg.Payload.CurrentHighest = a.CurrentHighest
	msg.Payload.Timestamp = b.Timestamp
	g.broadcast(a.ID, msg)
}
