package websocket

import (
	"time"

	"github.com/cristianortiz/farmbid/internal/auction/application"
	"github.com/google/uuid"
)

// MessageType identifies the kind of websocket message
type MessageType string

const (
	MessageTypeClientBid       MessageType = "place_bid"        // client msg submitting a bid
	MessageTypeSnapshot        MessageType = "snapshot"         // full state sent on join
	MessageTypeAuctionStarted  MessageType = "auction_started"  // scheduled -> active
	MessageTypeBidUpdate       MessageType = "bid_update"       // accepted bid, sent to the whole room
	MessageTypeBidRejected     MessageType = "bid_rejected"     // rejection, sent to the submitter only
	MessageTypeAuctionEnded    MessageType = "auction_ended"    // active -> ended, carries the winner
	MessageTypeAuctionCanceled MessageType = "auction_canceled" // scheduled -> canceled
	MessageTypeTimeSync        MessageType = "time_sync"        // periodic server clock while active
	MessageTypeError           MessageType = "error"            // transport-level error
)

// BaseMessage is the envelope shared by all websocket messages
type BaseMessage struct {
	Type MessageType `json:"type"`
}

// ClientBidMessage is a bid submission from an observer
type ClientBidMessage struct {
	BaseMessage
	Payload struct {
		BidderID   string  `json:"bidder_id"`
		BidderName string  `json:"bidder_name"`
		Amount     float64 `json:"amount"`
	} `json:"payload"`
}

// SnapshotMessage carries the full auction state on join
type SnapshotMessage struct {
	BaseMessage
	Payload *application.AuctionSnapshotDTO `json:"payload"`
}

// AuctionStartedMessage announces the auction went live
type AuctionStartedMessage struct {
	BaseMessage
	Payload struct {
		AuctionID      uuid.UUID `json:"auction_id"`
		CurrentHighest float64   `json:"current_highest"`
		EndTime        time.Time `json:"end_time"`
	} `json:"payload"`
}

// BidUpdateMessage announces an accepted bid to the room
type BidUpdateMessage struct {
	BaseMessage
	Payload struct {
		AuctionID      uuid.UUID `json:"auction_id"`
		BidderID       string    `json:"bidder_id"`
		BidderName     string    `json:"bidder_name"`
		Amount         float64   `json:"amount"`
		CurrentHighest float64   `json:"current_highest"`
		Timestamp      time.Time `json:"timestamp"`
	} `json:"payload"`
}

// BidRejectedMessage tells one submitter why its bid was refused; for a
// too-low bid it carries the value to beat
type BidRejectedMessage struct {
	BaseMessage
	Payload struct {
		AuctionID      uuid.UUID `json:"auction_id"`
		Reason         string    `json:"reason"`
		CurrentHighest float64   `json:"current_highest,omitempty"`
	} `json:"payload"`
}

// AuctionEndedMessage announces the final result
type AuctionEndedMessage struct {
	BaseMessage
	Payload struct {
		AuctionID  uuid.UUID `json:"auction_id"`
		FinalPrice float64   `json:"final_price"`
		WinnerID   string    `json:"winner_id,omitempty"`
		WinnerName string    `json:"winner_name,omitempty"`
	} `json:"payload"`
}

// AuctionCanceledMessage announces a pre-start cancellation
type AuctionCanceledMessage struct {
	BaseMessage
	Payload struct {
		AuctionID uuid.UUID `json:"auction_id"`
	} `json:"payload"`
}

// TimeSyncMessage lets observers render a countdown off the server clock,
// immune to their own clock drift. Times are unix milliseconds.
type TimeSyncMessage struct {
	BaseMessage
	Payload struct {
		AuctionID  uuid.UUID `json:"auction_id"`
		ServerTime int64     `json:"server_time"`
		EndTime    int64     `json:"end_time"`
	} `json:"payload"`
}

// ErrorMessage reports a transport or decoding problem to one client
type ErrorMessage struct {
	BaseMessage
	Payload struct {
		Error string `json:"error"`
	} `json:"payload"`
}
