package websocket

import (
	"time"

	"github.com/cristianortiz/auctionHouse/internal/auction/application"
	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	"github.com/cristianortiz/auctionHouse/internal/auction/infra/apierror"
	"github.com/google/uuid"
)

// MessageType defines ws type message
type MessageType string

const (
	MessageTypeClientBid           MessageType = "client_bid"            // client msg to make a bid
	MessageTypeClientBuyNow        MessageType = "client_buy_now"        // client msg to buy at the buy-it-now price
	MessageTypeServerAuctionUpdate MessageType = "server_auction_update" // server msg broadcast after every committed change
	MessageTypeServerBidResult     MessageType = "server_bid_result"     // server msg answering the sender of a bid
	MessageTypeServerError         MessageType = "server_error"          // server msg indicating error
	MessageTypeServerInitialState  MessageType = "server_initial_state"  // server msg with the auction state on connect
)

// BaseMessage is base struct for all the WS messages, includes a Type field for identify the message type
type BaseMessage struct {
	Type MessageType `json:"type"`
}

// ClientBidMessage is DTO for a bid message sended by the client.
// The bidder is always the authenticated user of the connection.
type ClientBidMessage struct {
	BaseMessage
	Payload struct {
		AuctionID    uuid.UUID     `json:"auction_id"`
		Amount       domain.Money  `json:"amount"`
		IsAutoBid    bool          `json:"is_auto_bid"`
		MaxBidAmount *domain.Money `json:"max_bid_amount,omitempty"`
	} `json:"payload"`
}

// ClientBuyNowMessage asks to end the auction at its buy-it-now price.
type ClientBuyNowMessage struct {
	BaseMessage
	Payload struct {
		AuctionID uuid.UUID `json:"auction_id"`
	} `json:"payload"`
}

// AuctionUpdate is the payload of every broadcast, one per domain event.
type AuctionUpdate struct {
	Event           domain.EventType    `json:"event"`
	AuctionID       uuid.UUID           `json:"auction_id"`
	BidID           *uuid.UUID          `json:"bid_id,omitempty"`
	BidderID        *uuid.UUID          `json:"bidder_id,omitempty"`
	Amount          domain.Money        `json:"amount,omitempty"`
	IsProxyBid      bool                `json:"is_proxy_bid,omitempty"`
	CurrentPrice    domain.Money        `json:"current_price"`
	NextMinimumBid  domain.Money        `json:"next_minimum_bid"`
	HighestBidderID *uuid.UUID          `json:"highest_bidder_id,omitempty"`
	WinnerID        *uuid.UUID          `json:"winner_id,omitempty"`
	State           domain.AuctionState `json:"state"`
	EndTime         time.Time           `json:"end_time"`
	OccurredAt      time.Time           `json:"occurred_at"`
}

// ServerAuctionUpdateMessage is DTO for an auction update msg sended by the server
type ServerAuctionUpdateMessage struct {
	BaseMessage
	Payload AuctionUpdate `json:"payload"`
}

// NewAuctionUpdateMessage converts a committed domain event into its broadcast.
func NewAuctionUpdateMessage(e domain.AuctionEvent) ServerAuctionUpdateMessage {
	return ServerAuctionUpdateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeServerAuctionUpdate},
		Payload: AuctionUpdate{
			Event:           e.Type,
			AuctionID:       e.AuctionID,
			BidID:           e.BidID,
			BidderID:        e.BidderID,
			Amount:          e.Amount,
			IsProxyBid:      e.IsProxyBid,
			CurrentPrice:    e.CurrentPrice,
			NextMinimumBid:  e.NextMinimumBid,
			HighestBidderID: e.HighestBidderID,
			WinnerID:        e.WinnerID,
			State:           e.State,
			EndTime:         e.EndTime,
			OccurredAt:      e.OccurredAt,
		},
	}
}

// ServerBidResultMessage answers the client that placed a bid or bought now.
type ServerBidResultMessage struct {
	BaseMessage
	Payload struct {
		Bid       *application.BidDTO            `json:"bid"`
		ProxyBids []*application.BidDTO          `json:"proxy_bids,omitempty"`
		Extended  bool                           `json:"extended"`
		Auction   *application.AuctionSummaryDTO `json:"auction"`
	} `json:"payload"`
}

type ServerErrorMessage struct {
	BaseMessage
	Payload apierror.Response `json:"payload"`
}

// ServerInitialStateMessage is sent to a client right after it connects.
type ServerInitialStateMessage struct {
	BaseMessage
	Payload *application.AuctionSummaryDTO `json:"payload"`
}
