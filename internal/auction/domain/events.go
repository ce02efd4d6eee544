package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType names a post-commit auction notification
type EventType string

const (
	EventBidPlaced        EventType = "bid_placed"
	EventAuctionExtended  EventType = "auction_extended"
	EventAuctionActivated EventType = "auction_activated"
	EventAuctionSold      EventType = "auction_sold"
	EventAuctionEnded     EventType = "auction_ended"
	EventAuctionCancelled EventType = "auction_cancelled"
	EventAuctionUpdated   EventType = "auction_updated"
)

// AuctionEvent is emitted only after the transaction that caused it committed.
type AuctionEvent struct {
	Type            EventType
	AuctionID       uuid.UUID
	BidID           *uuid.UUID
	BidderID        *uuid.UUID
	Amount          Money
	IsProxyBid      bool
	CurrentPrice    Money
	NextMinimumBid  Money
	HighestBidderID *uuid.UUID
	WinnerID        *uuid.UUID
	State           AuctionState
	EndTime         time.Time
	OccurredAt      time.Time
}

// NewAuctionEvent snapshots the auction fields every event carries.
func NewAuctionEvent(t EventType, a *Auction, now time.Time) AuctionEvent {
	c := a.Clone()
	return AuctionEvent{
		Type:            t,
		AuctionID:       c.ID,
		CurrentPrice:    c.CurrentPrice,
		NextMinimumBid:  c.NextMinimumBid(),
		HighestBidderID: c.HighestBidderID,
		WinnerID:        c.WinnerID,
		State:           c.State,
		EndTime:         c.EndTime,
		OccurredAt:      now,
	}
}

// NewBidPlacedEvent describes an accepted bid against the auction after it was applied.
func NewBidPlacedEvent(a *Auction, b *Bid, now time.Time) AuctionEvent {
	e := NewAuctionEvent(EventBidPlaced, a, now)
	bidID, bidderID := b.ID, b.BidderID
	e.BidID = &bidID
	e.BidderID = &bidderID
	e.Amount = b.Amount
	e.IsProxyBid = b.IsProxyBid
	return e
}

//go:generate mockgen -source=events.go -destination=mocks/mock_events.go -package=mocks

// EventPublisher delivers events fire-and-forget. Implementations must not block
// the caller on network I/O.
type EventPublisher interface {
	Publish(ctx context.Context, events ...AuctionEvent)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...AuctionEvent) {}
