package domain

import (
	"time"

	"github.com/google/uuid"
)

// BidStatus tracks a bid from placement to settlement
type BidStatus string

const (
	BidActive  BidStatus = "active"
	BidOutbid  BidStatus = "outbid"
	BidWinning BidStatus = "winning"
	BidWon     BidStatus = "won"
	BidLost    BidStatus = "lost"
)

// IsTerminal is true once the auction has been settled for this bid.
func (s BidStatus) IsTerminal() bool {
	return s == BidWon || s == BidLost
}

// Bid is an individual offer on an auction. Amount never changes after creation.
type Bid struct {
	ID            uuid.UUID
	AuctionID     uuid.UUID
	BidderID      uuid.UUID
	Amount        Money
	IncrementUsed Money
	// auto-bid instruction, only present on the bid that registered it
	IsAutoBid    bool
	MaxBidAmount *Money
	// proxy bids are placed by the resolver on behalf of ProxyBidderID,
	// SourceBidID points at the standing auto-bid that produced them
	IsProxyBid      bool
	ProxyBidderID   *uuid.UUID
	SourceBidID     *uuid.UUID
	HoldAmount      Money
	HoldReleased    bool
	HoldReleaseDate *time.Time
	Status          BidStatus
	Seq             int64 // storage assigned, breaks ties between equal PlacedAt
	PlacedAt        time.Time
	UpdatedAt       time.Time
}

// NewBid creates a manual bid with its hold already computed.
func NewBid(auctionID, bidderID uuid.UUID, amount, increment, hold Money, now time.Time) *Bid {
	return &Bid{
		ID:            uuid.New(),
		AuctionID:     auctionID,
		BidderID:      bidderID,
		Amount:        amount,
		IncrementUsed: increment,
		HoldAmount:    hold,
		Status:        BidActive,
		PlacedAt:      now,
		UpdatedAt:     now,
	}
}

// NewAutoBid creates a bid that also registers a standing instruction to
// counter-bid up to maxBid.
func NewAutoBid(auctionID, bidderID uuid.UUID, amount, maxBid, increment, hold Money, now time.Time) *Bid {
	b := NewBid(auctionID, bidderID, amount, increment, hold, now)
	b.IsAutoBid = true
	b.MaxBidAmount = &maxBid
	return b
}

// NewProxyBid creates the counter-bid the resolver places for a standing auto-bid.
func NewProxyBid(source *Bid, amount, hold Money, now time.Time) *Bid {
	b := NewBid(source.AuctionID, source.BidderID, amount, source.IncrementUsed, hold, now)
	b.IsProxyBid = true
	bidder := source.BidderID
	sourceID := source.ID
	b.ProxyBidderID = &bidder
	b.SourceBidID = &sourceID
	return b
}

// IsStanding reports whether this bid still carries a live auto-bid instruction.
func (b *Bid) IsStanding() bool {
	return b.IsAutoBid && !b.IsProxyBid && b.MaxBidAmount != nil && *b.MaxBidAmount > 0 && !b.Status.IsTerminal()
}

// CanAutoBid reports whether the instruction allows bidding amount.
func (b *Bid) CanAutoBid(amount Money) bool {
	return b.IsStanding() && amount <= *b.MaxBidAmount
}

// MaxBid returns the auto-bid ceiling or zero.
func (b *Bid) MaxBid() Money {
	if b.MaxBidAmount == nil {
		return 0
	}
	return *b.MaxBidAmount
}

// CancelAutoBid clears the instruction. Proxy bids already placed are untouched.
func (b *Bid) CancelAutoBid(now time.Time) error {
	if !b.IsAutoBid {
		return ErrNotAutoBid
	}
	b.IsAutoBid = false
	b.MaxBidAmount = nil
	b.UpdatedAt = now
	return nil
}

// UpdateMaxBid replaces the auto-bid ceiling.
func (b *Bid) UpdateMaxBid(maxBid Money, now time.Time) error {
	if !b.IsAutoBid {
		return ErrNotAutoBid
	}
	b.MaxBidAmount = &maxBid
	b.UpdatedAt = now
	return nil
}

// MarkHoldReleased flags the hold as credited back. Returns false when it
// already was, so callers never credit twice.
func (b *Bid) MarkHoldReleased(now time.Time) bool {
	if b.HoldReleased {
		return false
	}
	b.HoldReleased = true
	b.HoldReleaseDate = &now
	b.UpdatedAt = now
	return true
}

// Clone returns a deep copy, safe to mutate independently.
func (b *Bid) Clone() *Bid {
	c := *b
	if b.MaxBidAmount != nil {
		m := *b.MaxBidAmount
		c.MaxBidAmount = &m
	}
	if b.ProxyBidderID != nil {
		p := *b.ProxyBidderID
		c.ProxyBidderID = &p
	}
	if b.SourceBidID != nil {
		s := *b.SourceBidID
		c.SourceBidID = &s
	}
	if b.HoldReleaseDate != nil {
		d := *b.HoldReleaseDate
		c.HoldReleaseDate = &d
	}
	return &c
}
