package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/cristianortiz/auctionHouse/internal/shared/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// AuctionState represents the lifecycle state of an auction
type AuctionState string

const (
	StateDraft     AuctionState = "draft"
	StateScheduled AuctionState = "scheduled"
	StateActive    AuctionState = "active"
	StateEnded     AuctionState = "ended"
	StateSold      AuctionState = "sold"
	StateCancelled AuctionState = "cancelled"
)

// IsTerminal reports whether no further transition is possible.
func (s AuctionState) IsTerminal() bool {
	return s == StateEnded || s == StateSold || s == StateCancelled
}

// DefaultBidIncrement is used when an auction is created without one.
const DefaultBidIncrement Money = 100

// AutoExtendPolicy pushes the end time back when a bid lands inside the trailing window.
type AutoExtendPolicy struct {
	Enabled   bool
	Extension time.Duration
}

// Auction is the aggregate root of the bidding context
type Auction struct {
	ID              uuid.UUID
	Title           string
	Description     string
	SellerID        uuid.UUID
	StartingPrice   Money
	CurrentPrice    Money
	ReservePrice    *Money // nil means always met
	BuyItNowPrice   *Money
	BidIncrement    Money
	StartTime       time.Time
	EndTime         time.Time
	AutoExtend      AutoExtendPolicy
	State           AuctionState
	HighestBidderID *uuid.UUID
	WinnerID        *uuid.UUID // set only by settlement or buy-now
	FinalPrice      *Money
	BidIDs          []uuid.UUID
	TotalBids       int
	Version         int64 // optimistic concurrency token, bumped by every save
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewAuctionParams is the input of NewAuction
type NewAuctionParams struct {
	Title         string
	Description   string
	SellerID      uuid.UUID
	StartingPrice Money
	ReservePrice  *Money
	BuyItNowPrice *Money
	BidIncrement  Money
	StartTime     time.Time
	EndTime       time.Time
	AutoExtend    AutoExtendPolicy
	Draft         bool
}

// NewAuction validates the listing and derives its initial state: draft when
// requested, active when the start time has already passed, scheduled otherwise.
func NewAuction(p NewAuctionParams, now time.Time) (*Auction, error) {
	if p.BidIncrement == 0 {
		p.BidIncrement = DefaultBidIncrement
	}
	if err := p.validate(now); err != nil {
		return nil, err
	}

	a := &Auction{
		ID:            uuid.New(),
		Title:         strings.TrimSpace(p.Title),
		Description:   p.Description,
		SellerID:      p.SellerID,
		StartingPrice: p.StartingPrice,
		CurrentPrice:  p.StartingPrice,
		ReservePrice:  p.ReservePrice,
		BuyItNowPrice: p.BuyItNowPrice,
		BidIncrement:  p.BidIncrement,
		StartTime:     p.StartTime,
		EndTime:       p.EndTime,
		AutoExtend:    p.AutoExtend,
		State:         StateScheduled,
		BidIDs:        []uuid.UUID{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if p.Draft {
		a.State = StateDraft
	} else {
		a.Activate(now)
	}
	return a, nil
}

func (p NewAuctionParams) validate(now time.Time) error {
	switch {
	case strings.TrimSpace(p.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidAuction)
	case p.SellerID == uuid.Nil:
		return fmt.Errorf("%w: seller is required", ErrInvalidAuction)
	case p.StartingPrice < 1:
		return fmt.Errorf("%w: starting price must be at least 1", ErrInvalidAuction)
	case p.BidIncrement < 1:
		return fmt.Errorf("%w: bid increment must be at least 1", ErrInvalidAuction)
	case p.StartingPrice > MaxAmount || p.BidIncrement > MaxAmount:
		return fmt.Errorf("%w: amounts must not exceed %d", ErrInvalidAuction, MaxAmount)
	case p.ReservePrice != nil && *p.ReservePrice > MaxAmount, p.BuyItNowPrice != nil && *p.BuyItNowPrice > MaxAmount:
		return fmt.Errorf("%w: amounts must not exceed %d", ErrInvalidAuction, MaxAmount)
	case !p.EndTime.After(p.StartTime):
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidAuction)
	case !p.EndTime.After(now):
		return fmt.Errorf("%w: end time must be in the future", ErrInvalidAuction)
	case p.ReservePrice != nil && *p.ReservePrice < p.StartingPrice:
		return fmt.Errorf("%w: reserve price must be greater than or equal to starting price", ErrInvalidAuction)
	case p.BuyItNowPrice != nil && *p.BuyItNowPrice <= p.StartingPrice:
		return fmt.Errorf("%w: buy it now price must be greater than starting price", ErrInvalidAuction)
	case p.AutoExtend.Enabled && p.AutoExtend.Extension <= 0:
		return fmt.Errorf("%w: auto-extend duration must be positive", ErrInvalidAuction)
	}
	return nil
}

// Revise replaces the listing terms of an auction nobody has bid on yet, under
// the same rules as NewAuction. A draft stays a draft, any other auction has
// its state derived again from the new start time.
func (a *Auction) Revise(p NewAuctionParams, now time.Time) error {
	if a.State.IsTerminal() {
		return fmt.Errorf("%w: cannot update auction in state %s", ErrInvalidTransition, a.State)
	}
	if a.TotalBids > 0 {
		return ErrAuctionHasBids
	}
	p.SellerID = a.SellerID
	if p.BidIncrement == 0 {
		p.BidIncrement = DefaultBidIncrement
	}
	if err := p.validate(now); err != nil {
		return err
	}

	a.Title = strings.TrimSpace(p.Title)
	a.Description = p.Description
	a.StartingPrice = p.StartingPrice
	a.CurrentPrice = p.StartingPrice
	a.ReservePrice = p.ReservePrice
	a.BuyItNowPrice = p.BuyItNowPrice
	a.BidIncrement = p.BidIncrement
	a.StartTime = p.StartTime
	a.EndTime = p.EndTime
	a.AutoExtend = p.AutoExtend
	a.UpdatedAt = now
	if a.State != StateDraft {
		a.State = StateScheduled
		a.Activate(now)
	}
	return nil
}

// Activate moves a scheduled auction to active once its start time is reached.
// It reports whether a transition happened.
func (a *Auction) Activate(now time.Time) bool {
	if a.State != StateScheduled || now.Before(a.StartTime) {
		return false
	}
	a.State = StateActive
	a.UpdatedAt = now
	log.Info("Auction activated",
		zap.String("auctionID", a.ID.String()),
		zap.Time("startTime", a.StartTime),
		zap.Time("endTime", a.EndTime),
	)
	return true
}

// Publish takes a draft live.
func (a *Auction) Publish(now time.Time) error {
	if a.State != StateDraft {
		return fmt.Errorf("%w: cannot publish auction in state %s", ErrInvalidTransition, a.State)
	}
	if !a.EndTime.After(now) {
		return fmt.Errorf("%w: end time already passed", ErrInvalidAuction)
	}
	a.State = StateScheduled
	a.UpdatedAt = now
	a.Activate(now)
	return nil
}

// IsActive is computed from the persisted state and the clock, never cached.
func (a *Auction) IsActive(now time.Time) bool {
	return a.State == StateActive && !now.Before(a.StartTime) && now.Before(a.EndTime)
}

// CanAcceptBids is true iff the auction is active, now is inside
// [StartTime, EndTime) and no winner has been assigned.
func (a *Auction) CanAcceptBids(now time.Time) bool {
	return a.IsActive(now) && a.WinnerID == nil
}

// NextMinimumBid is the lowest amount the next bid may have.
func (a *Auction) NextMinimumBid() Money {
	return a.CurrentPrice + a.BidIncrement
}

// ApplyBid makes bid the current highest one and applies the auto-extend
// policy against now. It reports whether the end time moved.
func (a *Auction) ApplyBid(bid *Bid, now time.Time) (bool, error) {
	if bid.AuctionID != a.ID {
		return false, fmt.Errorf("%w: bid %s belongs to auction %s", ErrInvalidTransition, bid.ID, bid.AuctionID)
	}
	if bid.Amount <= a.CurrentPrice {
		err := rejected(ErrBidTooLow)
		err.MinimumBid = a.NextMinimumBid()
		return false, err
	}

	bidder := bid.BidderID
	a.CurrentPrice = bid.Amount
	a.HighestBidderID = &bidder
	a.BidIDs = append(a.BidIDs, bid.ID)
	a.TotalBids++
	a.UpdatedAt = now

	return a.extendIfClosing(now), nil
}

func (a *Auction) extendIfClosing(now time.Time) bool {
	if !a.AutoExtend.Enabled || a.AutoExtend.Extension <= 0 {
		return false
	}
	if a.EndTime.Sub(now) > a.AutoExtend.Extension {
		return false
	}
	original := a.EndTime
	a.EndTime = a.EndTime.Add(a.AutoExtend.Extension)
	log.Info("Auction time extended",
		zap.String("auctionID", a.ID.String()),
		zap.Time("originalEndTime", original),
		zap.Time("newEndTime", a.EndTime),
		zap.Duration("extension", a.AutoExtend.Extension),
	)
	return true
}

// ReserveMet is true when there is no reserve or the current price reaches it.
func (a *Auction) ReserveMet() bool {
	return a.ReservePrice == nil || a.CurrentPrice >= *a.ReservePrice
}

// CanBuyNow reports whether the buy-it-now price is still on offer.
func (a *Auction) CanBuyNow(now time.Time) bool {
	return a.BuyItNowPrice != nil && a.CanAcceptBids(now) && a.CurrentPrice < *a.BuyItNowPrice
}

// SellTo ends the auction immediately at the buy-it-now price.
func (a *Auction) SellTo(bid *Bid, now time.Time) error {
	if !a.CanBuyNow(now) {
		return ErrBuyNowNotAvailable
	}
	buyer := bid.BidderID
	price := *a.BuyItNowPrice
	a.CurrentPrice = price
	a.HighestBidderID = &buyer
	a.WinnerID = &buyer
	a.FinalPrice = &price
	a.BidIDs = append(a.BidIDs, bid.ID)
	a.TotalBids++
	a.EndTime = now
	a.State = StateSold
	a.UpdatedAt = now
	log.Info("Auction sold via buy it now",
		zap.String("auctionID", a.ID.String()),
		zap.String("buyerID", buyer.String()),
		zap.Int64("finalPrice", int64(price)),
	)
	return nil
}

// IsExpired reports whether the auction is still open in storage although its end time passed.
func (a *Auction) IsExpired(now time.Time) bool {
	return (a.State == StateActive || a.State == StateScheduled) && !now.Before(a.EndTime)
}

// Settle ends an expired auction. When the reserve is met and at least one bid
// exists the highest bidder becomes the winner and the auction is sold.
// It reports whether the auction was sold.
func (a *Auction) Settle(now time.Time) (bool, error) {
	if !a.IsExpired(now) {
		return false, fmt.Errorf("%w: cannot settle auction in state %s before %s", ErrInvalidTransition, a.State, a.EndTime)
	}
	a.State = StateEnded
	a.UpdatedAt = now

	if a.ReserveMet() && a.TotalBids > 0 && a.HighestBidderID != nil {
		winner := *a.HighestBidderID
		price := a.CurrentPrice
		a.WinnerID = &winner
		a.FinalPrice = &price
		a.State = StateSold
	}
	log.Info("Auction settled",
		zap.String("auctionID", a.ID.String()),
		zap.String("state", string(a.State)),
		zap.Int64("currentPrice", int64(a.CurrentPrice)),
		zap.Bool("reserveMet", a.ReserveMet()),
	)
	return a.State == StateSold, nil
}

// Cancel withdraws an auction that nobody has bid on yet.
func (a *Auction) Cancel(now time.Time) error {
	if a.State.IsTerminal() {
		return fmt.Errorf("%w: auction already %s", ErrInvalidTransition, a.State)
	}
	if a.TotalBids > 0 {
		return ErrAuctionHasBids
	}
	a.State = StateCancelled
	a.UpdatedAt = now
	log.Info("Auction cancelled", zap.String("auctionID", a.ID.String()))
	return nil
}

// EffectiveState is the state a reader should see at now, with pending
// activation and expiry applied without mutating the auction.
func (a *Auction) EffectiveState(now time.Time) AuctionState {
	switch a.State {
	case StateScheduled:
		if !now.Before(a.EndTime) {
			return StateEnded
		}
		if !now.Before(a.StartTime) {
			return StateActive
		}
	case StateActive:
		if !now.Before(a.EndTime) {
			return StateEnded
		}
	}
	return a.State
}

// TimeRemaining until the end time, zero once the auction is over.
func (a *Auction) TimeRemaining(now time.Time) time.Duration {
	if a.State.IsTerminal() || a.State == StateDraft {
		return 0
	}
	if d := a.EndTime.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Clone returns a deep copy, safe to mutate independently.
func (a *Auction) Clone() *Auction {
	c := *a
	c.ReservePrice = cloneMoney(a.ReservePrice)
	c.BuyItNowPrice = cloneMoney(a.BuyItNowPrice)
	c.FinalPrice = cloneMoney(a.FinalPrice)
	if a.HighestBidderID != nil {
		id := *a.HighestBidderID
		c.HighestBidderID = &id
	}
	if a.WinnerID != nil {
		id := *a.WinnerID
		c.WinnerID = &id
	}
	c.BidIDs = append([]uuid.UUID(nil), a.BidIDs...)
	return &c
}

func cloneMoney(m *Money) *Money {
	if m == nil {
		return nil
	}
	v := *m
	return &v
}
