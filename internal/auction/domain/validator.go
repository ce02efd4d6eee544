package domain

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Bidder is the ledger view of a user taking part in an auction
type Bidder struct {
	ID      uuid.UUID
	Balance Money
}

// BidRequest is a submitted bid before acceptance
type BidRequest struct {
	AuctionID    uuid.UUID
	BidderID     uuid.UUID
	Amount       Money
	IsAutoBid    bool
	MaxBidAmount *Money
}

// BidValidator enforces the acceptance rules. It never mutates its inputs.
type BidValidator struct {
	holds HoldPolicy
}

func NewBidValidator(holds HoldPolicy) BidValidator {
	return BidValidator{holds: holds}
}

// Validate checks req against the auction and the bidder's balance and
// returns the first failing rule, always in the same order:
// auction exists, accepts bids, not the seller, minimum increment, amount
// bound, bidder exists, hold covered, then the auto-bid ceiling and its hold.
func (v BidValidator) Validate(a *Auction, bidder *Bidder, req BidRequest, now time.Time) error {
	if a == nil {
		return rejected(ErrAuctionNotFound)
	}
	if !a.CanAcceptBids(now) {
		return v.warn(a, req, rejected(ErrAuctionNotAcceptingBids))
	}
	if req.BidderID == a.SellerID {
		return v.warn(a, req, rejected(ErrSelfBiddingNotAllowed))
	}
	if minimum := a.NextMinimumBid(); req.Amount < minimum {
		err := rejected(ErrBidTooLow)
		err.MinimumBid = minimum
		return v.warn(a, req, err)
	}
	if req.Amount > MaxAmount {
		return v.warn(a, req, rejected(ErrBidTooHigh))
	}
	if bidder == nil {
		return v.warn(a, req, rejected(ErrBidderNotFound))
	}
	if !v.holds.Covers(bidder.Balance, req.Amount) {
		err := rejected(ErrInsufficientBalance)
		err.RequiredBalance = v.holds.HoldFor(req.Amount)
		err.CurrentBalance = bidder.Balance
		return v.warn(a, req, err)
	}
	if req.IsAutoBid {
		if req.MaxBidAmount == nil || *req.MaxBidAmount < req.Amount || *req.MaxBidAmount > MaxAmount {
			err := rejected(ErrInvalidMaxBidAmount)
			err.MinimumBid = req.Amount
			return v.warn(a, req, err)
		}
		if !v.holds.Covers(bidder.Balance, *req.MaxBidAmount) {
			err := rejected(ErrInsufficientBalanceForMaxBid)
			err.RequiredBalance = v.holds.HoldFor(*req.MaxBidAmount)
			err.CurrentBalance = bidder.Balance
			return v.warn(a, req, err)
		}
	}
	return nil
}

// ValidateBuyNow checks a buy-it-now purchase by buyer.
func (v BidValidator) ValidateBuyNow(a *Auction, buyer *Bidder, buyerID uuid.UUID, now time.Time) error {
	if a == nil {
		return rejected(ErrAuctionNotFound)
	}
	req := BidRequest{AuctionID: a.ID, BidderID: buyerID}
	if a.BuyItNowPrice != nil {
		req.Amount = *a.BuyItNowPrice
	}
	if a.BuyItNowPrice == nil || a.CurrentPrice >= *a.BuyItNowPrice {
		return v.warn(a, req, rejected(ErrBuyNowNotAvailable))
	}
	if !a.CanAcceptBids(now) {
		return v.warn(a, req, rejected(ErrAuctionNotAcceptingBids))
	}
	if buyerID == a.SellerID {
		return v.warn(a, req, rejected(ErrSelfBiddingNotAllowed))
	}
	if buyer == nil {
		return v.warn(a, req, rejected(ErrBidderNotFound))
	}
	if !v.holds.Covers(buyer.Balance, req.Amount) {
		err := rejected(ErrInsufficientBalance)
		err.RequiredBalance = v.holds.HoldFor(req.Amount)
		err.CurrentBalance = buyer.Balance
		return v.warn(a, req, err)
	}
	return nil
}

func (v BidValidator) warn(a *Auction, req BidRequest, err *BidRejectedError) error {
	log.Warn("Bid rejected",
		zap.String("auctionID", a.ID.String()),
		zap.String("bidderID", req.BidderID.String()),
		zap.Int64("amount", int64(req.Amount)),
		zap.Int64("currentPrice", int64(a.CurrentPrice)),
		zap.String("state", string(a.State)),
		zap.Error(err.Reason),
	)
	return err
}
