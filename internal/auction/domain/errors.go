package domain

import "errors"

// bid acceptance errors, the validator returns the first failing one in this order
var (
	ErrAuctionNotFound              = errors.New("auction not found")
	ErrAuctionNotAcceptingBids      = errors.New("auction is not accepting bids")
	ErrSelfBiddingNotAllowed        = errors.New("sellers cannot bid on their own auction")
	ErrBidTooLow                    = errors.New("bid amount is too low")
	ErrBidTooHigh                   = errors.New("bid amount exceeds the maximum allowed")
	ErrBidderNotFound               = errors.New("bidder not found")
	ErrInsufficientBalance          = errors.New("insufficient balance for bid hold")
	ErrInvalidMaxBidAmount          = errors.New("max bid amount must be greater than or equal to the bid amount")
	ErrInsufficientBalanceForMaxBid = errors.New("insufficient balance for max bid amount")
	ErrConcurrentModification       = errors.New("auction was modified concurrently")
	ErrInsufficientFunds            = errors.New("insufficient funds")
)

// lifecycle errors
var (
	ErrBuyNowNotAvailable = errors.New("buy it now is not available for this auction")
	ErrBidNotFound        = errors.New("bid not found")
	ErrNotBidOwner        = errors.New("bid belongs to another user")
	ErrNotAutoBid         = errors.New("bid is not an auto-bid")
	ErrAuctionNotActive   = errors.New("auction is not active")
	ErrMaxBidTooLow       = errors.New("max bid amount must not be below the current price")
	ErrInvalidAuction     = errors.New("invalid auction")
	ErrInvalidTransition  = errors.New("invalid auction state transition")
	ErrAuctionHasBids     = errors.New("auction already has bids")
	ErrNotAuctionOwner    = errors.New("auction belongs to another seller")
)

// BidRejectedError carries the reason a bid was refused together with the
// values the caller needs to correct it.
type BidRejectedError struct {
	Reason          error
	MinimumBid      Money
	RequiredBalance Money
	CurrentBalance  Money
}

func (e *BidRejectedError) Error() string {
	return e.Reason.Error()
}

func (e *BidRejectedError) Unwrap() error {
	return e.Reason
}

func rejected(reason error) *BidRejectedError {
	return &BidRejectedError{Reason: reason}
}
