package apierror

import (
	"errors"
	"net/http"

	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	userdomain "github.com/cristianortiz/auctionHouse/internal/user/domain"
	"github.com/samber/lo"
)

// Response is the error body shared by the REST and WebSocket adapters.
// The amounts are only set when the caller can use them to correct the request.
type Response struct {
	Error           string        `json:"error"`
	Code            string        `json:"code"`
	MinimumBid      *domain.Money `json:"minimum_bid,omitempty"`
	RequiredBalance *domain.Money `json:"required_balance,omitempty"`
	CurrentBalance  *domain.Money `json:"current_balance,omitempty"`
}

type mapping struct {
	err    error
	status int
	code   string
}

// first match wins, so wrapped rejections resolve to their reason
var mappings = []mapping{
	{domain.ErrAuctionNotFound, http.StatusNotFound, "AUCTION_NOT_FOUND"},
	{domain.ErrAuctionNotAcceptingBids, http.StatusConflict, "AUCTION_NOT_ACCEPTING_BIDS"},
	{domain.ErrSelfBiddingNotAllowed, http.StatusForbidden, "SELF_BIDDING_NOT_ALLOWED"},
	{domain.ErrBidTooLow, http.StatusUnprocessableEntity, "BID_TOO_LOW"},
	{domain.ErrBidTooHigh, http.StatusUnprocessableEntity, "BID_TOO_HIGH"},
	{domain.ErrBidderNotFound, http.StatusNotFound, "BIDDER_NOT_FOUND"},
	{domain.ErrInsufficientBalance, http.StatusPaymentRequired, "INSUFFICIENT_BALANCE"},
	{domain.ErrInvalidMaxBidAmount, http.StatusUnprocessableEntity, "INVALID_MAX_BID_AMOUNT"},
	{domain.ErrInsufficientBalanceForMaxBid, http.StatusPaymentRequired, "INSUFFICIENT_BALANCE_FOR_MAX_BID"},
	{domain.ErrInsufficientFunds, http.StatusPaymentRequired, "INSUFFICIENT_BALANCE"},
	{domain.ErrConcurrentModification, http.StatusConflict, "CONCURRENT_MODIFICATION"},
	{domain.ErrBuyNowNotAvailable, http.StatusConflict, "BUY_NOW_NOT_AVAILABLE"},
	{domain.ErrBidNotFound, http.StatusNotFound, "BID_NOT_FOUND"},
	{domain.ErrNotBidOwner, http.StatusForbidden, "NOT_BID_OWNER"},
	{domain.ErrNotAutoBid, http.StatusUnprocessableEntity, "NOT_AUTO_BID"},
	{domain.ErrAuctionNotActive, http.StatusConflict, "AUCTION_NOT_ACTIVE"},
	{domain.ErrMaxBidTooLow, http.StatusUnprocessableEntity, "MAX_BID_TOO_LOW"},
	{domain.ErrInvalidAuction, http.StatusBadRequest, "INVALID_AUCTION"},
	{domain.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
	{domain.ErrAuctionHasBids, http.StatusConflict, "AUCTION_HAS_BIDS"},
	{domain.ErrNotAuctionOwner, http.StatusForbidden, "NOT_AUCTION_OWNER"},
	{userdomain.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
}

// Map translates an application error to its HTTP status and response body.
// Unknown errors become a 500 without leaking their message.
func Map(err error) (int, Response) {
	m, ok := lo.Find(mappings, func(m mapping) bool { return errors.Is(err, m.err) })
	if !ok {
		return http.StatusInternalServerError, Response{Error: "internal server error", Code: "INTERNAL_ERROR"}
	}

	resp := Response{Error: m.err.Error(), Code: m.code}
	var rejected *domain.BidRejectedError
	if errors.As(err, &rejected) {
		resp.MinimumBid = positive(rejected.MinimumBid)
		resp.RequiredBalance = positive(rejected.RequiredBalance)
		if resp.RequiredBalance != nil {
			resp.CurrentBalance = lo.ToPtr(rejected.CurrentBalance)
		}
	}
	return m.status, resp
}

// New builds a Response for errors raised by the adapters themselves.
func New(code, message string) Response {
	return Response{Error: message, Code: code}
}

func positive(m domain.Money) *domain.Money {
	if m <= 0 {
		return nil
	}
	return &m
}
