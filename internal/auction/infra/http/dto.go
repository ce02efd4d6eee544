package http

import (
	"time"

	"github.com/cristianortiz/auctionHouse/internal/auction/application"
	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	"github.com/google/uuid"
)

// Request/Response DTOs
type CreateAuctionRequest struct {
	Title                   string        `json:"title"`
	Description             string        `json:"description"`
	StartingPrice           domain.Money  `json:"starting_price"`
	ReservePrice            *domain.Money `json:"reserve_price,omitempty"`
	BuyItNowPrice           *domain.Money `json:"buy_it_now_price,omitempty"`
	BidIncrement            domain.Money  `json:"bid_increment"`
	StartTime               *time.Time    `json:"start_time,omitempty"`
	EndTime                 time.Time     `json:"end_time"`
	AutoExtend              bool          `json:"auto_extend"`
	AutoExtendPeriodSeconds int           `json:"auto_extend_period_seconds"`
	Draft                   bool          `json:"draft"`
}

func (r CreateAuctionRequest) toCommand(sellerID uuid.UUID) application.CreateAuctionDTO {
	cmd := application.CreateAuctionDTO{
		SellerID:         sellerID,
		Title:            r.Title,
		Description:      r.Description,
		StartingPrice:    r.StartingPrice,
		ReservePrice:     r.ReservePrice,
		BuyItNowPrice:    r.BuyItNowPrice,
		BidIncrement:     r.BidIncrement,
		EndTime:          r.EndTime,
		AutoExtend:       r.AutoExtend,
		AutoExtendPeriod: time.Duration(r.AutoExtendPeriodSeconds) * time.Second,
		Draft:            r.Draft,
	}
	if r.StartTime != nil {
		cmd.StartTime = *r.StartTime
	}
	return cmd
}

type PlaceBidRequest struct {
	Amount       domain.Money  `json:"amount"`
	IsAutoBid    bool          `json:"is_auto_bid"`
	MaxBidAmount *domain.Money `json:"max_bid_amount,omitempty"`
}

type UpdateMaxBidRequest struct {
	MaxBidAmount domain.Money `json:"max_bid_amount"`
}

type PlaceBidResponse struct {
	Bid       *application.BidDTO            `json:"bid"`
	ProxyBids []*application.BidDTO          `json:"proxy_bids"`
	Extended  bool                           `json:"extended"`
	Auction   *application.AuctionSummaryDTO `json:"auction"`
}

type BuyNowResponse struct {
	FinalPrice domain.Money                   `json:"final_price"`
	Bid        *application.BidDTO            `json:"bid"`
	Auction    *application.AuctionSummaryDTO `json:"auction"`
}

type SettlementResponse struct {
	AuctionID  uuid.UUID           `json:"auction_id"`
	Finalized  bool                `json:"finalized"`
	Sold       bool                `json:"sold"`
	WinnerID   *uuid.UUID          `json:"winner_id,omitempty"`
	FinalPrice *domain.Money       `json:"final_price,omitempty"`
	State      domain.AuctionState `json:"state"`
}
