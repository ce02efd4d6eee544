package application

import (
	"context"
	"time"

	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// AuctionSummaryDTO is the output DTO for exposing auction state to the UI/WS.
// Derived fields are computed at read time, never stored.
type AuctionSummaryDTO struct {
	AuctionID       uuid.UUID           `json:"auction_id"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	SellerID        uuid.UUID           `json:"seller_id"`
	StartingPrice   domain.Money        `json:"starting_price"`
	CurrentPrice    domain.Money        `json:"current_price"`
	NextMinimumBid  domain.Money        `json:"next_minimum_bid"`
	BidIncrement    domain.Money        `json:"bid_increment"`
	ReservePrice    *domain.Money       `json:"reserve_price,omitempty"`
	ReserveMet      bool                `json:"reserve_met"`
	BuyItNowPrice   *domain.Money       `json:"buy_it_now_price,omitempty"`
	CanBuyNow       bool                `json:"can_buy_now"`
	StartTime       time.Time           `json:"start_time"`
	EndTime         time.Time           `json:"end_time"`
	TimeRemainingMs int64               `json:"time_remaining_ms"`
	AutoExtend      bool                `json:"auto_extend"`
	State           domain.AuctionState `json:"state"`
	HighestBidderID *uuid.UUID          `json:"highest_bidder_id,omitempty"`
	WinnerID        *uuid.UUID          `json:"winner_id,omitempty"`
	FinalPrice      *domain.Money       `json:"final_price,omitempty"`
	TotalBids       int                 `json:"total_bids"`
}

// NewAuctionSummary projects a onto the read model as seen at now.
func NewAuctionSummary(a *domain.Auction, now time.Time) *AuctionSummaryDTO {
	c := a.Clone()
	return &AuctionSummaryDTO{
		AuctionID:       c.ID,
		Title:           c.Title,
		Description:     c.Description,
		SellerID:        c.SellerID,
		StartingPrice:   c.StartingPrice,
		CurrentPrice:    c.CurrentPrice,
		NextMinimumBid:  c.NextMinimumBid(),
		BidIncrement:    c.BidIncrement,
		ReservePrice:    c.ReservePrice,
		ReserveMet:      c.ReserveMet(),
		BuyItNowPrice:   c.BuyItNowPrice,
		CanBuyNow:       c.CanBuyNow(now),
		StartTime:       c.StartTime,
		EndTime:         c.EndTime,
		TimeRemainingMs: c.TimeRemaining(now).Milliseconds(),
		AutoExtend:      c.AutoExtend.Enabled,
		State:           c.EffectiveState(now),
		HighestBidderID: c.HighestBidderID,
		WinnerID:        c.WinnerID,
		FinalPrice:      c.FinalPrice,
		TotalBids:       c.TotalBids,
	}
}

// GetAuctionStateUseCase retrieves the current state of an auction
type GetAuctionStateUseCase struct {
	repos domain.Repositories
	clock Clock
}

// NewGetAuctionStateUseCase creates a new instance of GetAuctionStateUseCase.
func NewGetAuctionStateUseCase(opts Options) *GetAuctionStateUseCase {
	opts = opts.withDefaults()
	return &GetAuctionStateUseCase{repos: opts.Tx.Repositories(), clock: opts.Clock}
}

func (uc *GetAuctionStateUseCase) Execute(ctx context.Context, auctionID uuid.UUID) (*AuctionSummaryDTO, error) {
	a, err := uc.repos.Auctions.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	return NewAuctionSummary(a, uc.clock()), nil
}

// BidStatsDTO aggregates an auction's bid history. Proxy bids count as automatic.
type BidStatsDTO struct {
	TotalBids          int             `json:"total_bids"`
	UniqueBiddersCount int             `json:"unique_bidders_count"`
	HighestBid         domain.Money    `json:"highest_bid"`
	LowestBid          domain.Money    `json:"lowest_bid"`
	AverageBid         decimal.Decimal `json:"average_bid"`
	AutoBidsCount      int             `json:"auto_bids_count"`
	ManualBidsCount    int             `json:"manual_bids_count"`
}

// BidDTO is the read model of a single bid.
type BidDTO struct {
	BidID        uuid.UUID        `json:"bid_id"`
	AuctionID    uuid.UUID        `json:"auction_id"`
	BidderID     uuid.UUID        `json:"bidder_id"`
	Amount       domain.Money     `json:"amount"`
	IsAutoBid    bool             `json:"is_auto_bid"`
	MaxBidAmount *domain.Money    `json:"max_bid_amount,omitempty"`
	IsProxyBid   bool             `json:"is_proxy_bid"`
	HoldAmount   domain.Money     `json:"hold_amount"`
	HoldReleased bool             `json:"hold_released"`
	Status       domain.BidStatus `json:"status"`
	PlacedAt     time.Time        `json:"placed_at"`
}

func NewBidDTO(b *domain.Bid) *BidDTO {
	c := b.Clone()
	return &BidDTO{
		BidID:        c.ID,
		AuctionID:    c.AuctionID,
		BidderID:     c.BidderID,
		Amount:       c.Amount,
		IsAutoBid:    c.IsAutoBid,
		MaxBidAmount: c.MaxBidAmount,
		IsProxyBid:   c.IsProxyBid,
		HoldAmount:   c.HoldAmount,
		HoldReleased: c.HoldReleased,
		Status:       c.Status,
		PlacedAt:     c.PlacedAt,
	}
}

// NewBidDTOs maps bids keeping their order.
func NewBidDTOs(bids []*domain.Bid) []*BidDTO {
	return lo.Map(bids, func(b *domain.Bid, _ int) *BidDTO { return NewBidDTO(b) })
}

// BidHistoryDTO lists an auction's bids, newest first.
type BidHistoryDTO struct {
	AuctionID uuid.UUID   `json:"auction_id"`
	Bids      []*BidDTO   `json:"bids"`
	Stats     BidStatsDTO `json:"stats"`
}

// GetBidHistoryUseCase returns the bids of an auction with their statistics.
type GetBidHistoryUseCase struct {
	repos domain.Repositories
}

func NewGetBidHistoryUseCase(opts Options) *GetBidHistoryUseCase {
	opts = opts.withDefaults()
	return &GetBidHistoryUseCase{repos: opts.Tx.Repositories()}
}

func (uc *GetBidHistoryUseCase) Execute(ctx context.Context, auctionID uuid.UUID) (*BidHistoryDTO, error) {
	if _, err := uc.repos.Auctions.GetByID(ctx, auctionID); err != nil {
		return nil, err
	}
	bids, err := uc.repos.Bids.ListByAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	stats := ComputeBidStats(bids)
	return &BidHistoryDTO{AuctionID: auctionID, Bids: NewBidDTOs(lo.Reverse(bids)), Stats: stats}, nil
}

// ComputeBidStats summarizes bids. The average is rounded to two decimals.
func ComputeBidStats(bids []*domain.Bid) BidStatsDTO {
	if len(bids) == 0 {
		return BidStatsDTO{AverageBid: decimal.Zero}
	}
	amount := func(b *domain.Bid) domain.Money { return b.Amount }
	automatic := lo.CountBy(bids, func(b *domain.Bid) bool { return b.IsAutoBid || b.IsProxyBid })
	total := lo.SumBy(bids, amount)
	return BidStatsDTO{
		TotalBids:          len(bids),
		UniqueBiddersCount: len(lo.UniqBy(bids, func(b *domain.Bid) uuid.UUID { return b.BidderID })),
		HighestBid:         lo.Max(lo.Map(bids, func(b *domain.Bid, _ int) domain.Money { return b.Amount })),
		LowestBid:          lo.Min(lo.Map(bids, func(b *domain.Bid, _ int) domain.Money { return b.Amount })),
		AverageBid:         decimal.NewFromInt(int64(total)).Div(decimal.NewFromInt(int64(len(bids)))).Round(2),
		AutoBidsCount:      automatic,
		ManualBidsCount:    len(bids) - automatic,
	}
}

// GetUserBidsUseCase lists a user's bids across auctions, newest first,
// optionally restricted to one status.
type GetUserBidsUseCase struct {
	repos domain.Repositories
}

func NewGetUserBidsUseCase(opts Options) *GetUserBidsUseCase {
	opts = opts.withDefaults()
	return &GetUserBidsUseCase{repos: opts.Tx.Repositories()}
}

func (uc *GetUserBidsUseCase) Execute(ctx context.Context, userID uuid.UUID, status *domain.BidStatus) ([]*BidDTO, error) {
	bids, err := uc.repos.Bids.ListByBidder(ctx, userID, status)
	if err != nil {
		return nil, err
	}
	return NewBidDTOs(bids), nil
}

// UserBidStatsDTO summarizes a user's bidding across every auction. Proxy bids
// count as automatic.
type UserBidStatsDTO struct {
	TotalBids      int             `json:"total_bids"`
	TotalAmountBid domain.Money    `json:"total_amount_bid"`
	AverageBid     decimal.Decimal `json:"average_bid"`
	HighestBid     domain.Money    `json:"highest_bid"`
	WinningBids    int             `json:"winning_bids"`
	WonBids        int             `json:"won_bids"`
	LostBids       int             `json:"lost_bids"`
	AutoBids       int             `json:"auto_bids"`
	ManualBids     int             `json:"manual_bids"`
	ActiveAuctions int             `json:"active_auctions"`
	SuccessRate    int64           `json:"success_rate"` // won bids as a rounded percentage of all bids
}

// Stats aggregates every bid userID placed.
func (uc *GetUserBidsUseCase) Stats(ctx context.Context, userID uuid.UUID) (*UserBidStatsDTO, error) {
	bids, err := uc.repos.Bids.ListByBidder(ctx, userID, nil)
	if err != nil {
		return nil, err
	}
	stats := ComputeUserBidStats(bids)
	return &stats, nil
}

// ComputeUserBidStats summarizes one user's bids. An auction counts as active
// while one of the bids on it is still open.
func ComputeUserBidStats(bids []*domain.Bid) UserBidStatsDTO {
	if len(bids) == 0 {
		return UserBidStatsDTO{AverageBid: decimal.Zero}
	}
	withStatus := func(s domain.BidStatus) int {
		return lo.CountBy(bids, func(b *domain.Bid) bool { return b.Status == s })
	}
	open := lo.Filter(bids, func(b *domain.Bid, _ int) bool {
		return b.Status == domain.BidActive || b.Status == domain.BidWinning
	})
	total := lo.SumBy(bids, func(b *domain.Bid) domain.Money { return b.Amount })
	automatic := lo.CountBy(bids, func(b *domain.Bid) bool { return b.IsAutoBid || b.IsProxyBid })
	won := withStatus(domain.BidWon)
	count := decimal.NewFromInt(int64(len(bids)))

	return UserBidStatsDTO{
		TotalBids:      len(bids),
		TotalAmountBid: total,
		AverageBid:     decimal.NewFromInt(int64(total)).Div(count).Round(2),
		HighestBid:     lo.Max(lo.Map(bids, func(b *domain.Bid, _ int) domain.Money { return b.Amount })),
		WinningBids:    withStatus(domain.BidWinning),
		WonBids:        won,
		LostBids:       withStatus(domain.BidLost),
		AutoBids:       automatic,
		ManualBids:     len(bids) - automatic,
		ActiveAuctions: len(lo.UniqBy(open, func(b *domain.Bid) uuid.UUID { return b.AuctionID })),
		SuccessRate:    decimal.NewFromInt(int64(won * 100)).Div(count).Round(0).IntPart(),
	}
}
