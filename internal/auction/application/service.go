package application

import (
	"context"

	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	"github.com/google/uuid"
)

// AuctionService defines application interface layer of auction module
// exposes uses cases to external layer, aka infra
type AuctionService interface {
	// PlaceBid handles logic when a user makes a bid in an auction
	// receives a command with necesary data and returns the accepted bid or an error
	PlaceBid(ctx context.Context, cmd PlaceBidDTO) (*PlaceBidResult, error)
	BuyNow(ctx context.Context, cmd BuyNowDTO) (*BuyNowResult, error)
	CancelAutoBid(ctx context.Context, bidID, userID uuid.UUID) (*domain.Bid, error)
	UpdateMaxBid(ctx context.Context, cmd UpdateMaxBidDTO) (*domain.Bid, error)

	CreateAuction(ctx context.Context, cmd CreateAuctionDTO) (*AuctionSummaryDTO, error)
	UpdateAuction(ctx context.Context, auctionID uuid.UUID, cmd CreateAuctionDTO) (*AuctionSummaryDTO, error)
	PublishAuction(ctx context.Context, auctionID, sellerID uuid.UUID) (*AuctionSummaryDTO, error)
	CancelAuction(ctx context.Context, auctionID, sellerID uuid.UUID) (*AuctionSummaryDTO, error)
	DeleteAuction(ctx context.Context, auctionID, sellerID uuid.UUID) error

	FinalizeAuction(ctx context.Context, auctionID uuid.UUID) (*Settlement, error)
	FinalizeExpiredAuctions(ctx context.Context) (int, error)

	GetAuctionState(ctx context.Context, auctionID uuid.UUID) (*AuctionSummaryDTO, error)
	GetBidHistory(ctx context.Context, auctionID uuid.UUID) (*BidHistoryDTO, error)
	GetUserBids(ctx context.Context, userID uuid.UUID, status *domain.BidStatus) ([]*BidDTO, error)
	GetUserBidStats(ctx context.Context, userID uuid.UUID) (*UserBidStatsDTO, error)
}

// concret implementation of AuctionService (struct)
type auctionService struct {
	placeBidUC    *PlaceBidUseCase
	buyNowUC      *BuyNowUseCase
	autoBidUC     *AutoBidUseCase
	manageUC      *ManageAuctionUseCase
	finalizeUC    *FinalizeUseCase
	getStateUC    *GetAuctionStateUseCase
	bidHistoryUC  *GetBidHistoryUseCase
	getUserBidsUC *GetUserBidsUseCase
}

// NewAuctionService wires every use case over the same collaborators.
func NewAuctionService(opts Options) AuctionService {
	opts = opts.withDefaults()
	return &auctionService{
		placeBidUC:    NewPlaceBidUseCase(opts),
		buyNowUC:      NewBuyNowUseCase(opts),
		autoBidUC:     NewAutoBidUseCase(opts),
		manageUC:      NewManageAuctionUseCase(opts),
		finalizeUC:    NewFinalizeUseCase(opts),
		getStateUC:    NewGetAuctionStateUseCase(opts),
		bidHistoryUC:  NewGetBidHistoryUseCase(opts),
		getUserBidsUC: NewGetUserBidsUseCase(opts),
	}
}

// PlaceBid implements AuctionService.
func (as *auctionService) PlaceBid(ctx context.Context, cmd PlaceBidDTO) (*PlaceBidResult, error) {
	return as.placeBidUC.Execute(ctx, cmd)
}

func (as *auctionService) BuyNow(ctx context.Context, cmd BuyNowDTO) (*BuyNowResult, error) {
	return as.buyNowUC.Execute(ctx, cmd)
}

func (as *auctionService) CancelAutoBid(ctx context.Context, bidID, userID uuid.UUID) (*domain.Bid, error) {
	return as.autoBidUC.CancelAutoBid(ctx, bidID, userID)
}

func (as *auctionService) UpdateMaxBid(ctx context.Context, cmd UpdateMaxBidDTO) (*domain.Bid, error) {
	return as.autoBidUC.UpdateMaxBid(ctx, cmd)
}

func (as *auctionService) CreateAuction(ctx context.Context, cmd CreateAuctionDTO) (*AuctionSummaryDTO, error) {
	return as.manageUC.Create(ctx, cmd)
}

func (as *auctionService) UpdateAuction(ctx context.Context, auctionID uuid.UUID, cmd CreateAuctionDTO) (*AuctionSummaryDTO, error) {
	return as.manageUC.Update(ctx, auctionID, cmd)
}

func (as *auctionService) PublishAuction(ctx context.Context, auctionID, sellerID uuid.UUID) (*AuctionSummaryDTO, error) {
	return as.manageUC.Publish(ctx, auctionID, sellerID)
}

func (as *auctionService) CancelAuction(ctx context.Context, auctionID, sellerID uuid.UUID) (*AuctionSummaryDTO, error) {
	return as.manageUC.Cancel(ctx, auctionID, sellerID)
}

func (as *auctionService) DeleteAuction(ctx context.Context, auctionID, sellerID uuid.UUID) error {
	return as.manageUC.Delete(ctx, auctionID, sellerID)
}

func (as *auctionService) FinalizeAuction(ctx context.Context, auctionID uuid.UUID) (*Settlement, error) {
	return as.finalizeUC.FinalizeAuction(ctx, auctionID)
}

func (as *auctionService) FinalizeExpiredAuctions(ctx context.Context) (int, error) {
	return as.finalizeUC.FinalizeExpiredAuctions(ctx)
}

// GetAuctionState to implementss AuctionService
func (as *auctionService) GetAuctionState(ctx context.Context, auctionID uuid.UUID) (*AuctionSummaryDTO, error) {
	return as.getStateUC.Execute(ctx, auctionID)
}

func (as *auctionService) GetBidHistory(ctx context.Context, auctionID uuid.UUID) (*BidHistoryDTO, error) {
	return as.bidHistoryUC.Execute(ctx, auctionID)
}

func (as *auctionService) GetUserBids(ctx context.Context, userID uuid.UUID, status *domain.BidStatus) ([]*BidDTO, error) {
	return as.getUserBidsUC.Execute(ctx, userID, status)
}

func (as *auctionService) GetUserBidStats(ctx context.Context, userID uuid.UUID) (*UserBidStatsDTO, error) {
	return as.getUserBidsUC.Stats(ctx, userID)
}
