package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BuyNowDTO is the input of the buy-it-now purchase.
type BuyNowDTO struct {
	AuctionID uuid.UUID
	BuyerID   uuid.UUID
}

// BuyNowResult is the sale the purchase produced.
type BuyNowResult struct {
	FinalPrice domain.Money
	WinningBid *domain.Bid
	Auction    *AuctionSummaryDTO
}

// BuyNowUseCase ends an auction immediately at its buy-it-now price.
type BuyNowUseCase struct {
	opts      Options
	validator domain.BidValidator
	book      *BidBook
}

func NewBuyNowUseCase(opts Options) *BuyNowUseCase {
	opts = opts.withDefaults()
	return &BuyNowUseCase{
		opts:      opts,
		validator: domain.NewBidValidator(opts.Holds),
		book:      NewBidBook(opts.Tx, opts.Holds, opts.Clock),
	}
}

// Execute records the purchase as the single won bid, loses every earlier bid
// and, once committed, releases the holds of the losing bids.
func (uc *BuyNowUseCase) Execute(ctx context.Context, cmd BuyNowDTO) (*BuyNowResult, error) {
	log.Info("Executing BuyNowUseCase",
		zap.String("auctionID", cmd.AuctionID.String()),
		zap.String("buyerID", cmd.BuyerID.String()),
	)

	var (
		result *BuyNowResult
		events []domain.AuctionEvent
	)
	err := withAuctionLock(ctx, uc.opts.Locker, cmd.AuctionID, func() error {
		return uc.opts.Retry.Do(ctx, "buy_now", func() error {
			var err error
			result, events, err = uc.buyNow(ctx, cmd)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("buy now use case: purchase failed for auction %s: %w", cmd.AuctionID, err)
	}

	if _, err := uc.book.ReleaseHolds(ctx, &cmd.AuctionID, 0); err != nil {
		log.Error("BuyNowUseCase: Failed to release losing holds, left for the sweeper",
			zap.String("auctionID", cmd.AuctionID.String()),
			zap.Error(err),
		)
	}

	publish(ctx, uc.opts.Publisher, events)
	return result, nil
}

func (uc *BuyNowUseCase) buyNow(ctx context.Context, cmd BuyNowDTO) (*BuyNowResult, []domain.AuctionEvent, error) {
	var (
		result *BuyNowResult
		events []domain.AuctionEvent
	)
	err := uc.opts.Tx.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		now := uc.opts.Clock()

		a, err := repos.Auctions.GetForUpdate(ctx, cmd.AuctionID)
		if errors.Is(err, domain.ErrAuctionNotFound) {
			return uc.validator.ValidateBuyNow(nil, nil, cmd.BuyerID, now)
		}
		if err != nil {
			return err
		}
		a.Activate(now)

		buyer, err := repos.Ledger.GetBidder(ctx, cmd.BuyerID)
		if err != nil && !errors.Is(err, domain.ErrBidderNotFound) {
			return err
		}
		if err := uc.validator.ValidateBuyNow(a, buyer, cmd.BuyerID, now); err != nil {
			return err
		}

		price := *a.BuyItNowPrice
		bid := domain.NewBid(a.ID, cmd.BuyerID, price, 0, uc.opts.Holds.HoldFor(price), now)
		if err := repos.Ledger.Hold(ctx, cmd.BuyerID, bid.HoldAmount); err != nil {
			if errors.Is(err, domain.ErrInsufficientFunds) {
				return insufficientBalance(uc.opts.Holds, buyer, price)
			}
			return err
		}
		if err := a.SellTo(bid, now); err != nil {
			return err
		}
		if err := uc.book.Record(ctx, repos, bid); err != nil {
			return err
		}
		if err := uc.book.Finalize(ctx, repos, a.ID, a.WinnerID); err != nil {
			return err
		}
		if err := repos.Auctions.Save(ctx, a); err != nil {
			return err
		}

		bid.Status = domain.BidWon
		result = &BuyNowResult{
			FinalPrice: price,
			WinningBid: bid,
			Auction:    NewAuctionSummary(a, now),
		}
		events = []domain.AuctionEvent{
			domain.NewBidPlacedEvent(a, bid, now),
			domain.NewAuctionEvent(domain.EventAuctionSold, a, now),
		}
		return nil
	})
	return result, events, err
}
