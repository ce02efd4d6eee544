package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlaceBidDTO is DTO input for PlaceBid useCase, contains the necesary data to make a bid
type PlaceBidDTO struct {
	AuctionID    uuid.UUID
	BidderID     uuid.UUID
	Amount       domain.Money
	IsAutoBid    bool
	MaxBidAmount *domain.Money
}

// PlaceBidResult is the accepted bid, the proxy bids it triggered and the
// auction as it stands after the cascade.
type PlaceBidResult struct {
	Bid       *domain.Bid
	ProxyBids []*domain.Bid
	Auction   *AuctionSummaryDTO
	Extended  bool
}

// PlaceBidUseCase is useCase to make a bid in an auction, orchestrate bussines logic and persistence
type PlaceBidUseCase struct {
	opts      Options
	validator domain.BidValidator
	book      *BidBook
	resolver  *ProxyResolver
}

// NewPlaceBidUseCase creates a new instace of PlaceBidUseCase struct, it receives dependency through injection
func NewPlaceBidUseCase(opts Options) *PlaceBidUseCase {
	opts = opts.withDefaults()
	book := NewBidBook(opts.Tx, opts.Holds, opts.Clock)
	return &PlaceBidUseCase{
		opts:      opts,
		validator: domain.NewBidValidator(opts.Holds),
		book:      book,
		resolver:  NewProxyResolver(book, opts.Holds),
	}
}

// Execute accepts the bid and runs the proxy cascade as one transaction,
// serialized with every other mutation of the same auction.
func (uc *PlaceBidUseCase) Execute(ctx context.Context, cmd PlaceBidDTO) (*PlaceBidResult, error) {
	log.Info("Executing PlaceBidUseCase",
		zap.String("auctionID", cmd.AuctionID.String()),
		zap.String("bidderID", cmd.BidderID.String()),
		zap.Int64("amount", int64(cmd.Amount)),
		zap.Bool("isAutoBid", cmd.IsAutoBid),
	)

	var (
		result *PlaceBidResult
		events []domain.AuctionEvent
	)
	err := withAuctionLock(ctx, uc.opts.Locker, cmd.AuctionID, func() error {
		return uc.opts.Retry.Do(ctx, "place_bid", func() error {
			var err error
			result, events, err = uc.placeBid(ctx, cmd)
			return err
		})
	})
	if err != nil {
		var rejectedErr *domain.BidRejectedError
		if !errors.As(err, &rejectedErr) {
			log.Error("PlaceBidUseCase: Failed to place bid",
				zap.String("auctionID", cmd.AuctionID.String()),
				zap.String("bidderID", cmd.BidderID.String()),
				zap.Error(err),
			)
		}
		return nil, fmt.Errorf("place bid use case: bid failed for auction %s: %w", cmd.AuctionID, err)
	}

	publish(ctx, uc.opts.Publisher, events)
	log.Info("PlaceBidUseCase: Bid accepted",
		zap.String("auctionID", cmd.AuctionID.String()),
		zap.String("bidID", result.Bid.ID.String()),
		zap.Int("proxyBids", len(result.ProxyBids)),
		zap.Int64("currentPrice", int64(result.Auction.CurrentPrice)),
	)
	return result, nil
}

func (uc *PlaceBidUseCase) placeBid(ctx context.Context, cmd PlaceBidDTO) (*PlaceBidResult, []domain.AuctionEvent, error) {
	var (
		result *PlaceBidResult
		events []domain.AuctionEvent
	)
	err := uc.opts.Tx.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		now := uc.opts.Clock()
		req := domain.BidRequest{
			AuctionID:    cmd.AuctionID,
			BidderID:     cmd.BidderID,
			Amount:       cmd.Amount,
			IsAutoBid:    cmd.IsAutoBid,
			MaxBidAmount: cmd.MaxBidAmount,
		}

		// 1. load the auction row locked for the rest of the transaction, apply a pending activation
		a, err := repos.Auctions.GetForUpdate(ctx, cmd.AuctionID)
		if errors.Is(err, domain.ErrAuctionNotFound) {
			return uc.validator.Validate(nil, nil, req, now)
		}
		if err != nil {
			return err
		}
		activated := a.Activate(now)

		// 2. validate, nothing is written before every rule passed
		bidder, err := repos.Ledger.GetBidder(ctx, cmd.BidderID)
		if err != nil && !errors.Is(err, domain.ErrBidderNotFound) {
			return err
		}
		if err := uc.validator.Validate(a, bidder, req, now); err != nil {
			return err
		}

		// 3. a new auto-bid replaces the bidder's previous instruction on this auction
		if cmd.IsAutoBid {
			if err := uc.retireStanding(ctx, repos, a.ID, cmd.BidderID, now); err != nil {
				return err
			}
		}

		// 4. hold, apply, record and relabel
		var bid *domain.Bid
		hold := uc.opts.Holds.HoldFor(cmd.Amount)
		if cmd.IsAutoBid {
			bid = domain.NewAutoBid(a.ID, cmd.BidderID, cmd.Amount, *cmd.MaxBidAmount, a.BidIncrement, hold, now)
		} else {
			bid = domain.NewBid(a.ID, cmd.BidderID, cmd.Amount, a.BidIncrement, hold, now)
		}
		extended, err := uc.book.Accept(ctx, repos, a, bid, now)
		if errors.Is(err, domain.ErrInsufficientFunds) {
			return insufficientBalance(uc.opts.Holds, bidder, cmd.Amount)
		}
		if err != nil {
			return err
		}

		// 5. let the standing auto-bids answer
		cascade, err := uc.resolver.Resolve(ctx, repos, a, now)
		if err != nil {
			return err
		}

		if err := repos.Auctions.Save(ctx, a); err != nil {
			return err
		}

		placed, err := repos.Bids.GetByID(ctx, bid.ID)
		if err != nil {
			return err
		}
		result = &PlaceBidResult{
			Bid:       placed,
			ProxyBids: cascade.Bids,
			Auction:   NewAuctionSummary(a, now),
			Extended:  extended || cascade.Extended,
		}

		events = events[:0]
		if activated {
			events = append(events, domain.NewAuctionEvent(domain.EventAuctionActivated, a, now))
		}
		events = append(events, domain.NewBidPlacedEvent(a, bid, now))
		for _, proxy := range cascade.Bids {
			events = append(events, domain.NewBidPlacedEvent(a, proxy, now))
		}
		if result.Extended {
			events = append(events, domain.NewAuctionEvent(domain.EventAuctionExtended, a, now))
		}
		return nil
	})
	return result, events, err
}

// retireStanding cancels the instructions a bidder registered before, so only
// the newest auto-bid per bidder is ever standing.
func (uc *PlaceBidUseCase) retireStanding(ctx context.Context, repos domain.Repositories, auctionID, bidderID uuid.UUID, now time.Time) error {
	standing, err := repos.Bids.ListStandingAutoBids(ctx, auctionID, uuid.Nil)
	if err != nil {
		return err
	}
	for _, b := range standing {
		if b.BidderID != bidderID {
			continue
		}
		if err := b.CancelAutoBid(now); err != nil {
			return err
		}
		if err := repos.Bids.Update(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// insufficientBalance rebuilds the validator's rejection when the balance
// changed between validation and the hold.
func insufficientBalance(holds domain.HoldPolicy, bidder *domain.Bidder, amount domain.Money) error {
	err := &domain.BidRejectedError{
		Reason:          domain.ErrInsufficientBalance,
		RequiredBalance: holds.HoldFor(amount),
	}
	if bidder != nil {
		err.CurrentBalance = bidder.Balance
	}
	return err
}
