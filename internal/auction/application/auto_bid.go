package application

import (
	"context"
	"fmt"

	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UpdateMaxBidDTO raises or lowers the ceiling of a standing auto-bid.
type UpdateMaxBidDTO struct {
	BidID        uuid.UUID
	UserID       uuid.UUID
	MaxBidAmount domain.Money
}

// AutoBidUseCase manages the standing instruction carried by an auto-bid.
// Neither operation places bids, the new ceiling is used by the next cascade.
type AutoBidUseCase struct {
	opts Options
}

func NewAutoBidUseCase(opts Options) *AutoBidUseCase {
	return &AutoBidUseCase{opts: opts.withDefaults()}
}

// CancelAutoBid stops a bidder's auto-bid. Proxy bids already placed on its
// behalf stay as they are.
func (uc *AutoBidUseCase) CancelAutoBid(ctx context.Context, bidID, userID uuid.UUID) (*domain.Bid, error) {
	bid, err := uc.mutate(ctx, "cancel_auto_bid", bidID, userID, func(ctx context.Context, repos domain.Repositories, a *domain.Auction, b *domain.Bid) error {
		return b.CancelAutoBid(uc.opts.Clock())
	})
	if err != nil {
		return nil, fmt.Errorf("auto-bid use case: cancel auto-bid %s: %w", bidID, err)
	}
	log.Info("Auto-bid cancelled",
		zap.String("bidID", bidID.String()),
		zap.String("auctionID", bid.AuctionID.String()),
		zap.String("userID", userID.String()),
	)
	return bid, nil
}

// UpdateMaxBid replaces the ceiling. It must not be below the current price and
// the bidder's balance must cover the hold of the new ceiling.
func (uc *AutoBidUseCase) UpdateMaxBid(ctx context.Context, cmd UpdateMaxBidDTO) (*domain.Bid, error) {
	if cmd.MaxBidAmount <= 0 || cmd.MaxBidAmount > domain.MaxAmount {
		return nil, &domain.BidRejectedError{Reason: domain.ErrInvalidMaxBidAmount}
	}
	bid, err := uc.mutate(ctx, "update_max_bid", cmd.BidID, cmd.UserID, func(ctx context.Context, repos domain.Repositories, a *domain.Auction, b *domain.Bid) error {
		if cmd.MaxBidAmount < a.CurrentPrice {
			return &domain.BidRejectedError{Reason: domain.ErrMaxBidTooLow, MinimumBid: a.CurrentPrice}
		}
		bidder, err := repos.Ledger.GetBidder(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		if !uc.opts.Holds.Covers(bidder.Balance, cmd.MaxBidAmount) {
			return &domain.BidRejectedError{
				Reason:          domain.ErrInsufficientBalanceForMaxBid,
				RequiredBalance: uc.opts.Holds.HoldFor(cmd.MaxBidAmount),
				CurrentBalance:  bidder.Balance,
			}
		}
		return b.UpdateMaxBid(cmd.MaxBidAmount, uc.opts.Clock())
	})
	if err != nil {
		return nil, fmt.Errorf("auto-bid use case: update max bid of %s: %w", cmd.BidID, err)
	}
	log.Info("Auto-bid ceiling updated",
		zap.String("bidID", cmd.BidID.String()),
		zap.String("auctionID", bid.AuctionID.String()),
		zap.Int64("maxBidAmount", int64(cmd.MaxBidAmount)),
	)
	return bid, nil
}

// mutate loads the bid and its auction under the auction lock, checks
// ownership, that the bid is an auto-bid and that the auction still runs,
// then applies fn and saves the bid.
func (uc *AutoBidUseCase) mutate(ctx context.Context, op string, bidID, userID uuid.UUID, fn func(ctx context.Context, repos domain.Repositories, a *domain.Auction, b *domain.Bid) error) (*domain.Bid, error) {
	current, err := uc.opts.Tx.Repositories().Bids.GetByID(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if current.BidderID != userID {
		return nil, domain.ErrNotBidOwner
	}

	var updated *domain.Bid
	err = withAuctionLock(ctx, uc.opts.Locker, current.AuctionID, func() error {
		return uc.opts.Retry.Do(ctx, op, func() error {
			return uc.opts.Tx.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
				b, err := repos.Bids.GetForUpdate(ctx, bidID)
				if err != nil {
					return err
				}
				if !b.IsAutoBid {
					return domain.ErrNotAutoBid
				}
				a, err := repos.Auctions.GetForUpdate(ctx, b.AuctionID)
				if err != nil {
					return err
				}
				if !a.IsActive(uc.opts.Clock()) {
					return domain.ErrAuctionNotActive
				}
				if err := fn(ctx, repos, a, b); err != nil {
					return err
				}
				if err := repos.Bids.Update(ctx, b); err != nil {
					return err
				}
				updated = b
				return nil
			})
		})
	})
	return updated, err
}
