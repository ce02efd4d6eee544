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

// BidBook is the bid history of every auction: it records accepted bids,
// keeps a single winning bid per auction and releases the holds of losing bids.
type BidBook struct {
	tx    domain.TxManager
	holds domain.HoldPolicy
	clock Clock
}

func NewBidBook(tx domain.TxManager, holds domain.HoldPolicy, clock Clock) *BidBook {
	return &BidBook{tx: tx, holds: holds, clock: clock}
}

// Accept runs the acceptance steps for a bid that already passed validation:
// hold its funds, apply it to the auction, record it and make it the winning
// bid. It reports whether the auction end time was extended.
func (bb *BidBook) Accept(ctx context.Context, repos domain.Repositories, a *domain.Auction, bid *domain.Bid, now time.Time) (bool, error) {
	if err := repos.Ledger.Hold(ctx, bid.BidderID, bid.HoldAmount); err != nil {
		return false, err
	}
	extended, err := a.ApplyBid(bid, now)
	if err != nil {
		return false, err
	}
	if err := bb.Record(ctx, repos, bid); err != nil {
		return false, err
	}
	if err := bb.UpdateStatuses(ctx, repos, a.ID, bid.ID); err != nil {
		return false, err
	}
	return extended, nil
}

// Record persists bid as active with its hold derived from the amount.
func (bb *BidBook) Record(ctx context.Context, repos domain.Repositories, bid *domain.Bid) error {
	bid.Status = domain.BidActive
	bid.HoldAmount = bb.holds.HoldFor(bid.Amount)
	if err := repos.Bids.Insert(ctx, bid); err != nil {
		return fmt.Errorf("record bid %s: %w", bid.ID, err)
	}
	return nil
}

// UpdateStatuses outbids every other open bid of the auction and marks winningBidID as winning.
func (bb *BidBook) UpdateStatuses(ctx context.Context, repos domain.Repositories, auctionID, winningBidID uuid.UUID) error {
	if err := repos.Bids.MarkWinning(ctx, auctionID, winningBidID); err != nil {
		return fmt.Errorf("update statuses of auction %s: %w", auctionID, err)
	}
	return nil
}

// Finalize marks every bid of winnerID as won and the rest as lost. Holds are
// released afterwards by ReleaseHolds, outside the settling transaction.
func (bb *BidBook) Finalize(ctx context.Context, repos domain.Repositories, auctionID uuid.UUID, winnerID *uuid.UUID) error {
	if err := repos.Bids.FinalizeStatuses(ctx, auctionID, winnerID); err != nil {
		return fmt.Errorf("finalize bids of auction %s: %w", auctionID, err)
	}
	return nil
}

// ReleaseHolds credits back the hold of every lost bid still holding funds,
// restricted to one auction when auctionID is set. Each release commits on its
// own, a failure is logged and left for the next sweep. It returns how many
// holds were released.
func (bb *BidBook) ReleaseHolds(ctx context.Context, auctionID *uuid.UUID, limit int) (int, error) {
	pending, err := bb.tx.Repositories().Bids.ListUnreleasedLosing(ctx, auctionID, limit)
	if err != nil {
		return 0, fmt.Errorf("list unreleased holds: %w", err)
	}

	released := 0
	for _, b := range pending {
		if err := ctx.Err(); err != nil {
			return released, err
		}
		ok, err := bb.release(ctx, b.ID)
		if err != nil {
			log.Error("Failed to release bid hold",
				zap.String("bidID", b.ID.String()),
				zap.String("auctionID", b.AuctionID.String()),
				zap.String("bidderID", b.BidderID.String()),
				zap.Int64("holdAmount", int64(b.HoldAmount)),
				zap.Error(err),
			)
			continue
		}
		if ok {
			released++
		}
	}
	if released > 0 {
		log.Info("Bid holds released", zap.Int("released", released), zap.Int("pending", len(pending)))
	}
	return released, nil
}

// release credits one hold and flags the bid in the same transaction, so the
// flag and the balance never disagree. A hold already flagged is skipped.
func (bb *BidBook) release(ctx context.Context, bidID uuid.UUID) (bool, error) {
	released := false
	err := bb.tx.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		released = false
		b, err := repos.Bids.GetForUpdate(ctx, bidID)
		if err != nil {
			return err
		}
		if b.Status != domain.BidLost || !b.MarkHoldReleased(bb.clock()) {
			return nil
		}
		if err := repos.Ledger.Release(ctx, b.BidderID, b.HoldAmount); err != nil {
			return err
		}
		if err := repos.Bids.Update(ctx, b); err != nil {
			return err
		}
		released = true
		return nil
	})
	if errors.Is(err, domain.ErrBidNotFound) {
		return false, nil
	}
	return released, err
}
