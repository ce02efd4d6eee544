package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Settlement reports what FinalizeAuction did to one auction.
type Settlement struct {
	AuctionID  uuid.UUID
	Finalized  bool // false when the auction was already settled or not yet expired
	Sold       bool
	WinnerID   *uuid.UUID
	FinalPrice *domain.Money
	State      domain.AuctionState
}

// FinalizeUseCase settles expired auctions and runs the other lifecycle
// chores the sweeper schedules: pending activations and hold releases.
type FinalizeUseCase struct {
	opts Options
	book *BidBook
}

func NewFinalizeUseCase(opts Options) *FinalizeUseCase {
	opts = opts.withDefaults()
	return &FinalizeUseCase{opts: opts, book: NewBidBook(opts.Tx, opts.Holds, opts.Clock)}
}

// FinalizeAuction settles one auction if its end time passed. Calling it on an
// auction that is already settled, or still running, changes nothing.
func (uc *FinalizeUseCase) FinalizeAuction(ctx context.Context, auctionID uuid.UUID) (*Settlement, error) {
	var (
		settlement *Settlement
		events     []domain.AuctionEvent
	)
	err := withAuctionLock(ctx, uc.opts.Locker, auctionID, func() error {
		return uc.opts.Retry.Do(ctx, "finalize_auction", func() error {
			var err error
			settlement, events, err = uc.settle(ctx, auctionID)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("finalize use case: settle auction %s: %w", auctionID, err)
	}
	if !settlement.Finalized {
		return settlement, nil
	}

	if _, err := uc.book.ReleaseHolds(ctx, &auctionID, 0); err != nil {
		log.Error("FinalizeUseCase: Failed to release losing holds, left for the sweeper",
			zap.String("auctionID", auctionID.String()),
			zap.Error(err),
		)
	}
	publish(ctx, uc.opts.Publisher, events)
	return settlement, nil
}

func (uc *FinalizeUseCase) settle(ctx context.Context, auctionID uuid.UUID) (*Settlement, []domain.AuctionEvent, error) {
	var (
		settlement *Settlement
		events     []domain.AuctionEvent
	)
	err := uc.opts.Tx.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		now := uc.opts.Clock()
		a, err := repos.Auctions.GetForUpdate(ctx, auctionID)
		if err != nil {
			return err
		}
		settlement = &Settlement{AuctionID: a.ID, State: a.State, WinnerID: a.WinnerID, FinalPrice: a.FinalPrice}
		events = nil
		if !a.IsExpired(now) {
			return nil
		}

		sold, err := a.Settle(now)
		if err != nil {
			return err
		}
		if err := uc.book.Finalize(ctx, repos, a.ID, a.WinnerID); err != nil {
			return err
		}
		if err := repos.Auctions.Save(ctx, a); err != nil {
			return err
		}

		settlement = &Settlement{
			AuctionID:  a.ID,
			Finalized:  true,
			Sold:       sold,
			WinnerID:   a.WinnerID,
			FinalPrice: a.FinalPrice,
			State:      a.State,
		}
		eventType := domain.EventAuctionEnded
		if sold {
			eventType = domain.EventAuctionSold
		}
		events = []domain.AuctionEvent{domain.NewAuctionEvent(eventType, a, now)}
		return nil
	})
	return settlement, events, err
}

// FinalizeExpiredAuctions settles every auction whose end time passed and
// returns how many it settled. A failing auction is logged and skipped, its
// error is returned joined with the others once the batch is done.
func (uc *FinalizeUseCase) FinalizeExpiredAuctions(ctx context.Context) (int, error) {
	ids, err := uc.opts.Tx.Repositories().Auctions.ListExpired(ctx, uc.opts.Clock(), uc.opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("finalize use case: list expired auctions: %w", err)
	}

	finalized := 0
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return finalized, err
		}
		s, err := uc.FinalizeAuction(ctx, id)
		if err != nil {
			log.Error("FinalizeUseCase: Failed to settle expired auction",
				zap.String("auctionID", id.String()),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		if s.Finalized {
			finalized++
		}
	}
	if finalized > 0 {
		log.Info("Expired auctions settled", zap.Int("finalized", finalized), zap.Int("candidates", len(ids)))
	}
	return finalized, errors.Join(errs...)
}

// ActivateDue moves scheduled auctions whose start time passed to active and
// returns how many it activated.
func (uc *FinalizeUseCase) ActivateDue(ctx context.Context) (int, error) {
	ids, err := uc.opts.Tx.Repositories().Auctions.ListDueForActivation(ctx, uc.opts.Clock(), uc.opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("finalize use case: list auctions due for activation: %w", err)
	}

	activated := 0
	var errs []error
	for _, id := range ids {
		ok, err := uc.activate(ctx, id)
		if err != nil {
			log.Error("FinalizeUseCase: Failed to activate auction",
				zap.String("auctionID", id.String()),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		if ok {
			activated++
		}
	}
	return activated, errors.Join(errs...)
}

func (uc *FinalizeUseCase) activate(ctx context.Context, auctionID uuid.UUID) (bool, error) {
	var event *domain.AuctionEvent
	err := withAuctionLock(ctx, uc.opts.Locker, auctionID, func() error {
		return uc.opts.Retry.Do(ctx, "activate_auction", func() error {
			event = nil
			return uc.opts.Tx.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
				now := uc.opts.Clock()
				a, err := repos.Auctions.GetForUpdate(ctx, auctionID)
				if err != nil {
					return err
				}
				if !a.Activate(now) {
					return nil
				}
				if err := repos.Auctions.Save(ctx, a); err != nil {
					return err
				}
				e := domain.NewAuctionEvent(domain.EventAuctionActivated, a, now)
				event = &e
				return nil
			})
		})
	})
	if err != nil || event == nil {
		return false, err
	}
	publish(ctx, uc.opts.Publisher, []domain.AuctionEvent{*event})
	return true, nil
}

// RetryHoldReleases credits back holds of lost bids an earlier settlement
// failed to release.
func (uc *FinalizeUseCase) RetryHoldReleases(ctx context.Context) (int, error) {
	return uc.book.ReleaseHolds(ctx, nil, uc.opts.BatchSize)
}
