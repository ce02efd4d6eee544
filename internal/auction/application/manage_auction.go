package application

import (
	"context"
	"fmt"
	"time"

	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateAuctionDTO is the listing a seller submits.
type CreateAuctionDTO struct {
	SellerID         uuid.UUID
	Title            string
	Description      string
	StartingPrice    domain.Money
	ReservePrice     *domain.Money
	BuyItNowPrice    *domain.Money
	BidIncrement     domain.Money
	StartTime        time.Time
	EndTime          time.Time
	AutoExtend       bool
	AutoExtendPeriod time.Duration
	Draft            bool
}

func (cmd CreateAuctionDTO) params() domain.NewAuctionParams {
	period := cmd.AutoExtendPeriod
	if cmd.AutoExtend && period == 0 {
		period = DefaultAutoExtendPeriod
	}
	return domain.NewAuctionParams{
		Title:         cmd.Title,
		Description:   cmd.Description,
		SellerID:      cmd.SellerID,
		StartingPrice: cmd.StartingPrice,
		ReservePrice:  cmd.ReservePrice,
		BuyItNowPrice: cmd.BuyItNowPrice,
		BidIncrement:  cmd.BidIncrement,
		StartTime:     cmd.StartTime,
		EndTime:       cmd.EndTime,
		AutoExtend:    domain.AutoExtendPolicy{Enabled: cmd.AutoExtend, Extension: period},
		Draft:         cmd.Draft,
	}
}

// DefaultAutoExtendPeriod applies when auto-extend is enabled without a period.
const DefaultAutoExtendPeriod = 5 * time.Minute

// ManageAuctionUseCase covers the seller side of the auction lifecycle.
type ManageAuctionUseCase struct {
	opts Options
}

func NewManageAuctionUseCase(opts Options) *ManageAuctionUseCase {
	return &ManageAuctionUseCase{opts: opts.withDefaults()}
}

// Create lists a new auction: as a draft when asked, active when its start
// time already passed, scheduled otherwise.
func (uc *ManageAuctionUseCase) Create(ctx context.Context, cmd CreateAuctionDTO) (*AuctionSummaryDTO, error) {
	now := uc.opts.Clock()
	if cmd.StartTime.IsZero() {
		cmd.StartTime = now
	}
	a, err := domain.NewAuction(cmd.params(), now)
	if err != nil {
		return nil, err
	}

	err = uc.opts.Tx.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		return repos.Auctions.Create(ctx, a)
	})
	if err != nil {
		log.Error("ManageAuctionUseCase: Failed to create auction",
			zap.String("sellerID", cmd.SellerID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("manage auction use case: create auction: %w", err)
	}
	log.Info("Auction created",
		zap.String("auctionID", a.ID.String()),
		zap.String("sellerID", a.SellerID.String()),
		zap.String("state", string(a.State)),
	)
	return NewAuctionSummary(a, now), nil
}

// Update replaces the terms of a listing while nobody has bid on it.
func (uc *ManageAuctionUseCase) Update(ctx context.Context, auctionID uuid.UUID, cmd CreateAuctionDTO) (*AuctionSummaryDTO, error) {
	return uc.transition(ctx, "update_auction", auctionID, cmd.SellerID, func(a *domain.Auction, now time.Time) (*domain.AuctionEvent, error) {
		if cmd.StartTime.IsZero() {
			cmd.StartTime = now
		}
		if err := a.Revise(cmd.params(), now); err != nil {
			return nil, err
		}
		e := domain.NewAuctionEvent(domain.EventAuctionUpdated, a, now)
		return &e, nil
	})
}

// Publish takes a draft live.
func (uc *ManageAuctionUseCase) Publish(ctx context.Context, auctionID, sellerID uuid.UUID) (*AuctionSummaryDTO, error) {
	return uc.transition(ctx, "publish_auction", auctionID, sellerID, func(a *domain.Auction, now time.Time) (*domain.AuctionEvent, error) {
		if err := a.Publish(now); err != nil {
			return nil, err
		}
		if a.State != domain.StateActive {
			return nil, nil
		}
		e := domain.NewAuctionEvent(domain.EventAuctionActivated, a, now)
		return &e, nil
	})
}

// Cancel withdraws an auction nobody has bid on.
func (uc *ManageAuctionUseCase) Cancel(ctx context.Context, auctionID, sellerID uuid.UUID) (*AuctionSummaryDTO, error) {
	return uc.transition(ctx, "cancel_auction", auctionID, sellerID, func(a *domain.Auction, now time.Time) (*domain.AuctionEvent, error) {
		if err := a.Cancel(now); err != nil {
			return nil, err
		}
		e := domain.NewAuctionEvent(domain.EventAuctionCancelled, a, now)
		return &e, nil
	})
}

// Delete removes an auction for good. Once bidding started only Cancel is possible.
func (uc *ManageAuctionUseCase) Delete(ctx context.Context, auctionID, sellerID uuid.UUID) error {
	err := withAuctionLock(ctx, uc.opts.Locker, auctionID, func() error {
		return uc.opts.Tx.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
			a, err := repos.Auctions.GetForUpdate(ctx, auctionID)
			if err != nil {
				return err
			}
			if a.SellerID != sellerID {
				return domain.ErrNotAuctionOwner
			}
			if a.TotalBids > 0 {
				return domain.ErrAuctionHasBids
			}
			return repos.Auctions.Delete(ctx, auctionID)
		})
	})
	if err != nil {
		return fmt.Errorf("manage auction use case: delete auction %s: %w", auctionID, err)
	}
	log.Info("Auction deleted", zap.String("auctionID", auctionID.String()))
	return nil
}

func (uc *ManageAuctionUseCase) transition(ctx context.Context, op string, auctionID, sellerID uuid.UUID, fn func(a *domain.Auction, now time.Time) (*domain.AuctionEvent, error)) (*AuctionSummaryDTO, error) {
	var (
		summary *AuctionSummaryDTO
		event   *domain.AuctionEvent
	)
	err := withAuctionLock(ctx, uc.opts.Locker, auctionID, func() error {
		return uc.opts.Retry.Do(ctx, op, func() error {
			return uc.opts.Tx.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
				now := uc.opts.Clock()
				a, err := repos.Auctions.GetForUpdate(ctx, auctionID)
				if err != nil {
					return err
				}
				if a.SellerID != sellerID {
					return domain.ErrNotAuctionOwner
				}
				if event, err = fn(a, now); err != nil {
					return err
				}
				if err := repos.Auctions.Save(ctx, a); err != nil {
					return err
				}
				summary = NewAuctionSummary(a, now)
				return nil
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("manage auction use case: %s %s: %w", op, auctionID, err)
	}
	if event != nil {
		publish(ctx, uc.opts.Publisher, []domain.AuctionEvent{*event})
	}
	return summary, nil
}
