package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	"github.com/cristianortiz/auctionHouse/internal/shared/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const auctionColumns = `id, title, description, seller_id, starting_price, current_price,
        reserve_price, buy_it_now_price, bid_increment, start_time, end_time,
        auto_extend_enabled, auto_extend_ms, state, highest_bidder_id, winner_id,
        final_price, total_bids, version, created_at, updated_at`

// AuctionRepository implements domain.AuctionRepository
type AuctionRepository struct {
	q db.Querier
}

// NewAuctionRepository works on a pool or inside a transaction alike
func NewAuctionRepository(q db.Querier) *AuctionRepository {
	return &AuctionRepository{q: q}
}

func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	return r.get(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, id)
}

// GetForUpdate locks the auction row until the surrounding transaction ends.
func (r *AuctionRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	return r.get(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1 FOR UPDATE`, id)
}

func (r *AuctionRepository) get(ctx context.Context, query string, id uuid.UUID) (*domain.Auction, error) {
	a, err := scanAuction(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("get auction %s: %w", id, err)
	}
	if a.BidIDs, err = r.bidIDs(ctx, id); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AuctionRepository) bidIDs(ctx context.Context, auctionID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.q.Query(ctx, `SELECT id FROM bids WHERE auction_id = $1 ORDER BY seq`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("list bid ids of auction %s: %w", auctionID, err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Create inserts a new auction with version 1.
func (r *AuctionRepository) Create(ctx context.Context, a *domain.Auction) error {
	query := `
        INSERT INTO auctions (` + auctionColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, 1, $19, $20)
        ON CONFLICT (id) DO NOTHING
    `
	tag, err := r.q.Exec(ctx, query,
		a.ID,
		a.Title,
		a.Description,
		a.SellerID,
		int64(a.StartingPrice),
		int64(a.CurrentPrice),
		moneyParam(a.ReservePrice),
		moneyParam(a.BuyItNowPrice),
		int64(a.BidIncrement),
		a.StartTime,
		a.EndTime,
		a.AutoExtend.Enabled,
		a.AutoExtend.Extension.Milliseconds(),
		string(a.State),
		a.HighestBidderID,
		a.WinnerID,
		moneyParam(a.FinalPrice),
		a.TotalBids,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create auction %s: %w", a.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("create auction %s: already exists", a.ID)
	}
	a.Version = 1
	return nil
}

// Save writes every mutable column when the stored version still matches
// a.Version, then bumps it.
func (r *AuctionRepository) Save(ctx context.Context, a *domain.Auction) error {
	query := `
        UPDATE auctions
        SET
            title = $3,
            description = $4,
            current_price = $5,
            reserve_price = $6,
            buy_it_now_price = $7,
            start_time = $8,
            end_time = $9,
            auto_extend_enabled = $10,
            auto_extend_ms = $11,
            state = $12,
            highest_bidder_id = $13,
            winner_id = $14,
            final_price = $15,
            total_bids = $16,
            updated_at = $17,
            starting_price = $18,
            bid_increment = $19,
            version = version + 1
        WHERE id = $1 AND version = $2
    `
	tag, err := r.q.Exec(ctx, query,
		a.ID,
		a.Version,
		a.Title,
		a.Description,
		int64(a.CurrentPrice),
		moneyParam(a.ReservePrice),
		moneyParam(a.BuyItNowPrice),
		a.StartTime,
		a.EndTime,
		a.AutoExtend.Enabled,
		a.AutoExtend.Extension.Milliseconds(),
		string(a.State),
		a.HighestBidderID,
		a.WinnerID,
		moneyParam(a.FinalPrice),
		a.TotalBids,
		a.UpdatedAt,
		int64(a.StartingPrice),
		int64(a.BidIncrement),
	)
	if err != nil {
		return fmt.Errorf("save auction %s: %w", a.ID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM auctions WHERE id = $1)`, a.ID).Scan(&exists); err != nil {
			return fmt.Errorf("save auction %s: %w", a.ID, err)
		}
		if !exists {
			return domain.ErrAuctionNotFound
		}
		return domain.ErrConcurrentModification
	}
	a.Version++
	return nil
}

func (r *AuctionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM auctions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete auction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAuctionNotFound
	}
	return nil
}

func (r *AuctionRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `
        SELECT id FROM auctions
        WHERE state IN ('active', 'scheduled') AND end_time <= $1
        ORDER BY end_time
        LIMIT NULLIF($2::int, 0)
    `
	return r.listIDs(ctx, query, now, limit)
}

func (r *AuctionRepository) ListDueForActivation(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `
        SELECT id FROM auctions
        WHERE state = 'scheduled' AND start_time <= $1 AND end_time > $1
        ORDER BY start_time
        LIMIT NULLIF($2::int, 0)
    `
	return r.listIDs(ctx, query, now, limit)
}

func (r *AuctionRepository) listIDs(ctx context.Context, query string, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.q.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanAuction(row pgx.Row) (*domain.Auction, error) {
	a := &domain.Auction{}
	var (
		startingPrice, currentPrice, increment int64
		reserve, buyItNow, finalPrice          *int64
		extendMs                               int64
		state                                  string
	)
	err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Description,
		&a.SellerID,
		&startingPrice,
		&currentPrice,
		&reserve,
		&buyItNow,
		&increment,
		&a.StartTime,
		&a.EndTime,
		&a.AutoExtend.Enabled,
		&extendMs,
		&state,
		&a.HighestBidderID,
		&a.WinnerID,
		&finalPrice,
		&a.TotalBids,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.StartingPrice = domain.Money(startingPrice)
	a.CurrentPrice = domain.Money(currentPrice)
	a.BidIncrement = domain.Money(increment)
	a.ReservePrice = moneyValue(reserve)
	a.BuyItNowPrice = moneyValue(buyItNow)
	a.FinalPrice = moneyValue(finalPrice)
	a.AutoExtend.Extension = time.Duration(extendMs) * time.Millisecond
	a.State = domain.AuctionState(state)
	return a, nil
}

func moneyParam(m *domain.Money) *int64 {
	if m == nil {
		return nil
	}
	v := int64(*m)
	return &v
}

func moneyValue(v *int64) *domain.Money {
	if v == nil {
		return nil
	}
	m := domain.Money(*v)
	return &m
}
