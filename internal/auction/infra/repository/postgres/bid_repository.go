package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	"github.com/cristianortiz/auctionHouse/internal/shared/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const bidColumns = `id, seq, auction_id, bidder_id, amount, increment_used, is_auto_bid,
        max_bid_amount, is_proxy_bid, proxy_bidder_id, source_bid_id, hold_amount,
        hold_released, hold_release_date, status, placed_at, updated_at`

// BidRepository implements domain.BidRepository interface
type BidRepository struct {
	q db.Querier
}

// NewBidRepository creates new instance of BidRepository.
func NewBidRepository(q db.Querier) *BidRepository {
	return &BidRepository{q: q}
}

// Insert appends a bid to the history, seq comes from the database sequence.
func (r *BidRepository) Insert(ctx context.Context, b *domain.Bid) error {
	query := `
        INSERT INTO bids (id, auction_id, bidder_id, amount, increment_used, is_auto_bid,
            max_bid_amount, is_proxy_bid, proxy_bidder_id, source_bid_id, hold_amount,
            hold_released, hold_release_date, status, placed_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
        RETURNING seq
    `
	err := r.q.QueryRow(ctx, query,
		b.ID,
		b.AuctionID,
		b.BidderID,
		int64(b.Amount),
		int64(b.IncrementUsed),
		b.IsAutoBid,
		moneyParam(b.MaxBidAmount),
		b.IsProxyBid,
		b.ProxyBidderID,
		b.SourceBidID,
		int64(b.HoldAmount),
		b.HoldReleased,
		b.HoldReleaseDate,
		string(b.Status),
		b.PlacedAt,
		b.UpdatedAt,
	).Scan(&b.Seq)
	if err != nil {
		return fmt.Errorf("insert bid %s: %w", b.ID, err)
	}
	return nil
}

func (r *BidRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Bid, error) {
	return r.get(ctx, `SELECT `+bidColumns+` FROM bids WHERE id = $1`, id)
}

func (r *BidRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Bid, error) {
	return r.get(ctx, `SELECT `+bidColumns+` FROM bids WHERE id = $1 FOR UPDATE`, id)
}

func (r *BidRepository) get(ctx context.Context, query string, id uuid.UUID) (*domain.Bid, error) {
	b, err := scanBid(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBidNotFound
		}
		return nil, fmt.Errorf("get bid %s: %w", id, err)
	}
	return b, nil
}

// Update writes the fields that may change after placement. Amount never does.
func (r *BidRepository) Update(ctx context.Context, b *domain.Bid) error {
	query := `
        UPDATE bids
        SET
            is_auto_bid = $2,
            max_bid_amount = $3,
            status = $4,
            hold_released = $5,
            hold_release_date = $6,
            updated_at = $7
        WHERE id = $1
    `
	tag, err := r.q.Exec(ctx, query,
		b.ID,
		b.IsAutoBid,
		moneyParam(b.MaxBidAmount),
		string(b.Status),
		b.HoldReleased,
		b.HoldReleaseDate,
		b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update bid %s: %w", b.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBidNotFound
	}
	return nil
}

func (r *BidRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BidStatus) error {
	tag, err := r.q.Exec(ctx, `UPDATE bids SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update status of bid %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBidNotFound
	}
	return nil
}

// MarkWinning demotes the previous leader before promoting the new one, the
// partial unique index allows a single winning bid per auction at any time.
func (r *BidRepository) MarkWinning(ctx context.Context, auctionID, winningBidID uuid.UUID) error {
	_, err := r.q.Exec(ctx, `
        UPDATE bids SET status = 'outbid', updated_at = NOW()
        WHERE auction_id = $1 AND id <> $2 AND status IN ('active', 'winning')
    `, auctionID, winningBidID)
	if err != nil {
		return fmt.Errorf("outbid bids of auction %s: %w", auctionID, err)
	}
	tag, err := r.q.Exec(ctx, `
        UPDATE bids SET status = 'winning', updated_at = NOW()
        WHERE auction_id = $1 AND id = $2
    `, auctionID, winningBidID)
	if err != nil {
		return fmt.Errorf("mark bid %s winning: %w", winningBidID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBidNotFound
	}
	return nil
}

func (r *BidRepository) FinalizeStatuses(ctx context.Context, auctionID uuid.UUID, winnerID *uuid.UUID) error {
	_, err := r.q.Exec(ctx, `
        UPDATE bids
        SET status = CASE WHEN $2::uuid IS NOT NULL AND bidder_id = $2::uuid THEN 'won' ELSE 'lost' END,
            updated_at = NOW()
        WHERE auction_id = $1
    `, auctionID, winnerID)
	if err != nil {
		return fmt.Errorf("finalize bids of auction %s: %w", auctionID, err)
	}
	return nil
}

func (r *BidRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*domain.Bid, error) {
	return r.list(ctx, `SELECT `+bidColumns+` FROM bids WHERE auction_id = $1 ORDER BY seq`, auctionID)
}

func (r *BidRepository) ListByBidder(ctx context.Context, bidderID uuid.UUID, status *domain.BidStatus) ([]*domain.Bid, error) {
	var statusParam *string
	if status != nil {
		s := string(*status)
		statusParam = &s
	}
	query := `
        SELECT ` + bidColumns + ` FROM bids
        WHERE bidder_id = $1 AND ($2::text IS NULL OR status = $2::text)
        ORDER BY placed_at DESC, seq DESC
    `
	return r.list(ctx, query, bidderID, statusParam)
}

// ListStandingAutoBids keeps the newest instruction per bidder and orders the
// result by registration time, seq breaking ties.
func (r *BidRepository) ListStandingAutoBids(ctx context.Context, auctionID, excluding uuid.UUID) ([]*domain.Bid, error) {
	query := `
        SELECT ` + bidColumns + ` FROM (
            SELECT DISTINCT ON (bidder_id) ` + bidColumns + `
            FROM bids
            WHERE auction_id = $1
              AND bidder_id <> $2
              AND is_auto_bid
              AND NOT is_proxy_bid
              AND max_bid_amount > 0
              AND status IN ('active', 'winning', 'outbid')
            ORDER BY bidder_id, seq DESC
        ) standing
        ORDER BY placed_at, seq
    `
	return r.list(ctx, query, auctionID, excluding)
}

func (r *BidRepository) ListUnreleasedLosing(ctx context.Context, auctionID *uuid.UUID, limit int) ([]*domain.Bid, error) {
	query := `
        SELECT ` + bidColumns + ` FROM bids
        WHERE status = 'lost' AND NOT hold_released AND hold_amount > 0
          AND ($1::uuid IS NULL OR auction_id = $1::uuid)
        ORDER BY seq
        LIMIT NULLIF($2::int, 0)
    `
	return r.list(ctx, query, auctionID, limit)
}

func (r *BidRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Bid, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bids, nil
}

func scanBid(row pgx.Row) (*domain.Bid, error) {
	b := &domain.Bid{}
	var (
		amount, increment, hold int64
		maxBid                  *int64
		status                  string
	)
	err := row.Scan(
		&b.ID,
		&b.Seq,
		&b.AuctionID,
		&b.BidderID,
		&amount,
		&increment,
		&b.IsAutoBid,
		&maxBid,
		&b.IsProxyBid,
		&b.ProxyBidderID,
		&b.SourceBidID,
		&hold,
		&b.HoldReleased,
		&b.HoldReleaseDate,
		&status,
		&b.PlacedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Amount = domain.Money(amount)
	b.IncrementUsed = domain.Money(increment)
	b.HoldAmount = domain.Money(hold)
	b.MaxBidAmount = moneyValue(maxBid)
	b.Status = domain.BidStatus(status)
	return b, nil
}
