package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuctionRepository persists the Auction aggregate.
type AuctionRepository interface {
	// GetByID returns ErrAuctionNotFound when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*Auction, error)
	// GetForUpdate is GetByID holding a row lock until the transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Auction, error)
	Create(ctx context.Context, a *Auction) error
	// Save writes a if its Version is unchanged in storage and bumps it,
	// otherwise it returns ErrConcurrentModification.
	Save(ctx context.Context, a *Auction) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListExpired returns auctions still open in storage whose end time passed.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	// ListDueForActivation returns scheduled auctions whose start time passed.
	ListDueForActivation(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// BidRepository is the append-only bid history plus its status transitions.
type BidRepository interface {
	// Insert stores a new bid and assigns its Seq.
	Insert(ctx context.Context, b *Bid) error
	// GetByID returns ErrBidNotFound when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*Bid, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Bid, error)
	// Update writes the mutable fields: auto-bid instruction, status and hold release.
	Update(ctx context.Context, b *Bid) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status BidStatus) error
	// MarkWinning sets winningBidID to winning and every other non-terminal bid
	// of the auction to outbid.
	MarkWinning(ctx context.Context, auctionID, winningBidID uuid.UUID) error
	// FinalizeStatuses marks every bid of winnerID won and all others lost.
	// A nil winnerID loses every bid.
	FinalizeStatuses(ctx context.Context, auctionID uuid.UUID, winnerID *uuid.UUID) error
	// ListByAuction is ordered by Seq.
	ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error)
	// ListByBidder is ordered newest first, status nil means any.
	ListByBidder(ctx context.Context, bidderID uuid.UUID, status *BidStatus) ([]*Bid, error)
	// ListStandingAutoBids returns the latest standing auto-bid of every bidder
	// except excluding (uuid.Nil excludes nobody), earliest placed first, Seq
	// breaking ties.
	ListStandingAutoBids(ctx context.Context, auctionID, excluding uuid.UUID) ([]*Bid, error)
	// ListUnreleasedLosing returns lost bids whose hold was never credited back.
	ListUnreleasedLosing(ctx context.Context, auctionID *uuid.UUID, limit int) ([]*Bid, error)
}

// Ledger moves bidders' balances. Hold is check-and-debit in one step.
type Ledger interface {
	// GetBidder returns ErrBidderNotFound when the user does not exist.
	GetBidder(ctx context.Context, id uuid.UUID) (*Bidder, error)
	// Hold fails with ErrInsufficientFunds without debiting anything.
	Hold(ctx context.Context, id uuid.UUID, amount Money) error
	Release(ctx context.Context, id uuid.UUID, amount Money) error
}

// Repositories groups the stores taking part in one unit of work.
type Repositories struct {
	Auctions AuctionRepository
	Bids     BidRepository
	Ledger   Ledger
}

// TxManager runs fn with repositories bound to a single transaction. It commits
// when fn returns nil and rolls back otherwise.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	// Repositories returns non-transactional stores for reads.
	Repositories() Repositories
}
