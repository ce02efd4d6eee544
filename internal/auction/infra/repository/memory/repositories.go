package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	userdomain "github.com/cristianortiz/auctionHouse/internal/user/domain"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type auctionRepo struct{ v *view }

func (r *auctionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	var out *domain.Auction
	err := r.v.read(func(st *state) error {
		a, ok := st.auctions[id]
		if !ok {
			return domain.ErrAuctionNotFound
		}
		out = a.Clone()
		return nil
	})
	return out, err
}

// GetForUpdate needs no row lock here, transactions are already exclusive.
func (r *auctionRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	return r.GetByID(ctx, id)
}

func (r *auctionRepo) Create(ctx context.Context, a *domain.Auction) error {
	return r.v.write(func(st *state) error {
		if _, ok := st.auctions[a.ID]; ok {
			return fmt.Errorf("create auction %s: already exists", a.ID)
		}
		a.Version = 1
		st.auctions[a.ID] = a.Clone()
		return nil
	})
}

func (r *auctionRepo) Save(ctx context.Context, a *domain.Auction) error {
	return r.v.write(func(st *state) error {
		stored, ok := st.auctions[a.ID]
		if !ok {
			return domain.ErrAuctionNotFound
		}
		if stored.Version != a.Version {
			return domain.ErrConcurrentModification
		}
		a.Version++
		st.auctions[a.ID] = a.Clone()
		return nil
	})
}

func (r *auctionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.v.write(func(st *state) error {
		if _, ok := st.auctions[id]; !ok {
			return domain.ErrAuctionNotFound
		}
		delete(st.auctions, id)
		return nil
	})
}

func (r *auctionRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return r.list(limit, func(a *domain.Auction) bool { return a.IsExpired(now) })
}

func (r *auctionRepo) ListDueForActivation(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return r.list(limit, func(a *domain.Auction) bool {
		return a.State == domain.StateScheduled && !now.Before(a.StartTime) && now.Before(a.EndTime)
	})
}

func (r *auctionRepo) list(limit int, keep func(a *domain.Auction) bool) ([]uuid.UUID, error) {
	var matched []*domain.Auction
	err := r.v.read(func(st *state) error {
		for _, a := range st.auctions {
			if keep(a) {
				matched = append(matched, a)
			}
		}
		return nil
	})
	sort.Slice(matched, func(i, j int) bool { return matched[i].EndTime.Before(matched[j].EndTime) })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return lo.Map(matched, func(a *domain.Auction, _ int) uuid.UUID { return a.ID }), err
}

type bidRepo struct{ v *view }

func (r *bidRepo) Insert(ctx context.Context, b *domain.Bid) error {
	return r.v.write(func(st *state) error {
		if _, ok := st.auctions[b.AuctionID]; !ok {
			return domain.ErrAuctionNotFound
		}
		if _, ok := st.bids[b.ID]; ok {
			return fmt.Errorf("insert bid %s: already exists", b.ID)
		}
		st.seq++
		b.Seq = st.seq
		st.bids[b.ID] = b.Clone()
		st.order = append(st.order, b.ID)
		return nil
	})
}

func (r *bidRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Bid, error) {
	var out *domain.Bid
	err := r.v.read(func(st *state) error {
		b, ok := st.bids[id]
		if !ok {
			return domain.ErrBidNotFound
		}
		out = b.Clone()
		return nil
	})
	return out, err
}

func (r *bidRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Bid, error) {
	return r.GetByID(ctx, id)
}

func (r *bidRepo) Update(ctx context.Context, b *domain.Bid) error {
	return r.v.write(func(st *state) error {
		stored, ok := st.bids[b.ID]
		if !ok {
			return domain.ErrBidNotFound
		}
		c := b.Clone()
		c.Seq = stored.Seq
		st.bids[b.ID] = c
		return nil
	})
}

func (r *bidRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BidStatus) error {
	return r.v.write(func(st *state) error {
		b, ok := st.bids[id]
		if !ok {
			return domain.ErrBidNotFound
		}
		b.Status = status
		return nil
	})
}

func (r *bidRepo) MarkWinning(ctx context.Context, auctionID, winningBidID uuid.UUID) error {
	return r.v.write(func(st *state) error {
		winning, ok := st.bids[winningBidID]
		if !ok || winning.AuctionID != auctionID {
			return domain.ErrBidNotFound
		}
		for _, b := range auctionBids(st, auctionID) {
			switch {
			case b.ID == winningBidID:
				b.Status = domain.BidWinning
			case !b.Status.IsTerminal():
				b.Status = domain.BidOutbid
			}
		}
		return nil
	})
}

func (r *bidRepo) FinalizeStatuses(ctx context.Context, auctionID uuid.UUID, winnerID *uuid.UUID) error {
	return r.v.write(func(st *state) error {
		for _, b := range auctionBids(st, auctionID) {
			if winnerID != nil && b.BidderID == *winnerID {
				b.Status = domain.BidWon
			} else {
				b.Status = domain.BidLost
			}
		}
		return nil
	})
}

func (r *bidRepo) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*domain.Bid, error) {
	var out []*domain.Bid
	err := r.v.read(func(st *state) error {
		out = cloneAll(auctionBids(st, auctionID))
		return nil
	})
	return out, err
}

func (r *bidRepo) ListByBidder(ctx context.Context, bidderID uuid.UUID, status *domain.BidStatus) ([]*domain.Bid, error) {
	var out []*domain.Bid
	err := r.v.read(func(st *state) error {
		out = cloneAll(lo.Filter(ordered(st), func(b *domain.Bid, _ int) bool {
			return b.BidderID == bidderID && (status == nil || b.Status == *status)
		}))
		return nil
	})
	lo.Reverse(out)
	return out, err
}

func (r *bidRepo) ListStandingAutoBids(ctx context.Context, auctionID, excluding uuid.UUID) ([]*domain.Bid, error) {
	var out []*domain.Bid
	err := r.v.read(func(st *state) error {
		latest := make(map[uuid.UUID]*domain.Bid)
		for _, b := range auctionBids(st, auctionID) {
			if b.IsStanding() && b.BidderID != excluding {
				latest[b.BidderID] = b
			}
		}
		out = cloneAll(lo.Values(latest))
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PlacedAt.Equal(out[j].PlacedAt) {
			return out[i].PlacedAt.Before(out[j].PlacedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, err
}

func (r *bidRepo) ListUnreleasedLosing(ctx context.Context, auctionID *uuid.UUID, limit int) ([]*domain.Bid, error) {
	var out []*domain.Bid
	err := r.v.read(func(st *state) error {
		out = cloneAll(lo.Filter(ordered(st), func(b *domain.Bid, _ int) bool {
			return b.Status == domain.BidLost && !b.HoldReleased && b.HoldAmount > 0 &&
				(auctionID == nil || b.AuctionID == *auctionID)
		}))
		return nil
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func ordered(st *state) []*domain.Bid {
	return lo.Map(st.order, func(id uuid.UUID, _ int) *domain.Bid { return st.bids[id] })
}

func auctionBids(st *state, auctionID uuid.UUID) []*domain.Bid {
	return lo.Filter(ordered(st), func(b *domain.Bid, _ int) bool { return b.AuctionID == auctionID })
}

func cloneAll(bids []*domain.Bid) []*domain.Bid {
	return lo.Map(bids, func(b *domain.Bid, _ int) *domain.Bid { return b.Clone() })
}

type userRepo struct{ v *view }

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*userdomain.User, error) {
	var out *userdomain.User
	err := r.v.read(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return userdomain.ErrUserNotFound
		}
		cu := *u
		out = &cu
		return nil
	})
	return out, err
}

func (r *userRepo) Create(ctx context.Context, u *userdomain.User) error {
	return r.v.write(func(st *state) error {
		if _, ok := st.users[u.ID]; ok {
			return fmt.Errorf("create user %s: already exists", u.ID)
		}
		cu := *u
		st.users[u.ID] = &cu
		return nil
	})
}

func (r *userRepo) DebitBalance(ctx context.Context, id uuid.UUID, amount int64) error {
	if amount <= 0 {
		return userdomain.ErrInvalidAmount
	}
	return r.v.write(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return userdomain.ErrUserNotFound
		}
		if u.Balance < amount {
			return userdomain.ErrInsufficientBalance
		}
		u.Balance -= amount
		return nil
	})
}

func (r *userRepo) CreditBalance(ctx context.Context, id uuid.UUID, amount int64) error {
	if amount <= 0 {
		return userdomain.ErrInvalidAmount
	}
	return r.v.write(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return userdomain.ErrUserNotFound
		}
		u.Balance += amount
		return nil
	})
}
