package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	"github.com/cristianortiz/auctionHouse/internal/auction/infra/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memory.Store
	clock *fakeClock
	opts  Options
	svc   AuctionService
}

func newFixture(t *testing.T, publisher domain.EventPublisher) *fixture {
	t.Helper()
	store := memory.NewStore()
	clock := &fakeClock{now: t0}
	opts := Options{
		Tx:        store,
		Publisher: publisher,
		Clock:     clock.Now,
		Retry:     RetryPolicy{MaxRetries: 3, Backoff: time.Millisecond},
	}
	return &fixture{
		t:     t,
		ctx:   context.Background(),
		store: store,
		clock: clock,
		opts:  opts,
		svc:   NewAuctionService(opts),
	}
}

func (f *fixture) user(name string, balance int64) uuid.UUID {
	return f.store.AddUser(name, balance)
}

func (f *fixture) balance(id uuid.UUID) domain.Money {
	return domain.Money(f.store.Balance(id))
}

// auction lists a running auction starting at 100 with increment 50 ending in one hour.
func (f *fixture) auction(seller uuid.UUID, mutate ...func(*CreateAuctionDTO)) uuid.UUID {
	f.t.Helper()
	cmd := CreateAuctionDTO{
		SellerID:      seller,
		Title:         "Vintage camera",
		StartingPrice: 100,
		BidIncrement:  50,
		StartTime:     f.clock.Now(),
		EndTime:       f.clock.Now().Add(time.Hour),
	}
	for _, m := range mutate {
		m(&cmd)
	}
	summary, err := f.svc.CreateAuction(f.ctx, cmd)
	require.NoError(f.t, err)
	return summary.AuctionID
}

func (f *fixture) bid(auctionID, bidder uuid.UUID, amount domain.Money) (*PlaceBidResult, error) {
	return f.svc.PlaceBid(f.ctx, PlaceBidDTO{AuctionID: auctionID, BidderID: bidder, Amount: amount})
}

func (f *fixture) autoBid(auctionID, bidder uuid.UUID, amount, maxBid domain.Money) (*PlaceBidResult, error) {
	return f.svc.PlaceBid(f.ctx, PlaceBidDTO{
		AuctionID:    auctionID,
		BidderID:     bidder,
		Amount:       amount,
		IsAutoBid:    true,
		MaxBidAmount: &maxBid,
	})
}

func (f *fixture) mustBid(auctionID, bidder uuid.UUID, amount domain.Money) *PlaceBidResult {
	f.t.Helper()
	res, err := f.bid(auctionID, bidder, amount)
	require.NoError(f.t, err)
	return res
}

func (f *fixture) mustAutoBid(auctionID, bidder uuid.UUID, amount, maxBid domain.Money) *PlaceBidResult {
	f.t.Helper()
	res, err := f.autoBid(auctionID, bidder, amount, maxBid)
	require.NoError(f.t, err)
	return res
}

func (f *fixture) state(auctionID uuid.UUID) *domain.Auction {
	f.t.Helper()
	a, err := f.store.Repositories().Auctions.GetByID(f.ctx, auctionID)
	require.NoError(f.t, err)
	return a
}

func (f *fixture) bids(auctionID uuid.UUID) []*domain.Bid {
	f.t.Helper()
	bids, err := f.store.Repositories().Bids.ListByAuction(f.ctx, auctionID)
	require.NoError(f.t, err)
	return bids
}

func (f *fixture) bidByID(id uuid.UUID) *domain.Bid {
	f.t.Helper()
	b, err := f.store.Repositories().Bids.GetByID(f.ctx, id)
	require.NoError(f.t, err)
	return b
}

func winningBids(bids []*domain.Bid) []*domain.Bid {
	var out []*domain.Bid
	for _, b := range bids {
		if b.Status == domain.BidWinning {
			out = append(out, b)
		}
	}
	return out
}

func rejection(t *testing.T, err error) *domain.BidRejectedError {
	t.Helper()
	var rejected *domain.BidRejectedError
	require.True(t, errors.As(err, &rejected), "expected a rejected bid, got %v", err)
	return rejected
}

func money(m domain.Money) *domain.Money {
	return &m
}

// staleLedger adds extra to the balances it reports, like a read taken before
// a concurrent hold on another auction committed. Holds still hit the real balance.
type staleLedger struct {
	domain.Ledger
	extra map[uuid.UUID]domain.Money
}

func (l staleLedger) GetBidder(ctx context.Context, id uuid.UUID) (*domain.Bidder, error) {
	b, err := l.Ledger.GetBidder(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Balance += l.extra[id]
	return b, nil
}

type staleReadsTx struct {
	*memory.Store
	extra map[uuid.UUID]domain.Money
}

func (s staleReadsTx) WithinTx(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		repos.Ledger = staleLedger{Ledger: repos.Ledger, extra: s.extra}
		return fn(ctx, repos)
	})
}

func (s staleReadsTx) Repositories() domain.Repositories {
	repos := s.Store.Repositories()
	repos.Ledger = staleLedger{Ledger: repos.Ledger, extra: s.extra}
	return repos
}

// withStaleReads rebuilds the service over a store whose balance reads can be skewed per user.
func (f *fixture) withStaleReads() map[uuid.UUID]domain.Money {
	extra := make(map[uuid.UUID]domain.Money)
	f.opts.Tx = staleReadsTx{Store: f.store, extra: extra}
	f.svc = NewAuctionService(f.opts)
	return extra
}
