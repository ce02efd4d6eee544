package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// DefaultMaxProxyRounds caps a single cascade. The auction stays consistent
// when the cap is hit, the next accepted bid resumes the escalation.
const DefaultMaxProxyRounds = 10000

// ProxyResolver places counter-bids on behalf of standing auto-bids, one
// increment at a time, until no standing auto-bidder can or will outbid the
// current leader.
//
// Standing auto-bids are visited in registration order. When a step would be
// the last one of the cascade (nobody able to bid at that amount could answer
// it with a further increment) the amount goes to the highest ceiling, and to
// the earliest registration among equal ceilings.
type ProxyResolver struct {
	book      *BidBook
	holds     domain.HoldPolicy
	maxRounds int
}

func NewProxyResolver(book *BidBook, holds domain.HoldPolicy) *ProxyResolver {
	return &ProxyResolver{book: book, holds: holds, maxRounds: DefaultMaxProxyRounds}
}

// Resolution lists the proxy bids a cascade placed, in placement order.
type Resolution struct {
	Bids     []*domain.Bid
	Extended bool
}

// Resolve runs the cascade against a, which must already reflect the bid that
// triggered it. Every proxy bid goes through BidBook.Accept. An auto-bidder
// whose hold fails at that point (its balance moved since it was read) drops
// out of the cascade and the triggering bid stands.
func (r *ProxyResolver) Resolve(ctx context.Context, repos domain.Repositories, a *domain.Auction, now time.Time) (*Resolution, error) {
	res := &Resolution{}
	dropped := make(map[uuid.UUID]bool)
	for round := 0; ; round++ {
		if round == r.maxRounds {
			log.Warn("Proxy cascade stopped at round limit",
				zap.String("auctionID", a.ID.String()),
				zap.Int("rounds", round),
				zap.Int64("currentPrice", int64(a.CurrentPrice)),
			)
			break
		}
		if !a.CanAcceptBids(now) {
			break
		}
		standing, err := repos.Bids.ListStandingAutoBids(ctx, a.ID, uuid.Nil)
		if err != nil {
			return nil, fmt.Errorf("list standing auto-bids of auction %s: %w", a.ID, err)
		}
		standing = lo.Reject(standing, func(b *domain.Bid, _ int) bool { return dropped[b.BidderID] })
		source, amount, err := r.next(ctx, repos, a, standing)
		if err != nil {
			return nil, err
		}
		if source == nil {
			break
		}

		proxy := domain.NewProxyBid(source, amount, r.holds.HoldFor(amount), now)
		extended, err := r.book.Accept(ctx, repos, a, proxy, now)
		if errors.Is(err, domain.ErrInsufficientFunds) {
			log.Warn("Proxy bid skipped, hold no longer covered",
				zap.String("auctionID", a.ID.String()),
				zap.String("bidderID", source.BidderID.String()),
				zap.Int64("amount", int64(amount)),
			)
			dropped[source.BidderID] = true
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("place proxy bid for %s on auction %s: %w", source.BidderID, a.ID, err)
		}
		res.Bids = append(res.Bids, proxy)
		res.Extended = res.Extended || extended
		log.Debug("Proxy bid placed",
			zap.String("auctionID", a.ID.String()),
			zap.String("bidderID", proxy.BidderID.String()),
			zap.String("sourceBidID", source.ID.String()),
			zap.Int64("amount", int64(amount)),
			zap.Int64("maxBidAmount", int64(source.MaxBid())),
		)
	}

	if len(res.Bids) > 0 {
		last := res.Bids[len(res.Bids)-1]
		if err := r.book.UpdateStatuses(ctx, repos, a.ID, last.ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// next picks the standing auto-bid that places the next proxy bid and its
// amount, or nil when the cascade is over.
func (r *ProxyResolver) next(ctx context.Context, repos domain.Repositories, a *domain.Auction, standing []*domain.Bid) (*domain.Bid, domain.Money, error) {
	funds := newFundsCheck(repos.Ledger, r.holds)
	for _, c := range standing {
		if a.HighestBidderID != nil && c.BidderID == *a.HighestBidderID {
			continue
		}
		amount := a.CurrentPrice + stepOf(c, a)
		if !c.CanAutoBid(amount) {
			continue
		}
		ok, err := funds.covers(ctx, c.BidderID, amount)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			continue
		}
		chosen, err := r.finalStep(ctx, funds, a, standing, c, amount)
		if err != nil {
			return nil, 0, err
		}
		return chosen, amount, nil
	}
	return nil, 0, nil
}

// finalStep returns c unless amount ends the cascade, in which case the
// eligible auto-bid with the highest ceiling takes it. standing is in
// registration order and only a strictly higher ceiling replaces the current
// pick, so equal ceilings go to the earliest registration.
func (r *ProxyResolver) finalStep(ctx context.Context, funds *fundsCheck, a *domain.Auction, standing []*domain.Bid, c *domain.Bid, amount domain.Money) (*domain.Bid, error) {
	var eligible []*domain.Bid
	for _, s := range standing {
		if !s.CanAutoBid(amount) {
			continue
		}
		ok, err := funds.covers(ctx, s.BidderID, amount)
		if err != nil {
			return nil, err
		}
		if ok {
			eligible = append(eligible, s)
		}
	}

	for _, s := range eligible {
		counter := amount + stepOf(s, a)
		if !s.CanAutoBid(counter) {
			continue
		}
		ok, err := funds.covers(ctx, s.BidderID, counter)
		if err != nil {
			return nil, err
		}
		if ok {
			return c, nil
		}
	}

	best := c
	for _, s := range eligible {
		if s.MaxBid() > best.MaxBid() || (s.MaxBid() == best.MaxBid() && registeredBefore(standing, s, best)) {
			best = s
		}
	}
	return best, nil
}

// stepOf is the increment the auto-bid was registered with, the auction's
// current one when it carries none.
func stepOf(b *domain.Bid, a *domain.Auction) domain.Money {
	if b.IncrementUsed > 0 {
		return b.IncrementUsed
	}
	return a.BidIncrement
}

func registeredBefore(standing []*domain.Bid, x, y *domain.Bid) bool {
	return lo.IndexOf(standing, x) < lo.IndexOf(standing, y)
}

// fundsCheck memoizes balances for one resolver step. Balances only change when
// a proxy bid is accepted, which starts a new step.
type fundsCheck struct {
	ledger   domain.Ledger
	holds    domain.HoldPolicy
	balances map[uuid.UUID]domain.Money
}

func newFundsCheck(ledger domain.Ledger, holds domain.HoldPolicy) *fundsCheck {
	return &fundsCheck{ledger: ledger, holds: holds, balances: make(map[uuid.UUID]domain.Money)}
}

func (f *fundsCheck) covers(ctx context.Context, bidderID uuid.UUID, amount domain.Money) (bool, error) {
	balance, ok := f.balances[bidderID]
	if !ok {
		bidder, err := f.ledger.GetBidder(ctx, bidderID)
		if errors.Is(err, domain.ErrBidderNotFound) {
			f.balances[bidderID] = 0
			return false, nil
		}
		if err != nil {
			return false, err
		}
		balance = bidder.Balance
		f.balances[bidderID] = balance
	}
	return f.holds.Covers(balance, amount), nil
}
