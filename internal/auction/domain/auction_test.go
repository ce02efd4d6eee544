package domain

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuction_InitialState(t *testing.T) {
	seller := uuid.New()
	base := NewAuctionParams{Title: "Lamp", SellerID: seller, StartingPrice: 10, EndTime: now.Add(time.Hour)}

	started := base
	started.StartTime = now
	a, err := NewAuction(started, now)
	require.NoError(t, err)
	assert.Equal(t, StateActive, a.State)
	assert.Equal(t, DefaultBidIncrement, a.BidIncrement)
	assert.Equal(t, Money(10), a.CurrentPrice)

	later := base
	later.StartTime = now.Add(time.Minute)
	a, err = NewAuction(later, now)
	require.NoError(t, err)
	assert.Equal(t, StateScheduled, a.State)
	assert.False(t, a.Activate(now))
	assert.True(t, a.Activate(now.Add(time.Minute)))
	assert.Equal(t, StateActive, a.State)

	draft := started
	draft.Draft = true
	a, err = NewAuction(draft, now)
	require.NoError(t, err)
	assert.Equal(t, StateDraft, a.State)
	require.NoError(t, a.Publish(now))
	assert.Equal(t, StateActive, a.State)
	assert.ErrorIs(t, a.Publish(now), ErrInvalidTransition)
}

func TestNewAuction_RejectsAmountsThatCouldOverflow(t *testing.T) {
	huge := Money(math.MaxInt64)
	base := NewAuctionParams{Title: "Lamp", SellerID: uuid.New(), StartingPrice: 10, StartTime: now, EndTime: now.Add(time.Hour)}

	for name, mutate := range map[string]func(p *NewAuctionParams){
		"starting price": func(p *NewAuctionParams) { p.StartingPrice = huge },
		"increment":      func(p *NewAuctionParams) { p.BidIncrement = MaxAmount + 1 },
		"reserve":        func(p *NewAuctionParams) { p.ReservePrice = &huge },
		"buy it now":     func(p *NewAuctionParams) { p.BuyItNowPrice = &huge },
	} {
		p := base
		mutate(&p)
		_, err := NewAuction(p, now)
		assert.ErrorIs(t, err, ErrInvalidAuction, name)
	}

	p := base
	p.StartingPrice = MaxAmount
	p.BidIncrement = MaxAmount
	a, err := NewAuction(p, now)
	require.NoError(t, err)
	assert.Equal(t, 2*MaxAmount, a.NextMinimumBid())
	assert.Positive(t, int64(a.NextMinimumBid()))
}

func TestAuction_ApplyBidAndAutoExtend(t *testing.T) {
	a := activeAuction(t)
	a.AutoExtend = AutoExtendPolicy{Enabled: true, Extension: 5 * time.Minute}
	bidder := uuid.New()

	extended, err := a.ApplyBid(NewBid(a.ID, bidder, 150, 50, 30, now), now)
	require.NoError(t, err)
	assert.False(t, extended)
	assert.Equal(t, Money(150), a.CurrentPrice)
	assert.Equal(t, bidder, *a.HighestBidderID)
	assert.Equal(t, 1, a.TotalBids)
	assert.Equal(t, Money(200), a.NextMinimumBid())

	closing := a.EndTime.Add(-time.Minute)
	originalEnd := a.EndTime
	extended, err = a.ApplyBid(NewBid(a.ID, uuid.New(), 200, 50, 40, closing), closing)
	require.NoError(t, err)
	assert.True(t, extended)
	assert.Equal(t, originalEnd.Add(5*time.Minute), a.EndTime)

	_, err = a.ApplyBid(NewBid(a.ID, bidder, 200, 50, 40, closing), closing)
	assert.ErrorIs(t, err, ErrBidTooLow)
	_, err = a.ApplyBid(NewBid(uuid.New(), bidder, 900, 50, 180, closing), closing)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAuction_Settle(t *testing.T) {
	t.Run("sold to the highest bidder", func(t *testing.T) {
		a := activeAuction(t)
		bidder := uuid.New()
		_, err := a.ApplyBid(NewBid(a.ID, bidder, 300, 50, 60, now), now)
		require.NoError(t, err)

		_, err = a.Settle(now)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		sold, err := a.Settle(a.EndTime)
		require.NoError(t, err)
		assert.True(t, sold)
		assert.Equal(t, StateSold, a.State)
		assert.Equal(t, bidder, *a.WinnerID)
		assert.Equal(t, Money(300), *a.FinalPrice)
		assert.False(t, a.IsExpired(a.EndTime))
	})

	t.Run("reserve not met", func(t *testing.T) {
		a := activeAuction(t)
		a.ReservePrice = moneyPtr(500)
		_, err := a.ApplyBid(NewBid(a.ID, uuid.New(), 300, 50, 60, now), now)
		require.NoError(t, err)

		sold, err := a.Settle(a.EndTime)
		require.NoError(t, err)
		assert.False(t, sold)
		assert.Equal(t, StateEnded, a.State)
		assert.Nil(t, a.WinnerID)
	})

	t.Run("no bids", func(t *testing.T) {
		a := activeAuction(t)
		sold, err := a.Settle(a.EndTime.Add(time.Second))
		require.NoError(t, err)
		assert.False(t, sold)
		assert.Equal(t, StateEnded, a.State)
	})
}

func TestAuction_SellToAndCancel(t *testing.T) {
	a := activeAuction(t)
	buyer := uuid.New()
	require.True(t, a.CanBuyNow(now))
	require.NoError(t, a.SellTo(NewBid(a.ID, buyer, 2_000, 50, 400, now), now))
	assert.Equal(t, StateSold, a.State)
	assert.Equal(t, now, a.EndTime)
	assert.False(t, a.CanAcceptBids(now))
	assert.ErrorIs(t, a.SellTo(NewBid(a.ID, uuid.New(), 2_000, 50, 400, now), now), ErrBuyNowNotAvailable)
	assert.ErrorIs(t, a.Cancel(now), ErrInvalidTransition)

	fresh := activeAuction(t)
	require.NoError(t, fresh.Cancel(now))
	assert.Equal(t, StateCancelled, fresh.State)

	withBid := activeAuction(t)
	_, err := withBid.ApplyBid(NewBid(withBid.ID, uuid.New(), 150, 50, 30, now), now)
	require.NoError(t, err)
	assert.ErrorIs(t, withBid.Cancel(now), ErrAuctionHasBids)
}

func TestAuction_Revise(t *testing.T) {
	a := activeAuction(t)
	seller := a.SellerID
	later := NewAuctionParams{
		Title:         "  Camera with lens ",
		SellerID:      uuid.New(),
		StartingPrice: 300,
		StartTime:     now.Add(time.Hour),
		EndTime:       now.Add(2 * time.Hour),
	}
	require.NoError(t, a.Revise(later, now))
	assert.Equal(t, "Camera with lens", a.Title)
	assert.Equal(t, seller, a.SellerID, "the seller never changes")
	assert.Equal(t, Money(300), a.CurrentPrice)
	assert.Equal(t, DefaultBidIncrement, a.BidIncrement)
	assert.Nil(t, a.BuyItNowPrice)
	assert.Equal(t, StateScheduled, a.State)

	invalid := later
	invalid.EndTime = later.StartTime
	assert.ErrorIs(t, a.Revise(invalid, now), ErrInvalidAuction)
	assert.Equal(t, Money(300), a.StartingPrice, "a rejected update changes nothing")

	withBid := activeAuction(t)
	_, err := withBid.ApplyBid(NewBid(withBid.ID, uuid.New(), 150, 50, 30, now), now)
	require.NoError(t, err)
	assert.ErrorIs(t, withBid.Revise(later, now), ErrAuctionHasBids)

	cancelled := activeAuction(t)
	require.NoError(t, cancelled.Cancel(now))
	assert.ErrorIs(t, cancelled.Revise(later, now), ErrInvalidTransition)
}

func TestAuction_EffectiveStateAndTimeRemaining(t *testing.T) {
	a := activeAuction(t)
	assert.Equal(t, StateActive, a.EffectiveState(now))
	assert.Equal(t, time.Hour, a.TimeRemaining(now))
	assert.Equal(t, StateEnded, a.EffectiveState(a.EndTime))
	assert.Zero(t, a.TimeRemaining(a.EndTime.Add(time.Minute)))
	// reading never settles
	assert.Equal(t, StateActive, a.State)

	scheduled := activeAuction(t)
	scheduled.State = StateScheduled
	scheduled.StartTime = now.Add(time.Minute)
	assert.Equal(t, StateScheduled, scheduled.EffectiveState(now))
	assert.Equal(t, StateActive, scheduled.EffectiveState(now.Add(time.Minute)))
}

func TestBid_AutoBidInstruction(t *testing.T) {
	auctionID := uuid.New()
	auto := NewAutoBid(auctionID, uuid.New(), 150, 400, 50, 30, now)
	assert.True(t, auto.IsStanding())
	assert.True(t, auto.CanAutoBid(400))
	assert.False(t, auto.CanAutoBid(401))

	proxy := NewProxyBid(auto, 250, 50, now)
	assert.True(t, proxy.IsProxyBid)
	assert.False(t, proxy.IsStanding())
	assert.Equal(t, auto.ID, *proxy.SourceBidID)
	assert.Equal(t, auto.BidderID, proxy.BidderID)

	require.NoError(t, auto.UpdateMaxBid(600, now))
	assert.Equal(t, Money(600), auto.MaxBid())
	require.NoError(t, auto.CancelAutoBid(now))
	assert.False(t, auto.IsStanding())
	assert.Zero(t, auto.MaxBid())
	assert.ErrorIs(t, auto.CancelAutoBid(now), ErrNotAutoBid)
	assert.ErrorIs(t, auto.UpdateMaxBid(700, now), ErrNotAutoBid)

	assert.True(t, proxy.MarkHoldReleased(now))
	assert.False(t, proxy.MarkHoldReleased(now))

	auto.Status = BidLost
	assert.True(t, auto.Status.IsTerminal())
}
