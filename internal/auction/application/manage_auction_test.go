package application

import (
	"context"
	"testing"
	"time"

	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	"github.com/cristianortiz/auctionHouse/internal/auction/domain/mocks"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManageAuction_CreateValidation(t *testing.T) {
	f := newFixture(t, nil)
	seller := f.user("seller", 0)

	tests := []struct {
		name   string
		mutate func(*CreateAuctionDTO)
	}{
		{name: "missing title", mutate: func(c *CreateAuctionDTO) { c.Title = "  " }},
		{name: "no seller", mutate: func(c *CreateAuctionDTO) { c.SellerID = uuid.Nil }},
		{name: "zero starting price", mutate: func(c *CreateAuctionDTO) { c.StartingPrice = 0 }},
		{name: "end before start", mutate: func(c *CreateAuctionDTO) { c.EndTime = c.StartTime.Add(-time.Minute) }},
		{name: "reserve below start", mutate: func(c *CreateAuctionDTO) { c.ReservePrice = money(50) }},
		{name: "buy it now not above start", mutate: func(c *CreateAuctionDTO) { c.BuyItNowPrice = money(100) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := CreateAuctionDTO{
				SellerID:      seller,
				Title:         "Lamp",
				StartingPrice: 100,
				BidIncrement:  10,
				StartTime:     t0,
				EndTime:       t0.Add(time.Hour),
			}
			tt.mutate(&cmd)
			_, err := f.svc.CreateAuction(f.ctx, cmd)
			assert.ErrorIs(t, err, domain.ErrInvalidAuction)
		})
	}
}

func TestManageAuction_CreateDefaults(t *testing.T) {
	f := newFixture(t, nil)
	seller := f.user("seller", 0)

	summary, err := f.svc.CreateAuction(f.ctx, CreateAuctionDTO{
		SellerID:      seller,
		Title:         "Lamp",
		StartingPrice: 100,
		EndTime:       t0.Add(time.Hour),
		AutoExtend:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, summary.State)
	assert.Equal(t, t0, summary.StartTime)
	assert.Equal(t, domain.DefaultBidIncrement, summary.BidIncrement)
	assert.Equal(t, domain.Money(200), summary.NextMinimumBid)
	assert.Equal(t, int64(3_600_000), summary.TimeRemainingMs)

	a := f.state(summary.AuctionID)
	assert.Equal(t, DefaultAutoExtendPeriod, a.AutoExtend.Extension)
}

func TestManageAuction_PublishDraft(t *testing.T) {
	f := newFixture(t, nil)
	seller := f.user("seller", 0)
	other := f.user("other", 1_000)
	auctionID := f.auction(seller, func(c *CreateAuctionDTO) { c.Draft = true })
	require.Equal(t, domain.StateDraft, f.state(auctionID).State)

	_, err := f.bid(auctionID, other, 150)
	assert.ErrorIs(t, err, domain.ErrAuctionNotAcceptingBids)

	_, err = f.svc.PublishAuction(f.ctx, auctionID, other)
	assert.ErrorIs(t, err, domain.ErrNotAuctionOwner)

	summary, err := f.svc.PublishAuction(f.ctx, auctionID, seller)
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, summary.State)

	_, err = f.svc.PublishAuction(f.ctx, auctionID, seller)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	f.mustBid(auctionID, other, 150)
}

func TestManageAuction_CancelAndDelete(t *testing.T) {
	f := newFixture(t, nil)
	seller := f.user("seller", 0)
	alice := f.user("alice", 1_000)
	withBids := f.auction(seller)
	quiet := f.auction(seller)
	f.mustBid(withBids, alice, 150)

	_, err := f.svc.CancelAuction(f.ctx, withBids, seller)
	assert.ErrorIs(t, err, domain.ErrAuctionHasBids)
	err = f.svc.DeleteAuction(f.ctx, withBids, seller)
	assert.ErrorIs(t, err, domain.ErrAuctionHasBids)
	err = f.svc.DeleteAuction(f.ctx, quiet, alice)
	assert.ErrorIs(t, err, domain.ErrNotAuctionOwner)

	summary, err := f.svc.CancelAuction(f.ctx, quiet, seller)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCancelled, summary.State)
	assert.Zero(t, summary.TimeRemainingMs)

	_, err = f.bid(quiet, alice, 150)
	assert.ErrorIs(t, err, domain.ErrAuctionNotAcceptingBids)
	_, err = f.svc.CancelAuction(f.ctx, quiet, seller)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	require.NoError(t, f.svc.DeleteAuction(f.ctx, quiet, seller))
	_, err = f.svc.GetAuctionState(f.ctx, quiet)
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestManageAuction_Update(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockEventPublisher(ctrl)
	var published []domain.AuctionEvent
	publisher.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, events ...domain.AuctionEvent) {
			published = append(published, events...)
		}).
		AnyTimes()
	f := newFixture(t, publisher)
	seller := f.user("seller", 0)
	alice := f.user("alice", 1_000)
	auctionID := f.auction(seller)

	revised := CreateAuctionDTO{
		SellerID:      seller,
		Title:         "Camera and lens",
		StartingPrice: 300,
		BidIncrement:  25,
		StartTime:     t0.Add(30 * time.Minute),
		EndTime:       t0.Add(2 * time.Hour),
	}
	summary, err := f.svc.UpdateAuction(f.ctx, auctionID, revised)
	require.NoError(t, err)
	assert.Equal(t, "Camera and lens", summary.Title)
	assert.Equal(t, domain.Money(300), summary.CurrentPrice)
	assert.Equal(t, domain.Money(325), summary.NextMinimumBid)
	assert.Equal(t, domain.StateScheduled, summary.State)
	require.Len(t, published, 1)
	assert.Equal(t, domain.EventAuctionUpdated, published[0].Type)

	notOwner := revised
	notOwner.SellerID = alice
	_, err = f.svc.UpdateAuction(f.ctx, auctionID, notOwner)
	assert.ErrorIs(t, err, domain.ErrNotAuctionOwner)

	invalid := revised
	invalid.ReservePrice = money(100)
	_, err = f.svc.UpdateAuction(f.ctx, auctionID, invalid)
	assert.ErrorIs(t, err, domain.ErrInvalidAuction)
	assert.Equal(t, domain.Money(300), f.state(auctionID).StartingPrice)

	f.clock.Advance(30 * time.Minute)
	f.mustBid(auctionID, alice, 325)
	before := len(published)
	_, err = f.svc.UpdateAuction(f.ctx, auctionID, revised)
	assert.ErrorIs(t, err, domain.ErrAuctionHasBids)
	assert.Len(t, published, before, "a rejected update publishes nothing")
}
