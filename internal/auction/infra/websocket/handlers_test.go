package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/cristianortiz/auctionHouse/internal/auction/application"
	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	"github.com/cristianortiz/auctionHouse/internal/auction/infra/repository/memory"
	"github.com/cristianortiz/auctionHouse/internal/shared/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsFixture struct {
	ctx       context.Context
	store     *memory.Store
	handler   *AuctionWSHandler
	hub       *websocket.Hub
	auctionID uuid.UUID
	bidder    uuid.UUID
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	store := memory.NewStore()
	svc := application.NewAuctionService(application.Options{Tx: store})
	hub := websocket.NewHub()
	ctx := context.Background()

	seller := store.AddUser("seller", 0)
	summary, err := svc.CreateAuction(ctx, application.CreateAuctionDTO{
		SellerID:      seller,
		Title:         "Clock",
		StartingPrice: 100,
		BidIncrement:  50,
		BuyItNowPrice: price(1_000),
		EndTime:       time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	return &wsFixture{
		ctx:       ctx,
		store:     store,
		handler:   NewAuctionWSHandler(svc, hub),
		hub:       hub,
		auctionID: summary.AuctionID,
		bidder:    store.AddUser("bidder", 10_000),
	}
}

func price(m domain.Money) *domain.Money { return &m }

func (f *wsFixture) client(userID uuid.UUID) *websocket.Client {
	return websocket.NewClient(f.hub, nil, f.auctionID.String(), userID)
}

func receive[T any](t *testing.T, c *websocket.Client) T {
	t.Helper()
	var msg T
	select {
	case data := <-c.Send:
		require.NoError(t, json.Unmarshal(data, &msg))
	default:
		t.Fatal("no message queued for the client")
	}
	return msg
}

func bidJSON(auctionID uuid.UUID, amount int) []byte {
	return []byte(fmt.Sprintf(`{"type":"client_bid","payload":{"auction_id":%q,"amount":%d}}`, auctionID, amount))
}

func TestWSHandler_PlaceBid(t *testing.T) {
	f := newWSFixture(t)
	c := f.client(f.bidder)

	f.handler.processMessage(f.ctx, c, bidJSON(f.auctionID, 150))

	msg := receive[ServerBidResultMessage](t, c)
	assert.Equal(t, MessageTypeServerBidResult, msg.Type)
	require.NotNil(t, msg.Payload.Bid)
	assert.Equal(t, domain.Money(150), msg.Payload.Bid.Amount)
	assert.Equal(t, f.bidder, msg.Payload.Bid.BidderID)
	assert.Equal(t, domain.Money(200), msg.Payload.Auction.NextMinimumBid)
}

func TestWSHandler_RejectionCarriesMinimum(t *testing.T) {
	f := newWSFixture(t)
	c := f.client(f.bidder)

	f.handler.processMessage(f.ctx, c, bidJSON(f.auctionID, 120))

	msg := receive[ServerErrorMessage](t, c)
	assert.Equal(t, MessageTypeServerError, msg.Type)
	assert.Equal(t, "BID_TOO_LOW", msg.Payload.Code)
	require.NotNil(t, msg.Payload.MinimumBid)
	assert.Equal(t, domain.Money(150), *msg.Payload.MinimumBid)
}

func TestWSHandler_BuyNow(t *testing.T) {
	f := newWSFixture(t)
	c := f.client(f.bidder)

	data := []byte(fmt.Sprintf(`{"type":"client_buy_now","payload":{"auction_id":%q}}`, f.auctionID))
	f.handler.processMessage(f.ctx, c, data)

	msg := receive[ServerBidResultMessage](t, c)
	assert.Equal(t, domain.BidWon, msg.Payload.Bid.Status)
	assert.Equal(t, domain.StateSold, msg.Payload.Auction.State)
}

func TestWSHandler_RefusedMessages(t *testing.T) {
	f := newWSFixture(t)

	tests := []struct {
		name     string
		userID   uuid.UUID
		data     []byte
		wantCode string
	}{
		{name: "anonymous bidder", userID: uuid.Nil, data: bidJSON(f.auctionID, 150), wantCode: "UNAUTHORIZED"},
		{name: "other auction", userID: f.bidder, data: bidJSON(uuid.New(), 150), wantCode: "AUCTION_MISMATCH"},
		{name: "not json", userID: f.bidder, data: []byte("bid 150"), wantCode: "INVALID_MESSAGE"},
		{name: "unknown type", userID: f.bidder, data: []byte(`{"type":"client_chat"}`), wantCode: "UNKNOWN_MESSAGE_TYPE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := f.client(tt.userID)
			f.handler.processMessage(f.ctx, c, tt.data)
			msg := receive[ServerErrorMessage](t, c)
			assert.Equal(t, tt.wantCode, msg.Payload.Code)
		})
	}
	assert.Equal(t, domain.Money(10_000), domain.Money(f.store.Balance(f.bidder)))
}

func TestWSHandler_InitialState(t *testing.T) {
	f := newWSFixture(t)
	c := f.client(uuid.Nil)

	f.handler.sendInitialState(f.ctx, c, f.auctionID)
	msg := receive[ServerInitialStateMessage](t, c)
	assert.Equal(t, MessageTypeServerInitialState, msg.Type)
	assert.Equal(t, f.auctionID, msg.Payload.AuctionID)
	assert.True(t, msg.Payload.CanBuyNow)

	f.handler.sendInitialState(f.ctx, c, uuid.New())
	errMsg := receive[ServerErrorMessage](t, c)
	assert.Equal(t, "AUCTION_NOT_FOUND", errMsg.Payload.Code)
}

func TestNewAuctionUpdateMessage(t *testing.T) {
	bidder := uuid.New()
	a := &domain.Auction{ID: uuid.New(), CurrentPrice: 250, BidIncrement: 50, State: domain.StateActive, HighestBidderID: &bidder}
	b := &domain.Bid{ID: uuid.New(), AuctionID: a.ID, BidderID: bidder, Amount: 250, IsProxyBid: true}

	msg := NewAuctionUpdateMessage(domain.NewBidPlacedEvent(a, b, time.Now()))
	assert.Equal(t, MessageTypeServerAuctionUpdate, msg.Type)
	assert.Equal(t, domain.EventBidPlaced, msg.Payload.Event)
	assert.Equal(t, domain.Money(300), msg.Payload.NextMinimumBid)
	assert.True(t, msg.Payload.IsProxyBid)
	assert.Equal(t, b.ID, *msg.Payload.BidID)
}
