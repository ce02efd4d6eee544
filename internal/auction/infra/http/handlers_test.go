package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cristianortiz/auctionHouse/internal/auction/application"
	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	"github.com/cristianortiz/auctionHouse/internal/auction/infra/apierror"
	"github.com/cristianortiz/auctionHouse/internal/auction/infra/repository/memory"
	"github.com/cristianortiz/auctionHouse/internal/shared/httpserver"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	t      *testing.T
	app    *fiber.App
	store  *memory.Store
	auth   *httpserver.Authenticator
	seller uuid.UUID
	alice  uuid.UUID
	bob    uuid.UUID
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := memory.NewStore()
	auth := httpserver.NewAuthenticator("test-secret", "auction-house")
	app := httpserver.NewServer().App()
	NewAuctionHTTPHandler(application.NewAuctionService(application.Options{Tx: store})).RegisterRoutes(app, auth)

	return &apiFixture{
		t:      t,
		app:    app,
		store:  store,
		auth:   auth,
		seller: store.AddUser("seller", 0),
		alice:  store.AddUser("alice", 10_000),
		bob:    store.AddUser("bob", 10_000),
	}
}

// do sends body as json on behalf of user (uuid.Nil for anonymous) and
// decodes the response into out when given.
func (f *apiFixture) do(method, path string, user uuid.UUID, body any, out any) int {
	f.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if user != uuid.Nil {
		token, err := f.auth.Issue(user, time.Hour)
		require.NoError(f.t, err)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := f.app.Test(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(f.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (f *apiFixture) createAuction(req CreateAuctionRequest) *application.AuctionSummaryDTO {
	f.t.Helper()
	var summary application.AuctionSummaryDTO
	status := f.do(fiber.MethodPost, "/api/auctions", f.seller, req, &summary)
	require.Equal(f.t, fiber.StatusCreated, status)
	return &summary
}

func price(m domain.Money) *domain.Money { return &m }

func liveAuction() CreateAuctionRequest {
	return CreateAuctionRequest{
		Title:         "Vintage radio",
		StartingPrice: 100,
		BidIncrement:  50,
		BuyItNowPrice: price(1_000),
		EndTime:       time.Now().Add(time.Hour),
	}
}

func TestAPI_CreateAndGetAuction(t *testing.T) {
	f := newAPIFixture(t)

	created := f.createAuction(liveAuction())
	assert.Equal(t, f.seller, created.SellerID)
	assert.Equal(t, domain.StateActive, created.State)
	assert.Equal(t, domain.Money(150), created.NextMinimumBid)

	var got application.AuctionSummaryDTO
	status := f.do(fiber.MethodGet, "/api/auctions/"+created.AuctionID.String(), uuid.Nil, nil, &got)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, created.AuctionID, got.AuctionID)
	assert.True(t, got.CanBuyNow)

	var errResp apierror.Response
	status = f.do(fiber.MethodPost, "/api/auctions", uuid.Nil, liveAuction(), &errResp)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	invalid := liveAuction()
	invalid.Title = ""
	status = f.do(fiber.MethodPost, "/api/auctions", f.seller, invalid, &errResp)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_AUCTION", errResp.Code)
}

func TestAPI_PlaceBid(t *testing.T) {
	f := newAPIFixture(t)
	auction := f.createAuction(liveAuction())
	path := "/api/auctions/" + auction.AuctionID.String() + "/bids"

	var placed PlaceBidResponse
	status := f.do(fiber.MethodPost, path, f.alice, PlaceBidRequest{Amount: 150}, &placed)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, f.alice, placed.Bid.BidderID)
	assert.Equal(t, domain.Money(30), placed.Bid.HoldAmount)
	assert.Equal(t, domain.Money(200), placed.Auction.NextMinimumBid)

	tests := []struct {
		name       string
		path       string
		user       uuid.UUID
		body       any
		wantStatus int
		wantCode   string
	}{
		{name: "too low", path: path, user: f.bob, body: PlaceBidRequest{Amount: 160}, wantStatus: fiber.StatusUnprocessableEntity, wantCode: "BID_TOO_LOW"},
		{name: "seller", path: path, user: f.seller, body: PlaceBidRequest{Amount: 500}, wantStatus: fiber.StatusForbidden, wantCode: "SELF_BIDDING_NOT_ALLOWED"},
		{name: "bad body", path: path, user: f.bob, body: "150", wantStatus: fiber.StatusBadRequest, wantCode: "INVALID_BODY"},
		{name: "bad id", path: "/api/auctions/nope/bids", user: f.bob, body: PlaceBidRequest{Amount: 200}, wantStatus: fiber.StatusBadRequest, wantCode: "INVALID_AUCTION_ID"},
		{name: "unknown auction", path: "/api/auctions/" + uuid.NewString() + "/bids", user: f.bob, body: PlaceBidRequest{Amount: 200}, wantStatus: fiber.StatusNotFound, wantCode: "AUCTION_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp apierror.Response
			status := f.do(fiber.MethodPost, tt.path, tt.user, tt.body, &resp)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}

	var tooLow apierror.Response
	f.do(fiber.MethodPost, path, f.bob, PlaceBidRequest{Amount: 160}, &tooLow)
	require.NotNil(t, tooLow.MinimumBid)
	assert.Equal(t, domain.Money(200), *tooLow.MinimumBid)

	var history application.BidHistoryDTO
	status = f.do(fiber.MethodGet, path, uuid.Nil, nil, &history)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 1, history.Stats.TotalBids)
}

func TestAPI_BuyNow(t *testing.T) {
	f := newAPIFixture(t)
	auction := f.createAuction(liveAuction())
	path := "/api/auctions/" + auction.AuctionID.String() + "/buy-now"

	var bought BuyNowResponse
	status := f.do(fiber.MethodPost, path, f.bob, nil, &bought)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, domain.Money(1_000), bought.FinalPrice)
	assert.Equal(t, domain.StateSold, bought.Auction.State)
	assert.Equal(t, domain.Money(9_800), domain.Money(f.store.Balance(f.bob)))

	var resp apierror.Response
	status = f.do(fiber.MethodPost, path, f.alice, nil, &resp)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "BUY_NOW_NOT_AVAILABLE", resp.Code)
}

func TestAPI_AutoBidManagement(t *testing.T) {
	f := newAPIFixture(t)
	auction := f.createAuction(liveAuction())

	var placed PlaceBidResponse
	status := f.do(fiber.MethodPost, "/api/auctions/"+auction.AuctionID.String()+"/bids", f.alice,
		PlaceBidRequest{Amount: 150, IsAutoBid: true, MaxBidAmount: price(500)}, &placed)
	require.Equal(t, fiber.StatusCreated, status)
	bidPath := "/api/bids/" + placed.Bid.BidID.String()

	var updated application.BidDTO
	status = f.do(fiber.MethodPut, bidPath+"/max-bid", f.alice, UpdateMaxBidRequest{MaxBidAmount: 800}, &updated)
	require.Equal(t, fiber.StatusOK, status)
	require.NotNil(t, updated.MaxBidAmount)
	assert.Equal(t, domain.Money(800), *updated.MaxBidAmount)

	var resp apierror.Response
	status = f.do(fiber.MethodPut, bidPath+"/max-bid", f.bob, UpdateMaxBidRequest{MaxBidAmount: 900}, &resp)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "NOT_BID_OWNER", resp.Code)

	status = f.do(fiber.MethodPut, bidPath+"/max-bid", f.alice, UpdateMaxBidRequest{MaxBidAmount: 120}, &resp)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "MAX_BID_TOO_LOW", resp.Code)

	var cancelled application.BidDTO
	status = f.do(fiber.MethodDelete, bidPath+"/auto-bid", f.alice, nil, &cancelled)
	require.Equal(t, fiber.StatusOK, status)
	assert.False(t, cancelled.IsAutoBid)
	assert.Nil(t, cancelled.MaxBidAmount)

	status = f.do(fiber.MethodDelete, bidPath+"/auto-bid", f.alice, nil, &resp)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "NOT_AUTO_BID", resp.Code)
}

func TestAPI_UserBids(t *testing.T) {
	f := newAPIFixture(t)
	auction := f.createAuction(liveAuction())
	path := "/api/auctions/" + auction.AuctionID.String() + "/bids"
	require.Equal(t, fiber.StatusCreated, f.do(fiber.MethodPost, path, f.alice, PlaceBidRequest{Amount: 150}, nil))
	require.Equal(t, fiber.StatusCreated, f.do(fiber.MethodPost, path, f.bob, PlaceBidRequest{Amount: 200}, nil))

	tests := []struct {
		query string
		want  int
	}{
		{query: "", want: 1},
		{query: "?status=outbid", want: 1},
		{query: "?status=winning", want: 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("status%s", tt.query), func(t *testing.T) {
			var bids []*application.BidDTO
			status := f.do(fiber.MethodGet, "/api/users/me/bids"+tt.query, f.alice, nil, &bids)
			require.Equal(t, fiber.StatusOK, status)
			assert.Len(t, bids, tt.want)
		})
	}

	var resp apierror.Response
	status := f.do(fiber.MethodGet, "/api/users/me/bids?status=paid", f.alice, nil, &resp)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_STATUS", resp.Code)
}

func TestAPI_SellerLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	draft := liveAuction()
	draft.Draft = true
	created := f.createAuction(draft)
	assert.Equal(t, domain.StateDraft, created.State)
	base := "/api/auctions/" + created.AuctionID.String()

	var resp apierror.Response
	status := f.do(fiber.MethodPost, base+"/publish", f.alice, nil, &resp)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "NOT_AUCTION_OWNER", resp.Code)

	var published application.AuctionSummaryDTO
	status = f.do(fiber.MethodPost, base+"/publish", f.seller, nil, &published)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, domain.StateActive, published.State)

	var settlement SettlementResponse
	status = f.do(fiber.MethodPost, base+"/finalize", f.alice, nil, &settlement)
	require.Equal(t, fiber.StatusOK, status)
	assert.False(t, settlement.Finalized)

	status = f.do(fiber.MethodDelete, base, f.seller, nil, nil)
	assert.Equal(t, fiber.StatusNoContent, status)
	status = f.do(fiber.MethodGet, base, uuid.Nil, nil, &resp)
	assert.Equal(t, fiber.StatusNotFound, status)

	other := f.createAuction(liveAuction())
	var cancelled application.AuctionSummaryDTO
	status = f.do(fiber.MethodPost, "/api/auctions/"+other.AuctionID.String()+"/cancel", f.seller, nil, &cancelled)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, domain.StateCancelled, cancelled.State)

}

func TestAPI_UpdateAuction(t *testing.T) {
	f := newAPIFixture(t)
	auction := f.createAuction(liveAuction())
	path := "/api/auctions/" + auction.AuctionID.String()

	revised := liveAuction()
	revised.Title = "Tube radio"
	revised.StartingPrice = 200
	revised.BuyItNowPrice = price(1_500)
	revised.EndTime = time.Now().Add(2 * time.Hour)

	var summary application.AuctionSummaryDTO
	status := f.do(fiber.MethodPut, path, f.seller, revised, &summary)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Tube radio", summary.Title)
	assert.Equal(t, domain.Money(250), summary.NextMinimumBid)
	assert.Equal(t, domain.StateActive, summary.State)

	var errResp apierror.Response
	status = f.do(fiber.MethodPut, path, f.alice, revised, &errResp)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "NOT_AUCTION_OWNER", errResp.Code)

	invalid := revised
	invalid.BuyItNowPrice = price(150)
	status = f.do(fiber.MethodPut, path, f.seller, invalid, &errResp)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_AUCTION", errResp.Code)

	require.Equal(t, fiber.StatusCreated, f.do(fiber.MethodPost, path+"/bids", f.alice, PlaceBidRequest{Amount: 250}, nil))
	status = f.do(fiber.MethodPut, path, f.seller, revised, &errResp)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "AUCTION_HAS_BIDS", errResp.Code)
}

func TestAPI_UserBidStats(t *testing.T) {
	f := newAPIFixture(t)
	first := f.createAuction(liveAuction())
	second := f.createAuction(liveAuction())
	bids := func(a *application.AuctionSummaryDTO) string {
		return "/api/auctions/" + a.AuctionID.String() + "/bids"
	}

	require.Equal(t, fiber.StatusCreated, f.do(fiber.MethodPost, bids(first), f.alice, PlaceBidRequest{Amount: 150}, nil))
	require.Equal(t, fiber.StatusCreated, f.do(fiber.MethodPost, bids(first), f.bob, PlaceBidRequest{Amount: 200}, nil))
	auto := PlaceBidRequest{Amount: 160, IsAutoBid: true, MaxBidAmount: price(300)}
	require.Equal(t, fiber.StatusCreated, f.do(fiber.MethodPost, bids(second), f.alice, auto, nil))

	var stats application.UserBidStatsDTO
	status := f.do(fiber.MethodGet, "/api/users/me/bids/stats", f.alice, nil, &stats)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 2, stats.TotalBids)
	assert.Equal(t, domain.Money(310), stats.TotalAmountBid)
	assert.Equal(t, "155", stats.AverageBid.String())
	assert.Equal(t, domain.Money(160), stats.HighestBid)
	assert.Equal(t, 1, stats.WinningBids)
	assert.Equal(t, 1, stats.AutoBids)
	assert.Equal(t, 1, stats.ManualBids)
	assert.Equal(t, 1, stats.ActiveAuctions)
	assert.Zero(t, stats.SuccessRate)

	var empty application.UserBidStatsDTO
	require.Equal(t, fiber.StatusOK, f.do(fiber.MethodGet, "/api/users/me/bids/stats", f.seller, nil, &empty))
	assert.Zero(t, empty.TotalBids)
	assert.True(t, empty.AverageBid.IsZero())

	assert.Equal(t, fiber.StatusUnauthorized, f.do(fiber.MethodGet, "/api/users/me/bids/stats", uuid.Nil, nil, nil))
}
