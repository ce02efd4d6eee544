package http

import (
	"github.com/cristianortiz/auctionHouse/internal/auction/application"
	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	"github.com/cristianortiz/auctionHouse/internal/auction/infra/apierror"
	"github.com/cristianortiz/auctionHouse/internal/shared/httpserver"
	"github.com/cristianortiz/auctionHouse/internal/shared/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

var bidStatuses = []domain.BidStatus{domain.BidActive, domain.BidOutbid, domain.BidWinning, domain.BidWon, domain.BidLost}

// AuctionHTTPHandler is the REST adapter of the auction module. The acting
// user always comes from the token, never from the body.
type AuctionHTTPHandler struct {
	auctionService application.AuctionService
}

func NewAuctionHTTPHandler(auctionService application.AuctionService) *AuctionHTTPHandler {
	return &AuctionHTTPHandler{auctionService: auctionService}
}

func (h *AuctionHTTPHandler) RegisterRoutes(app *fiber.App, auth *httpserver.Authenticator) {
	api := app.Group("/api")

	api.Get("/auctions/:auctionID", h.GetAuctionState)
	api.Get("/auctions/:auctionID/bids", h.GetBidHistory)

	api.Post("/auctions", auth.Require(), h.CreateAuction)
	api.Put("/auctions/:auctionID", auth.Require(), h.UpdateAuction)
	api.Post("/auctions/:auctionID/publish", auth.Require(), h.PublishAuction)
	api.Post("/auctions/:auctionID/cancel", auth.Require(), h.CancelAuction)
	api.Delete("/auctions/:auctionID", auth.Require(), h.DeleteAuction)
	api.Post("/auctions/:auctionID/bids", auth.Require(), h.PlaceBid)
	api.Post("/auctions/:auctionID/buy-now", auth.Require(), h.BuyNow)
	api.Post("/auctions/:auctionID/finalize", auth.Require(), h.FinalizeAuction)

	api.Delete("/bids/:bidID/auto-bid", auth.Require(), h.CancelAutoBid)
	api.Put("/bids/:bidID/max-bid", auth.Require(), h.UpdateMaxBid)
	api.Get("/users/me/bids", auth.Require(), h.GetUserBids)
	api.Get("/users/me/bids/stats", auth.Require(), h.GetUserBidStats)
}

// CreateAuction handles POST /api/auctions
func (h *AuctionHTTPHandler) CreateAuction(c *fiber.Ctx) error {
	var req CreateAuctionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "INVALID_BODY", "invalid request body")
	}
	sellerID := currentUser(c)
	summary, err := h.auctionService.CreateAuction(c.UserContext(), req.toCommand(sellerID))
	if err != nil {
		return h.fail(c, "CreateAuction", err)
	}
	return c.Status(fiber.StatusCreated).JSON(summary)
}

// UpdateAuction handles PUT /api/auctions/:auctionID, the body is the full
// listing as on create. The draft flag is ignored.
func (h *AuctionHTTPHandler) UpdateAuction(c *fiber.Ctx) error {
	auctionID, ok := pathID(c, "auctionID")
	if !ok {
		return badRequest(c, "INVALID_AUCTION_ID", "invalid auction id")
	}
	var req CreateAuctionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "INVALID_BODY", "invalid request body")
	}
	summary, err := h.auctionService.UpdateAuction(c.UserContext(), auctionID, req.toCommand(currentUser(c)))
	if err != nil {
		return h.fail(c, "UpdateAuction", err)
	}
	return c.JSON(summary)
}

// PublishAuction handles POST /api/auctions/:auctionID/publish
func (h *AuctionHTTPHandler) PublishAuction(c *fiber.Ctx) error {
	auctionID, ok := pathID(c, "auctionID")
	if !ok {
		return badRequest(c, "INVALID_AUCTION_ID", "invalid auction id")
	}
	summary, err := h.auctionService.PublishAuction(c.UserContext(), auctionID, currentUser(c))
	if err != nil {
		return h.fail(c, "PublishAuction", err)
	}
	return c.JSON(summary)
}

// CancelAuction handles POST /api/auctions/:auctionID/cancel
func (h *AuctionHTTPHandler) CancelAuction(c *fiber.Ctx) error {
	auctionID, ok := pathID(c, "auctionID")
	if !ok {
		return badRequest(c, "INVALID_AUCTION_ID", "invalid auction id")
	}
	summary, err := h.auctionService.CancelAuction(c.UserContext(), auctionID, currentUser(c))
	if err != nil {
		return h.fail(c, "CancelAuction", err)
	}
	return c.JSON(summary)
}

// DeleteAuction handles DELETE /api/auctions/:auctionID
func (h *AuctionHTTPHandler) DeleteAuction(c *fiber.Ctx) error {
	auctionID, ok := pathID(c, "auctionID")
	if !ok {
		return badRequest(c, "INVALID_AUCTION_ID", "invalid auction id")
	}
	if err := h.auctionService.DeleteAuction(c.UserContext(), auctionID, currentUser(c)); err != nil {
		return h.fail(c, "DeleteAuction", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetAuctionState handles GET /api/auctions/:auctionID
func (h *AuctionHTTPHandler) GetAuctionState(c *fiber.Ctx) error {
	auctionID, ok := pathID(c, "auctionID")
	if !ok {
		return badRequest(c, "INVALID_AUCTION_ID", "invalid auction id")
	}
	summary, err := h.auctionService.GetAuctionState(c.UserContext(), auctionID)
	if err != nil {
		return h.fail(c, "GetAuctionState", err)
	}
	return c.JSON(summary)
}

// GetBidHistory handles GET /api/auctions/:auctionID/bids
func (h *AuctionHTTPHandler) GetBidHistory(c *fiber.Ctx) error {
	auctionID, ok := pathID(c, "auctionID")
	if !ok {
		return badRequest(c, "INVALID_AUCTION_ID", "invalid auction id")
	}
	history, err := h.auctionService.GetBidHistory(c.UserContext(), auctionID)
	if err != nil {
		return h.fail(c, "GetBidHistory", err)
	}
	return c.JSON(history)
}

// PlaceBid handles POST /api/auctions/:auctionID/bids
func (h *AuctionHTTPHandler) PlaceBid(c *fiber.Ctx) error {
	auctionID, ok := pathID(c, "auctionID")
	if !ok {
		return badRequest(c, "INVALID_AUCTION_ID", "invalid auction id")
	}
	var req PlaceBidRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "INVALID_BODY", "invalid request body")
	}

	res, err := h.auctionService.PlaceBid(c.UserContext(), application.PlaceBidDTO{
		AuctionID:    auctionID,
		BidderID:     currentUser(c),
		Amount:       req.Amount,
		IsAutoBid:    req.IsAutoBid,
		MaxBidAmount: req.MaxBidAmount,
	})
	if err != nil {
		return h.fail(c, "PlaceBid", err)
	}
	return c.Status(fiber.StatusCreated).JSON(PlaceBidResponse{
		Bid:       application.NewBidDTO(res.Bid),
		ProxyBids: application.NewBidDTOs(res.ProxyBids),
		Extended:  res.Extended,
		Auction:   res.Auction,
	})
}

// BuyNow handles POST /api/auctions/:auctionID/buy-now
func (h *AuctionHTTPHandler) BuyNow(c *fiber.Ctx) error {
	auctionID, ok := pathID(c, "auctionID")
	if !ok {
		return badRequest(c, "INVALID_AUCTION_ID", "invalid auction id")
	}
	res, err := h.auctionService.BuyNow(c.UserContext(), application.BuyNowDTO{AuctionID: auctionID, BuyerID: currentUser(c)})
	if err != nil {
		return h.fail(c, "BuyNow", err)
	}
	return c.JSON(BuyNowResponse{
		FinalPrice: res.FinalPrice,
		Bid:        application.NewBidDTO(res.WinningBid),
		Auction:    res.Auction,
	})
}

// FinalizeAuction handles POST /api/auctions/:auctionID/finalize. It settles
// the auction if it already expired and is a no-op otherwise.
func (h *AuctionHTTPHandler) FinalizeAuction(c *fiber.Ctx) error {
	auctionID, ok := pathID(c, "auctionID")
	if !ok {
		return badRequest(c, "INVALID_AUCTION_ID", "invalid auction id")
	}
	s, err := h.auctionService.FinalizeAuction(c.UserContext(), auctionID)
	if err != nil {
		return h.fail(c, "FinalizeAuction", err)
	}
	return c.JSON(SettlementResponse{
		AuctionID:  s.AuctionID,
		Finalized:  s.Finalized,
		Sold:       s.Sold,
		WinnerID:   s.WinnerID,
		FinalPrice: s.FinalPrice,
		State:      s.State,
	})
}

// CancelAutoBid handles DELETE /api/bids/:bidID/auto-bid
func (h *AuctionHTTPHandler) CancelAutoBid(c *fiber.Ctx) error {
	bidID, ok := pathID(c, "bidID")
	if !ok {
		return badRequest(c, "INVALID_BID_ID", "invalid bid id")
	}
	bid, err := h.auctionService.CancelAutoBid(c.UserContext(), bidID, currentUser(c))
	if err != nil {
		return h.fail(c, "CancelAutoBid", err)
	}
	return c.JSON(application.NewBidDTO(bid))
}

// UpdateMaxBid handles PUT /api/bids/:bidID/max-bid
func (h *AuctionHTTPHandler) UpdateMaxBid(c *fiber.Ctx) error {
	bidID, ok := pathID(c, "bidID")
	if !ok {
		return badRequest(c, "INVALID_BID_ID", "invalid bid id")
	}
	var req UpdateMaxBidRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "INVALID_BODY", "invalid request body")
	}
	bid, err := h.auctionService.UpdateMaxBid(c.UserContext(), application.UpdateMaxBidDTO{
		BidID:        bidID,
		UserID:       currentUser(c),
		MaxBidAmount: req.MaxBidAmount,
	})
	if err != nil {
		return h.fail(c, "UpdateMaxBid", err)
	}
	return c.JSON(application.NewBidDTO(bid))
}

// GetUserBids handles GET /api/users/me/bids?status=
func (h *AuctionHTTPHandler) GetUserBids(c *fiber.Ctx) error {
	var status *domain.BidStatus
	if raw := c.Query("status"); raw != "" {
		s := domain.BidStatus(raw)
		if !lo.Contains(bidStatuses, s) {
			return badRequest(c, "INVALID_STATUS", "unknown bid status")
		}
		status = &s
	}
	bids, err := h.auctionService.GetUserBids(c.UserContext(), currentUser(c), status)
	if err != nil {
		return h.fail(c, "GetUserBids", err)
	}
	return c.JSON(bids)
}

// fail writes the mapped error, only server side failures are logged as errors
func (h *AuctionHTTPHandler) fail(c *fiber.Ctx, handler string, err error) error {
	status, resp := apierror.Map(err)
	if status >= fiber.StatusInternalServerError {
		log.Error("AuctionHTTPHandler: request failed",
			zap.String("handler", handler),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	} else {
		log.Debug("AuctionHTTPHandler: request rejected",
			zap.String("handler", handler),
			zap.String("code", resp.Code),
		)
	}
	return c.Status(status).JSON(resp)
}

func badRequest(c *fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(apierror.New(code, message))
}

func pathID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

// currentUser is only called behind auth.Require
func currentUser(c *fiber.Ctx) uuid.UUID {
	id, _ := httpserver.UserID(c)
	return id
}

// GetUserBidStats handles GET /api/users/me/bids/stats
func (h *AuctionHTTPHandler) GetUserBidStats(c *fiber.Ctx) error {
	stats, err := h.auctionService.GetUserBidStats(c.UserContext(), currentUser(c))
	if err != nil {
		return h.fail(c, "GetUserBidStats", err)
	}
	return c.JSON(stats)
}
