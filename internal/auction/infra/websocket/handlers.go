package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cristianortiz/auctionHouse/internal/auction/application"
	"github.com/cristianortiz/auctionHouse/internal/auction/infra/apierror"
	"github.com/cristianortiz/auctionHouse/internal/shared/httpserver"
	"github.com/cristianortiz/auctionHouse/internal/shared/logger"
	"github.com/cristianortiz/auctionHouse/internal/shared/websocket"
	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

var errAuctionMismatch = errors.New("auction id does not match the connection")

// AuctionWSHandler handles the ws inbound msgs wich are specific for auction module (remember is a bounded context).
// Outbound broadcasts are not sent from here, they come from the committed
// domain events through the hub publisher.
type AuctionWSHandler struct {
	auctionService application.AuctionService // application layer dependency
	hub            *websocket.Hub             // shared hub dependency to send msgs
}

// NewAuctionWSHandler creates a new instance of AuctionWSHandler
func NewAuctionWSHandler(auctionService application.AuctionService, hub *websocket.Hub) *AuctionWSHandler {
	return &AuctionWSHandler{
		auctionService: auctionService,
		hub:            hub,
	}
}

// RegisterRoutes mounts GET /ws/auctions/:auctionID. Anonymous clients may
// watch, placing bids needs a token (bearer header or ?token=).
func (h *AuctionWSHandler) RegisterRoutes(ctx context.Context, app *fiber.App, auth *httpserver.Authenticator) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/auctions/:auctionID", auth.Optional(), fiberws.New(func(conn *fiberws.Conn) {
		h.serveConn(ctx, conn)
	}))
}

func (h *AuctionWSHandler) serveConn(ctx context.Context, conn *fiberws.Conn) {
	auctionID, err := uuid.Parse(conn.Params("auctionID"))
	if err != nil {
		_ = conn.WriteJSON(errorMessage(apierror.New("INVALID_AUCTION_ID", "invalid auction id")))
		_ = conn.Close()
		return
	}
	userID, _ := conn.Locals(httpserver.UserIDKey).(uuid.UUID)

	client := websocket.NewClient(h.hub, conn, auctionID.String(), userID)
	h.hub.RegisterClient(client)
	h.sendInitialState(ctx, client, auctionID)

	go client.WritePump(ctx)
	// fiber closes the connection when this handler returns
	client.ReadPump(ctx)
}

// ListenForMessages starts a go routine that listen the Hub inbound channel for messages and proccess every one of them
func (h *AuctionWSHandler) ListenForMessages(ctx context.Context) {
	log.Info("AuctionWSHandler started listening for inbound messages from hub")
	for {
		select {
		case <-ctx.Done():
			log.Info("AuctionWSHandler stopped listening for inbound messages from hub")
			return
		case msg := <-h.hub.InboundMessages:
			go h.processMessage(ctx, msg.Client, msg.Data)
		}
	}
}

// processMesssage dispatch the message by this type
func (h *AuctionWSHandler) processMessage(ctx context.Context, client *websocket.Client, data []byte) {
	var baseMsg BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		h.sendToClient(client, errorMessage(apierror.New("INVALID_MESSAGE", "invalid message format")))
		return
	}
	switch baseMsg.Type {
	case MessageTypeClientBid:
		h.handleClientBidMessage(ctx, client, data)
	case MessageTypeClientBuyNow:
		h.handleClientBuyNowMessage(ctx, client, data)
	default:
		h.sendToClient(client, errorMessage(apierror.New("UNKNOWN_MESSAGE_TYPE", "unknown message type")))
	}
}

func (h *AuctionWSHandler) handleClientBidMessage(ctx context.Context, client *websocket.Client, data []byte) {
	var bidMsg ClientBidMessage
	if err := json.Unmarshal(data, &bidMsg); err != nil {
		h.sendToClient(client, errorMessage(apierror.New("INVALID_MESSAGE", "invalid bid message format")))
		return
	}
	if !h.authorize(client, bidMsg.Payload.AuctionID) {
		return
	}

	res, err := h.auctionService.PlaceBid(ctx, application.PlaceBidDTO{
		AuctionID:    bidMsg.Payload.AuctionID,
		BidderID:     client.UserID,
		Amount:       bidMsg.Payload.Amount,
		IsAutoBid:    bidMsg.Payload.IsAutoBid,
		MaxBidAmount: bidMsg.Payload.MaxBidAmount,
	})
	if err != nil {
		h.sendError(client, err)
		return
	}

	msg := ServerBidResultMessage{BaseMessage: BaseMessage{Type: MessageTypeServerBidResult}}
	msg.Payload.Bid = application.NewBidDTO(res.Bid)
	msg.Payload.ProxyBids = application.NewBidDTOs(res.ProxyBids)
	msg.Payload.Extended = res.Extended
	msg.Payload.Auction = res.Auction
	h.sendToClient(client, msg)
}

func (h *AuctionWSHandler) handleClientBuyNowMessage(ctx context.Context, client *websocket.Client, data []byte) {
	var buyMsg ClientBuyNowMessage
	if err := json.Unmarshal(data, &buyMsg); err != nil {
		h.sendToClient(client, errorMessage(apierror.New("INVALID_MESSAGE", "invalid buy now message format")))
		return
	}
	if !h.authorize(client, buyMsg.Payload.AuctionID) {
		return
	}

	res, err := h.auctionService.BuyNow(ctx, application.BuyNowDTO{AuctionID: buyMsg.Payload.AuctionID, BuyerID: client.UserID})
	if err != nil {
		h.sendError(client, err)
		return
	}
	msg := ServerBidResultMessage{BaseMessage: BaseMessage{Type: MessageTypeServerBidResult}}
	msg.Payload.Bid = application.NewBidDTO(res.WinningBid)
	msg.Payload.Auction = res.Auction
	h.sendToClient(client, msg)
}

// authorize checks the sender may act on auctionID through this connection.
func (h *AuctionWSHandler) authorize(client *websocket.Client, auctionID uuid.UUID) bool {
	if client.UserID == uuid.Nil {
		h.sendToClient(client, errorMessage(apierror.New("UNAUTHORIZED", httpserver.ErrUnauthenticated.Error())))
		return false
	}
	if auctionID.String() != client.AuctionID {
		h.sendToClient(client, errorMessage(apierror.New("AUCTION_MISMATCH", errAuctionMismatch.Error())))
		return false
	}
	return true
}

func (h *AuctionWSHandler) sendInitialState(ctx context.Context, client *websocket.Client, auctionID uuid.UUID) {
	state, err := h.auctionService.GetAuctionState(ctx, auctionID)
	if err != nil {
		h.sendError(client, err)
		return
	}
	h.sendToClient(client, ServerInitialStateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeServerInitialState},
		Payload:     state,
	})
}

func (h *AuctionWSHandler) sendError(client *websocket.Client, err error) {
	status, resp := apierror.Map(err)
	if status >= fiber.StatusInternalServerError {
		log.Error("AuctionWSHandler: request failed",
			zap.String("clientID", client.ID),
			zap.String("auctionID", client.AuctionID),
			zap.Error(err),
		)
	}
	h.sendToClient(client, errorMessage(resp))
}

// sendToClient serializes and sends a msg to a specific client
func (h *AuctionWSHandler) sendToClient(client *websocket.Client, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error("failed to marshal ws message", zap.Error(err))
		return
	}
	if !client.TrySend(data) {
		log.Warn("client send channel full or closed, message dropped", zap.String("clientID", client.ID))
	}
}

func errorMessage(resp apierror.Response) ServerErrorMessage {
	return ServerErrorMessage{BaseMessage: BaseMessage{Type: MessageTypeServerError}, Payload: resp}
}
