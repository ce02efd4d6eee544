package events

import (
	"context"
	"encoding/json"

	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	auctionws "github.com/cristianortiz/auctionHouse/internal/auction/infra/websocket"
	sharedevents "github.com/cristianortiz/auctionHouse/internal/shared/events"
	"github.com/cristianortiz/auctionHouse/internal/shared/logger"
	"github.com/cristianortiz/auctionHouse/internal/shared/websocket"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// AsyncPublisher implements domain.EventPublisher on top of a dispatcher, so
// use cases never wait for the hub or the network.
type AsyncPublisher struct {
	dispatcher *sharedevents.Dispatcher[domain.AuctionEvent]
}

func NewAsyncPublisher(dispatcher *sharedevents.Dispatcher[domain.AuctionEvent]) *AsyncPublisher {
	return &AsyncPublisher{dispatcher: dispatcher}
}

func (p *AsyncPublisher) Publish(_ context.Context, events ...domain.AuctionEvent) {
	for _, e := range events {
		if !p.dispatcher.Dispatch(e) {
			log.Warn("Event dropped, dispatcher closed",
				zap.String("type", string(e.Type)),
				zap.String("auctionID", e.AuctionID.String()),
			)
		}
	}
}

// HubBroadcaster pushes every event to the websocket clients watching its auction.
type HubBroadcaster struct {
	hub *websocket.Hub
}

func NewHubBroadcaster(hub *websocket.Hub) *HubBroadcaster {
	return &HubBroadcaster{hub: hub}
}

// Handle is a dispatcher handler.
func (b *HubBroadcaster) Handle(_ context.Context, e domain.AuctionEvent) {
	data, err := json.Marshal(auctionws.NewAuctionUpdateMessage(e))
	if err != nil {
		log.Error("HubBroadcaster: failed to marshal auction update", zap.Error(err))
		return
	}
	b.hub.Broadcast(e.AuctionID.String(), data)
}
