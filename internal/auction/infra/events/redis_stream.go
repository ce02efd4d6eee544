package events

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

const (
	defaultStreamMaxLen = 100_000
	streamWriteTimeout  = 2 * time.Second
)

var ErrMalformedStreamEntry = errors.New("malformed stream entry")

// StreamEvent is the wire form of a domain event in the redis stream.
// Ids are strings and times unix milliseconds so any consumer can read it.
type StreamEvent struct {
	Type            string `msgpack:"type"`
	AuctionID       string `msgpack:"auction_id"`
	BidID           string `msgpack:"bid_id,omitempty"`
	BidderID        string `msgpack:"bidder_id,omitempty"`
	Amount          int64  `msgpack:"amount,omitempty"`
	IsProxyBid      bool   `msgpack:"is_proxy_bid,omitempty"`
	CurrentPrice    int64  `msgpack:"current_price"`
	NextMinimumBid  int64  `msgpack:"next_minimum_bid"`
	HighestBidderID string `msgpack:"highest_bidder_id,omitempty"`
	WinnerID        string `msgpack:"winner_id,omitempty"`
	State           string `msgpack:"state"`
	EndTime         int64  `msgpack:"end_time"`
	OccurredAt      int64  `msgpack:"occurred_at"`
}

func NewStreamEvent(e domain.AuctionEvent) StreamEvent {
	return StreamEvent{
		Type:            string(e.Type),
		AuctionID:       e.AuctionID.String(),
		BidID:           idString(e.BidID),
		BidderID:        idString(e.BidderID),
		Amount:          int64(e.Amount),
		IsProxyBid:      e.IsProxyBid,
		CurrentPrice:    int64(e.CurrentPrice),
		NextMinimumBid:  int64(e.NextMinimumBid),
		HighestBidderID: idString(e.HighestBidderID),
		WinnerID:        idString(e.WinnerID),
		State:           string(e.State),
		EndTime:         e.EndTime.UnixMilli(),
		OccurredAt:      e.OccurredAt.UnixMilli(),
	}
}

func idString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// StreamPublisher appends every event to a capped redis stream, for services
// outside this process (notifications, analytics).
type StreamPublisher struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

func NewStreamPublisher(client redis.Cmdable, stream string) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: defaultStreamMaxLen}
}

// Append writes e as one stream entry and returns its id.
func (p *StreamPublisher) Append(ctx context.Context, e domain.AuctionEvent) (string, error) {
	values, err := EncodeStreamValues(NewStreamEvent(e))
	if err != nil {
		return "", err
	}
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("stream publisher: xadd %s: %w", p.stream, err)
	}
	return id, nil
}

// Handle is a dispatcher handler, failures are logged and the event is lost
// for the stream only.
func (p *StreamPublisher) Handle(ctx context.Context, e domain.AuctionEvent) {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	if _, err := p.Append(ctx, e); err != nil {
		log.Error("StreamPublisher: failed to append event",
			zap.String("type", string(e.Type)),
			zap.String("auctionID", e.AuctionID.String()),
			zap.Error(err),
		)
	}
}

// EncodeStreamValues packs se with msgpack, base64 encoded under "data", and
// repeats the type in clear so consumers can filter without decoding.
func EncodeStreamValues(se StreamEvent) ([]any, error) {
	raw, err := msgpack.Marshal(se)
	if err != nil {
		return nil, fmt.Errorf("msgpack marshal error: %w", err)
	}
	return []any{"type", se.Type, "data", base64.StdEncoding.EncodeToString(raw)}, nil
}

// DecodeStreamValues is the inverse of EncodeStreamValues for a read entry.
func DecodeStreamValues(values map[string]any) (StreamEvent, error) {
	var se StreamEvent
	data, ok := values["data"].(string)
	if !ok {
		return se, fmt.Errorf("%w: data field not found or invalid type", ErrMalformedStreamEntry)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return se, fmt.Errorf("%w: base64 decode error: %v", ErrMalformedStreamEntry, err)
	}
	if err := msgpack.Unmarshal(raw, &se); err != nil {
		return se, fmt.Errorf("%w: msgpack unmarshal error: %v", ErrMalformedStreamEntry, err)
	}
	return se, nil
}
