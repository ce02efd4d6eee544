package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	"github.com/cristianortiz/auctionHouse/internal/shared/lock"
	"github.com/cristianortiz/auctionHouse/internal/shared/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Clock returns the current time. Use cases never call time.Now directly so
// tests can drive auctions through their lifecycle.
type Clock func() time.Time

// Options carries the collaborators and policies shared by every use case.
type Options struct {
	Tx        domain.TxManager
	Locker    lock.Locker
	Publisher domain.EventPublisher
	Holds     domain.HoldPolicy
	Clock     Clock
	Retry     RetryPolicy
	// BatchSize bounds how many auctions or bids a single sweep step touches, zero means no limit.
	BatchSize int
}

func (o Options) withDefaults() Options {
	if o.Locker == nil {
		o.Locker = lock.NewKeyedMutex()
	}
	if o.Publisher == nil {
		o.Publisher = domain.NopPublisher{}
	}
	if o.Holds.Rate().IsZero() {
		o.Holds = domain.DefaultHoldPolicy()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Retry.MaxRetries <= 0 {
		o.Retry.MaxRetries = DefaultMaxRetries
	}
	if o.Retry.Backoff <= 0 {
		o.Retry.Backoff = DefaultRetryBackoff
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	return o
}

const (
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = 20 * time.Millisecond
	DefaultBatchSize    = 100
)

// RetryPolicy retries operations that failed with ErrConcurrentModification.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// Do runs fn once plus up to MaxRetries more times while it keeps failing with
// ErrConcurrentModification, sleeping attempt×Backoff in between.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); !errors.Is(err, domain.ErrConcurrentModification) {
			return err
		}
		if attempt >= p.MaxRetries {
			break
		}
		log.Warn("Concurrent modification, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Int("maxRetries", p.MaxRetries),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * p.Backoff):
		}
	}
	log.Error("Giving up after concurrent modifications",
		zap.String("operation", op),
		zap.Int("maxRetries", p.MaxRetries),
	)
	return err
}

func auctionLockKey(auctionID uuid.UUID) string {
	return "auction:" + auctionID.String()
}

// withAuctionLock serializes fn with every other mutation of the same auction.
func withAuctionLock(ctx context.Context, locker lock.Locker, auctionID uuid.UUID, fn func() error) error {
	unlock, err := locker.Lock(ctx, auctionLockKey(auctionID))
	if err != nil {
		return fmt.Errorf("lock auction %s: %w", auctionID, err)
	}
	defer unlock()
	return fn()
}

// publish runs after commit, a cancelled request must not drop the events.
func publish(ctx context.Context, p domain.EventPublisher, events []domain.AuctionEvent) {
	if len(events) == 0 {
		return
	}
	p.Publish(context.WithoutCancel(ctx), events...)
}
