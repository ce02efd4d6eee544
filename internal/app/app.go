// Package app assembles the auction module from the configuration, shared by
// the server and the settlement job.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/cristianortiz/auctionHouse/internal/auction/application"
	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	auctionevents "github.com/cristianortiz/auctionHouse/internal/auction/infra/events"
	"github.com/cristianortiz/auctionHouse/internal/auction/infra/repository/memory"
	"github.com/cristianortiz/auctionHouse/internal/auction/infra/repository/postgres"
	"github.com/cristianortiz/auctionHouse/internal/shared/config"
	"github.com/cristianortiz/auctionHouse/internal/shared/db"
	"github.com/cristianortiz/auctionHouse/internal/shared/db/migrations"
	sharedevents "github.com/cristianortiz/auctionHouse/internal/shared/events"
	"github.com/cristianortiz/auctionHouse/internal/shared/lock"
	"github.com/cristianortiz/auctionHouse/internal/shared/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const (
	lockPrefix      = "auction-house:lock:"
	eventBufferSize = 256
)

// Components are the long lived pieces a binary needs.
type Components struct {
	Options   application.Options
	Service   application.AuctionService
	Finalizer *application.FinalizeUseCase

	dispatcher *sharedevents.Dispatcher[domain.AuctionEvent]
	closers    []func()
}

// Build connects storage, locks and event publishing as cfg says. handlers
// receive every committed event, after the redis stream when it is enabled.
func Build(ctx context.Context, cfg *config.Config, handlers ...sharedevents.Handler[domain.AuctionEvent]) (*Components, error) {
	c := &Components{}

	tx, err := c.storage(ctx, cfg)
	if err != nil {
		c.Close()
		return nil, err
	}

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		c.closers = append(c.closers, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			c.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.LockBackend == config.LockRedis {
		locker = lock.NewRedisLocker(rdb, lockPrefix, cfg.LockTTL)
	}

	if cfg.EventStream != "" {
		stream := auctionevents.NewStreamPublisher(rdb, cfg.EventStream)
		handlers = append([]sharedevents.Handler[domain.AuctionEvent]{stream.Handle}, handlers...)
	}
	c.dispatcher = sharedevents.NewDispatcher[domain.AuctionEvent]("auction-events", eventBufferSize, handlers...)

	holds, err := domain.NewHoldPolicy(cfg.HoldRate)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Options = application.Options{
		Tx:        tx,
		Locker:    locker,
		Publisher: auctionevents.NewAsyncPublisher(c.dispatcher),
		Holds:     holds,
		Retry:     application.RetryPolicy{MaxRetries: cfg.MaxTxRetries},
	}
	c.Service = application.NewAuctionService(c.Options)
	c.Finalizer = application.NewFinalizeUseCase(c.Options)

	log.Info("Auction module ready",
		zap.String("store", cfg.StoreDriver),
		zap.String("locks", cfg.LockBackend),
		zap.String("holdRate", cfg.HoldRate.String()),
		zap.Bool("eventStream", cfg.EventStream != ""),
	)
	return c, nil
}

func (c *Components) storage(ctx context.Context, cfg *config.Config) (domain.TxManager, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		log.Warn("Using the in-memory store, nothing survives a restart")
		return memory.NewStore(), nil
	case config.StorePostgres:
		if err := migrations.RunMigrations(cfg); err != nil {
			return nil, fmt.Errorf("database migration failed: %w", err)
		}
		pool, err := db.GetPostgresDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, pool.Close)
		return postgres.NewTxManager(pool), nil
	default:
		return nil, errors.New("unknown store driver " + cfg.StoreDriver)
	}
}

// Close delivers the queued events and releases the connections, last opened first.
func (c *Components) Close() {
	if c.dispatcher != nil {
		c.dispatcher.Close()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
