package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLocker is a Locker shared by every process using the same Redis. The
// lock is extended in the background while held so a slow transaction does
// not outlive it.
type RedisLocker struct {
	rs         *redsync.Redsync
	prefix     string
	expiry     time.Duration
	retryDelay time.Duration
}

func NewRedisLocker(client *redis.Client, prefix string, expiry time.Duration) *RedisLocker {
	if expiry <= 0 {
		expiry = 8 * time.Second
	}
	return &RedisLocker{
		rs:         redsync.New(goredis.NewPool(client)),
		prefix:     prefix,
		expiry:     expiry,
		retryDelay: 50 * time.Millisecond,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	name := l.prefix + key
	mutex := l.rs.NewMutex(name,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(1),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
		err := mutex.LockContext(ctx)
		if err == nil {
			break
		}
		// only communication failures are fatal, contention is retried
		var commErr *redsync.RedisError
		if errors.As(err, &commErr) {
			return nil, fmt.Errorf("lock %s: %w", name, err)
		}
		timer.Reset(l.retryDelay)
	}

	renewCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		keepAlive(renewCtx, name, l.expiry/3, mutex.ExtendContext)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
			if _, err := mutex.UnlockContext(context.Background()); err != nil {
				log.Warn("Failed to release redis lock", zap.String("key", name), zap.Error(err))
			}
		})
	}, nil
}

// keepAlive extends the lock every interval until ctx is cancelled or an
// extension fails.
func keepAlive(ctx context.Context, name string, interval time.Duration, extend func(context.Context) (bool, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ok, err := extend(ctx); err != nil || !ok {
				// released while extending
				if ctx.Err() != nil {
					return
				}
				log.Warn("Failed to extend redis lock", zap.String("key", name), zap.Error(err))
				return
			}
		}
	}
}
