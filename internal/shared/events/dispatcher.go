package events

import (
	"context"
	"sync"

	"github.com/cristianortiz/auctionHouse/internal/shared/logger"
	"github.com/smallnest/chanx"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Handler consumes one dispatched item
type Handler[T any] func(ctx context.Context, item T)

// Dispatcher hands items to its handlers on a single background goroutine.
// Dispatch never blocks: items queue in an unbounded buffer, so a slow
// handler delays delivery but never the producer.
type Dispatcher[T any] struct {
	name     string
	handlers []Handler[T]
	queue    *chanx.UnboundedChan[T]
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

func NewDispatcher[T any](name string, bufferSize int, handlers ...Handler[T]) *Dispatcher[T] {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher[T]{
		name:     name,
		handlers: handlers,
		queue:    chanx.NewUnboundedChan[T](ctx, bufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
	d.wg.Add(1)
	go d.run()
	log.Info("Dispatcher started", zap.String("dispatcher", name), zap.Int("handlers", len(handlers)))
	return d
}

// Dispatch queues item and reports false once the dispatcher is closed.
func (d *Dispatcher[T]) Dispatch(item T) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	d.queue.In <- item
	return true
}

// Len is the number of items waiting for delivery.
func (d *Dispatcher[T]) Len() int {
	return d.queue.Len()
}

// Close stops accepting items, delivers what is already queued and waits
// for the handlers to finish.
func (d *Dispatcher[T]) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue.In)
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
	log.Info("Dispatcher closed", zap.String("dispatcher", d.name))
}

func (d *Dispatcher[T]) run() {
	defer d.wg.Done()
	for item := range d.queue.Out {
		for _, h := range d.handlers {
			d.deliver(h, item)
		}
	}
}

func (d *Dispatcher[T]) deliver(h Handler[T], item T) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Dispatcher handler panicked",
				zap.String("dispatcher", d.name),
				zap.Any("panic", r),
			)
		}
	}()
	h(d.ctx, item)
}
