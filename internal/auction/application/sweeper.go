package application

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically activates due auctions, settles expired ones and
// retries hold releases that failed earlier. Every step is idempotent so
// several sweepers, or a sweeper and the finalize job, may run at once.
type Sweeper struct {
	finalizer *FinalizeUseCase
	interval  time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(finalizer *FinalizeUseCase, interval time.Duration) *Sweeper {
	return &Sweeper{finalizer: finalizer, interval: interval}
}

// Start runs the sweep loop in the background until Stop is called or ctx ends.
// A second Start while running is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	log.Info("Sweeper started", zap.Duration("interval", s.interval))
}

// Stop ends the loop and waits for the sweep in progress to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Info("Sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// SweepReport counts what one pass did.
type SweepReport struct {
	Activated    int
	Finalized    int
	HoldReleases int
}

// Sweep runs one pass. Errors are logged, the next pass retries.
func (s *Sweeper) Sweep(ctx context.Context) SweepReport {
	var report SweepReport
	var err error
	if report.Activated, err = s.finalizer.ActivateDue(ctx); err != nil {
		log.Error("Sweeper: activation step failed", zap.Error(err))
	}
	if report.Finalized, err = s.finalizer.FinalizeExpiredAuctions(ctx); err != nil {
		log.Error("Sweeper: settlement step failed", zap.Error(err))
	}
	if report.HoldReleases, err = s.finalizer.RetryHoldReleases(ctx); err != nil {
		log.Error("Sweeper: hold release step failed", zap.Error(err))
	}
	if report != (SweepReport{}) {
		log.Debug("Sweep finished",
			zap.Int("activated", report.Activated),
			zap.Int("finalized", report.Finalized),
			zap.Int("holdReleases", report.HoldReleases),
		)
	}
	return report
}
