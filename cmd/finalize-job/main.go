// finalize-job runs a single settlement sweep and exits, for cron style
// deployments that do not run the server's sweeper.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cristianortiz/auctionHouse/internal/app"
	"github.com/cristianortiz/auctionHouse/internal/auction/application"
	"github.com/cristianortiz/auctionHouse/internal/shared/config"
	"github.com/cristianortiz/auctionHouse/internal/shared/logger"
	"go.uber.org/zap"
)

func main() {
	logger := logger.GetLogger()
	defer logger.Sync()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to build the auction module", zap.Error(err))
	}
	// Close waits for the queued events to reach the stream
	defer components.Close()

	report := application.NewSweeper(components.Finalizer, cfg.SweepInterval).Sweep(ctx)
	logger.Info("Settlement sweep finished",
		zap.Int("activated", report.Activated),
		zap.Int("finalized", report.Finalized),
		zap.Int("holdReleases", report.HoldReleases),
	)
}
