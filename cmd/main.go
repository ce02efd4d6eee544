package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cristianortiz/auctionHouse/internal/app"
	"github.com/cristianortiz/auctionHouse/internal/auction/application"
	auctionevents "github.com/cristianortiz/auctionHouse/internal/auction/infra/events"
	auctionhttp "github.com/cristianortiz/auctionHouse/internal/auction/infra/http"
	auctionws "github.com/cristianortiz/auctionHouse/internal/auction/infra/websocket"
	"github.com/cristianortiz/auctionHouse/internal/shared/config"
	"github.com/cristianortiz/auctionHouse/internal/shared/httpserver"
	"github.com/cristianortiz/auctionHouse/internal/shared/logger"
	"github.com/cristianortiz/auctionHouse/internal/shared/websocket"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Inicializa logger
	logger := logger.GetLogger()
	defer logger.Sync()

	logger.Info("Starting AuctionHouse server...")

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the hub receives every committed event for the ws clients
	hub := websocket.NewHub()
	components, err := app.Build(ctx, cfg, auctionevents.NewHubBroadcaster(hub).Handle)
	if err != nil {
		logger.Fatal("Failed to build the auction module", zap.Error(err))
	}
	defer components.Close()

	go hub.Run(ctx)

	auth := httpserver.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer)
	server := httpserver.NewServer()
	auctionhttp.NewAuctionHTTPHandler(components.Service).RegisterRoutes(server.App(), auth)
	wsHandler := auctionws.NewAuctionWSHandler(components.Service, hub)
	wsHandler.RegisterRoutes(ctx, server.App(), auth)
	go wsHandler.ListenForMessages(ctx)

	sweeper := application.NewSweeper(components.Finalizer, cfg.SweepInterval)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// Arranca el servidor HTTP
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		logger.Error("HTTP server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	logger.Info("AuctionHouse server stopped")
}
