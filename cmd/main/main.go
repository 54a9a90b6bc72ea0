package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stock-dashboard/src/auth"
	"stock-dashboard/src/config"
	"stock-dashboard/src/data_source/finnhub"
	"stock-dashboard/src/data_source/yahoo"
	"stock-dashboard/src/grpc_control"
	"stock-dashboard/src/interfaces"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/market"
	"stock-dashboard/src/models"
	"stock-dashboard/src/network"
	"stock-dashboard/src/server"
	"stock-dashboard/src/storage"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	// 1. Load config from YAML file, .env and the environment
	config, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(config.MConfig, config.Name)

	// 2. Wishlist storage
	store, err := storage.NewWishlistStore(config.MConfig, appLogger.Named("Storage"))
	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
		os.Exit(1)
	}
	if err := store.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	// 3. Auth
	verifier, err := auth.NewVerifier(config.MConfig, appLogger.Named("Auth"))
	if err != nil {
		appLogger.Critical("Failed to init auth: %v", err)
		os.Exit(1)
	}

	// 4. Upstream data sources
	var networkManager interfaces.INetworkManager = network.NewAsyncNetworkManager(config.MConfig, appLogger.Named("Network"))
	var symbols interfaces.ISymbolSource = finnhub.NewFinnhubSource(config.MConfig, networkManager, appLogger.Named("Finnhub"))
	var charts interfaces.IChartSource = yahoo.NewYahooFinanceSource(config.MConfig, networkManager, appLogger.Named("Yahoo"))

	if config.DataSource.FinnhubAPIKey == "" {
		appLogger.Warning("No Finnhub API key configured; search, profile, quote and news will fail")
	}

	// 5. Market widget
	watcher := market.NewMarketWatcher(config.MConfig, charts, symbols, appLogger.Named("Market"))

	// 6. HTTP + websocket server
	var srv interfaces.IDataExchanger = server.NewDashboardServer(config.MConfig, appLogger.Named("Server"), server.Dependencies{
		Symbols:  symbols,
		Charts:   charts,
		Network:  networkManager,
		Store:    store,
		Verifier: verifier,
		Market:   watcher,
	})
	watcher.OnSnapshot(func(snap *models.MMarketSnapshot) { srv.Broadcast(snap) })

	if err := watcher.Start(); err != nil {
		appLogger.Critical("Failed to start market watcher: %v", err)
		os.Exit(1)
	}

	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Critical("Server failed: %v", err)
			os.Exit(1)
		}
	}()

	// 7. Optional gRPC health endpoint
	var healthService *grpc_control.HealthService
	if config.GrpcPort > 0 {
		healthService = grpc_control.NewHealthService(config.MConfig, store, watcher, appLogger.Named("Health"))
		go func() {
			if err := healthService.Start(); err != nil {
				appLogger.Error("gRPC health server failed: %v", err)
			}
		}()
	}

	// 8. Wait for a shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if healthService != nil {
		healthService.Stop()
	}
	watcher.Stop()
	if err := srv.Stop(ctx); err != nil {
		appLogger.Error("Server shutdown failed: %v", err)
	}
}
