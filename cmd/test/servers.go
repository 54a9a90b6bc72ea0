package main

import (
	"context"
	"fmt"
	"net/http"
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

// backend is the running server side of the smoke test.
type backend struct {
	store   interfaces.IWishlistStore
	watcher *market.MarketWatcher
	srv     interfaces.IDataExchanger
	health  *grpc_control.HealthService
	logger  *logger.Logger
}

// -----------------------------------------------------------------------------

// startServers orchestrates the startup of all server components and waits
// until the HTTP API answers.
func startServers(ctx context.Context, conf *config.Config, appLogger *logger.Logger) (*backend, error) {
	b := &backend{logger: appLogger}

	// 1. Wishlist store
	store, err := storage.NewWishlistStore(conf.MConfig, appLogger.Named("Storage"))
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to migrate db: %w", err)
	}
	b.store = store

	// 2. Auth and upstream sources
	verifier, err := auth.NewVerifier(conf.MConfig, appLogger.Named("Auth"))
	if err != nil {
		store.Close()
		return nil, err
	}
	networkManager := network.NewAsyncNetworkManager(conf.MConfig, appLogger.Named("Network"))
	symbols := finnhub.NewFinnhubSource(conf.MConfig, networkManager, appLogger.Named("Finnhub"))
	charts := yahoo.NewYahooFinanceSource(conf.MConfig, networkManager, appLogger.Named("Yahoo"))

	// 3. Market widget
	b.watcher = market.NewMarketWatcher(conf.MConfig, charts, symbols, appLogger.Named("Market"))

	// 4. HTTP + websocket server
	srv := server.NewDashboardServer(conf.MConfig, appLogger.Named("Server"), server.Dependencies{
		Symbols:  symbols,
		Charts:   charts,
		Network:  networkManager,
		Store:    store,
		Verifier: verifier,
		Market:   b.watcher,
	})
	b.watcher.OnSnapshot(func(snap *models.MMarketSnapshot) { srv.Broadcast(snap) })
	b.srv = srv

	if err := b.watcher.Start(); err != nil {
		store.Close()
		return nil, err
	}
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()

	// 5. gRPC health
	b.health = grpc_control.NewHealthService(conf.MConfig, store, b.watcher, appLogger.Named("Health"))
	go func() {
		if err := b.health.Start(); err != nil {
			appLogger.Error("gRPC health server failed: %v", err)
		}
	}()

	if err := waitHealthy(ctx, conf.Client.APIURL+"/api/health"); err != nil {
		b.Stop(context.Background())
		return nil, err
	}
	appLogger.Info("Backend ready on %s (gRPC :%d)", conf.Client.APIURL, conf.GrpcPort)
	return b, nil
}

// -----------------------------------------------------------------------------

func waitHealthy(ctx context.Context, url string) error {
	client := &http.Client{Timeout: time.Second}
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("server never became healthy: %w", ctx.Err())
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// -----------------------------------------------------------------------------

// Stop shuts components down in reverse start order.
func (b *backend) Stop(ctx context.Context) {
	if b.health != nil {
		b.health.Stop()
	}
	if b.watcher != nil {
		b.watcher.Stop()
	}
	if b.srv != nil {
		if err := b.srv.Stop(ctx); err != nil {
			b.logger.Warning("Server shutdown failed: %v", err)
		}
	}
	if b.store != nil {
		b.store.Close()
	}
}
