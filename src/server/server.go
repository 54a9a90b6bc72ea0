package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"stock-dashboard/src/interfaces"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"

	"github.com/gin-gonic/gin"
)

// MarketFeed is the cached market widget data the server exposes.
type MarketFeed interface {
	Snapshot(ctx context.Context) *models.MMarketSnapshot
	News(ctx context.Context) ([]models.MNewsItem, error)
}

// Dependencies groups the collaborators the routes delegate to.
type Dependencies struct {
	Symbols  interfaces.ISymbolSource
	Charts   interfaces.IChartSource
	Network  interfaces.INetworkManager
	Store    interfaces.IWishlistStore
	Verifier interfaces.IAuthVerifier
	Market   MarketFeed
}

// -----------------------------------------------------------------------------
// DashboardServer
// -----------------------------------------------------------------------------

type DashboardServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	deps   Dependencies
	engine *gin.Engine
	http   *http.Server

	// WebSocket clients
	clients    map[*subscriber]struct{}
	broadcast  chan *models.MMarketSnapshot
	register   chan *subscriber
	unregister chan *subscriber
	quit       chan struct{}
	stopOnce   sync.Once

	// Local cache
	latestState *models.MMarketSnapshot
	stateMutex  sync.RWMutex
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewDashboardServer(cfg *models.MConfig, log *logger.Logger, deps Dependencies) *DashboardServer {
	if cfg.LogLevel != "DEBUG" && gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &DashboardServer{
		Config:  cfg,
		Logger:  log,
		deps:    deps,
		engine:  gin.New(),
		clients: make(map[*subscriber]struct{}),
		// Buffered so a refresh never waits on the hub loop
		broadcast:  make(chan *models.MMarketSnapshot, 64),
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		quit:       make(chan struct{}),
	}

	s.engine.Use(gin.Recovery(), s.requestID(), s.accessLog(), s.cors())
	s.setupRoutes()

	go s.handleWebsockets()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *DashboardServer) setupRoutes() {
	api := s.engine.Group("/api")

	// Market data proxy
	api.GET("/search", s.getSearch)
	api.GET("/profile", s.getProfile)
	api.GET("/quote", s.getQuote)
	api.GET("/candles", s.getCandles)
	api.GET("/logo", s.getLogo)

	// Front page widgets
	api.GET("/market", s.getMarket)
	api.GET("/news", s.getNews)
	api.GET("/health", s.getHealth)

	// Wishlist (authenticated)
	wishlist := api.Group("/wishlist", s.requireUser())
	wishlist.GET("", s.getWishlist)
	wishlist.POST("", s.postWishlist)
	wishlist.DELETE("", s.deleteWishlist)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)

	if s.Config.StaticDir != "" {
		s.engine.Static("/app", s.Config.StaticDir)
	}
}

// -----------------------------------------------------------------------------

// Handler exposes the router, mainly for tests.
func (s *DashboardServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start serves HTTP until Stop is called.
func (s *DashboardServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.Logger.Info("Starting server on %s", addr)

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) Stop(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	s.stopOnce.Do(func() { close(s.quit) })
	return err
}
