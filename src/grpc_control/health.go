package grpc_control

import (
	"context"
	"fmt"
	"net"
	"time"

	"stock-dashboard/src/interfaces"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"

	"github.com/robfig/cron/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Service names reported through grpc.health.v1.
const (
	ServiceWishlist = "dashboard.Wishlist"
	ServiceMarket   = "dashboard.Market"
)

// MarketProbe reports whether market data has been refreshed recently.
type MarketProbe interface {
	Snapshot(ctx context.Context) *models.MMarketSnapshot
}

// HealthService exposes the standard gRPC health protocol for orchestrators.
// Statuses are recomputed on a cron schedule from the wishlist store and the
// market snapshot age.
type HealthService struct {
	Config *models.MConfig
	Store  interfaces.IWishlistStore
	Market MarketProbe
	Logger *logger.Logger

	health *health.Server
	server *grpc.Server
	cron   *cron.Cron
}

// -----------------------------------------------------------------------------

func NewHealthService(cfg *models.MConfig, store interfaces.IWishlistStore, market MarketProbe, log *logger.Logger) *HealthService {
	hs := &HealthService{
		Config: cfg,
		Store:  store,
		Market: market,
		Logger: log,
		health: health.NewServer(),
		server: grpc.NewServer(),
	}
	healthpb.RegisterHealthServer(hs.server, hs.health)
	reflection.Register(hs.server)
	return hs
}

// -----------------------------------------------------------------------------

// Check recomputes every service status once.
func (hs *HealthService) Check(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	storeStatus := healthpb.HealthCheckResponse_SERVING
	if err := hs.Store.Ping(ctx); err != nil {
		hs.Logger.Warning("Wishlist store unhealthy: %v", err)
		storeStatus = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.health.SetServingStatus(ServiceWishlist, storeStatus)

	marketStatus := healthpb.HealthCheckResponse_NOT_SERVING
	if snap := hs.Market.Snapshot(ctx); snap != nil {
		for _, idx := range snap.Indices {
			if idx != nil {
				marketStatus = healthpb.HealthCheckResponse_SERVING
				break
			}
		}
	}
	hs.health.SetServingStatus(ServiceMarket, marketStatus)

	overall := healthpb.HealthCheckResponse_SERVING
	if storeStatus != healthpb.HealthCheckResponse_SERVING {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.health.SetServingStatus("", overall)
}

// -----------------------------------------------------------------------------

// Start listens on grpc_host:grpc_port and schedules the probes. It blocks
// until Stop is called.
func (hs *HealthService) Start() error {
	addr := fmt.Sprintf("%s:%d", hs.Config.GrpcHost, hs.Config.GrpcPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	hs.cron = cron.New(cron.WithSeconds())
	if _, err := hs.cron.AddFunc(hs.Config.Market.HealthCron, func() { hs.Check(context.Background()) }); err != nil {
		lis.Close()
		return fmt.Errorf("invalid health schedule %q: %w", hs.Config.Market.HealthCron, err)
	}
	hs.cron.Start()
	go hs.Check(context.Background())

	hs.Logger.Info("Starting gRPC health server on %s", addr)
	return hs.server.Serve(lis)
}

// -----------------------------------------------------------------------------

func (hs *HealthService) Stop() {
	hs.health.Shutdown()
	if hs.cron != nil {
		<-hs.cron.Stop().Done()
	}
	hs.server.GracefulStop()
}

// -----------------------------------------------------------------------------

// Server exposes the underlying grpc server, mainly for tests over bufconn.
func (hs *HealthService) Server() *grpc.Server {
	return hs.server
}
