// ABOUTME: gRPC server exposing the standard grpc.health.v1 service
// ABOUTME: Serving status follows store reachability and flips to NOT_SERVING on shutdown

package gateway

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// ledgerServiceName is the health service name reported alongside the
// overall ("") status.
const ledgerServiceName = "ledger.Gateway"

// healthProbeInterval is how often the store is pinged to refresh gRPC health.
const healthProbeInterval = 15 * time.Second

// newGRPCServer creates a gRPC server with the health service registered.
func newGRPCServer() (*grpc.Server, *health.Server) {
	server := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    15 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)
	return server, hs
}

// watchHealth keeps the health status in step with store reachability until
// ctx is canceled.
func watchHealth(ctx context.Context, hs *health.Server, store pinger, logger *slog.Logger) {
	probe := func() {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err := store.Ping(pctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("store ping failed", "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", status)
		hs.SetServingStatus(ledgerServiceName, status)
	}

	probe()
	ticker := time.NewTicker(healthProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}
