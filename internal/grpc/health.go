// Package grpc hosts the internal gRPC endpoint. It serves the standard health
// service, reporting NOT_SERVING while the store is unreachable.
package grpc

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"realtime-chat/internal/observability"
)

// Pinger checks store connectivity. *sqlx.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// NewServer builds a gRPC server with tracing and metrics, and the health service registered.
func NewServer(healthSrv *health.Server) *grpclib.Server {
	srv := grpclib.NewServer(
		grpclib.StatsHandler(otelgrpc.NewServerHandler()),
		grpclib.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	healthpb.RegisterHealthServer(srv, healthSrv)
	return srv
}

// StoreProbe flips the health status of service (and the overall "" entry)
// according to store reachability.
type StoreProbe struct {
	health   *health.Server
	pinger   Pinger
	service  string
	interval time.Duration
	log      *zap.Logger
	last     healthpb.HealthCheckResponse_ServingStatus
}

func NewStoreProbe(healthSrv *health.Server, pinger Pinger, service string, interval time.Duration, log *zap.Logger) *StoreProbe {
	if log == nil {
		log = zap.NewNop()
	}
	return &StoreProbe{health: healthSrv, pinger: pinger, service: service, interval: interval, log: log}
}

// Check pings the store once and publishes the resulting status.
func (p *StoreProbe) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if p.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := p.pinger.PingContext(pingCtx)
		cancel()
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			p.log.Warn("store ping failed", zap.Error(err))
		}
	}

	if status != p.last {
		p.log.Info("health status changed", zap.String("status", status.String()))
		p.last = status
	}
	p.health.SetServingStatus("", status)
	p.health.SetServingStatus(p.service, status)
	return status
}

// Run checks immediately and then every interval until ctx is done.
func (p *StoreProbe) Run(ctx context.Context) {
	p.Check(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.health.Shutdown()
			return
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}
