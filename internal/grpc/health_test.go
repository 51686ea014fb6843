package grpc

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type flakyStore struct {
	down atomic.Bool
}

func (s *flakyStore) PingContext(ctx context.Context) error {
	if s.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func startServer(t *testing.T, healthSrv *health.Server) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServer(healthSrv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpclib.NewClient("passthrough:///bufnet",
		grpclib.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpclib.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func TestStoreProbeFlipsStatus(t *testing.T) {
	healthSrv := health.NewServer()
	client := startServer(t, healthSrv)
	store := &flakyStore{}
	probe := NewStoreProbe(healthSrv, store, "realtime-chat", 0, nil)
	ctx := context.Background()

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, probe.Check(ctx))
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "realtime-chat"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	store.down.Store(true)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, probe.Check(ctx))
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

func TestStoreProbeWithoutStoreServes(t *testing.T) {
	probe := NewStoreProbe(health.NewServer(), nil, "realtime-chat", 0, nil)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, probe.Check(context.Background()))
}
