package grpc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type stubPinger struct{ err error }

func (p *stubPinger) PingContext(context.Context) error { return p.err }

func TestCheckFollowsStorage(t *testing.T) {
	pinger := &stubPinger{}
	srv := NewServer(pinger, nil)
	ctx := context.Background()

	require.Equal(t, healthpb.HealthCheckResponse_SERVING, srv.Check(ctx))

	pinger.err = errors.New("connection refused")
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, srv.Check(ctx))

	resp, err := srv.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	pinger.err = nil
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, srv.Check(ctx))
}

func TestCheckWithoutStorage(t *testing.T) {
	srv := NewServer(nil, nil)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, srv.Check(context.Background()))
}
