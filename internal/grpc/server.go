package grpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"social-chat/internal/observability"
)

// ServiceName is the name health checks are reported under, next to the
// empty overall name.
const ServiceName = "social-chat"

// Pinger reports storage reachability. A nil Pinger is always healthy.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server serves grpc.health.v1 and keeps the status in line with storage.
type Server struct {
	server *grpc.Server
	health *health.Server
	pinger Pinger
	logger *slog.Logger
}

func NewServer(pinger Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	s := &Server{server: srv, health: hs, pinger: pinger, logger: logger}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	return s
}

// Serve blocks until the listener fails or Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("grpc listening", "addr", lis.Addr().String())
	return s.server.Serve(lis)
}

// Watch re-checks storage every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	if s.pinger == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

// Check pings storage once and updates the reported status.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if s.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.pinger.PingContext(pingCtx)
		cancel()
		if err != nil {
			s.logger.Warn("storage ping failed", "err", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.setStatus(status)
	return status
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
