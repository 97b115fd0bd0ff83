package grpc

import (
	"context"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name that tracks dependency checks. The
// empty name reports whether the process is serving at all.
const ServiceName = "storefront"

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

// Server is the ops gRPC endpoint: health and reflection only.
type Server struct {
	srv    *grpc.Server
	health *health.Server
	log    *zap.Logger

	mu     sync.Mutex
	failed map[string]bool
}

func NewServer(log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	srv := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)

	// Enable reflection for grpcurl/grpcui
	reflection.Register(srv)

	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		srv:    srv,
		health: hs,
		log:    log,
		failed: make(map[string]bool),
	}
}

// Serve blocks until the server stops.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("grpc server listening", zap.String("addr", lis.Addr().String()))
	return s.srv.Serve(lis)
}

// Shutdown reports NOT_SERVING for every service and drains connections.
func (s *Server) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.srv.Stop()
	}
}

// MonitorDependencies runs checks every interval until ctx is done. The
// storefront service is NOT_SERVING while any check fails.
func (s *Server) MonitorDependencies(ctx context.Context, interval time.Duration, checks map[string]Check) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.runChecks(ctx, interval, checks)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) runChecks(ctx context.Context, timeout time.Duration, checks map[string]Check) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, check := range checks {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		err := check(cctx)
		cancel()

		if err != nil && !s.failed[name] {
			s.log.Warn("dependency check failed", zap.String("dependency", name), zap.Error(err))
		}
		if err == nil && s.failed[name] {
			s.log.Info("dependency recovered", zap.String("dependency", name))
		}
		s.failed[name] = err != nil
	}

	status := grpc_health_v1.HealthCheckResponse_SERVING
	for _, failed := range s.failed {
		if failed {
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
			break
		}
	}
	s.health.SetServingStatus(ServiceName, status)
}
