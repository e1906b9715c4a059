package grpcserver

import (
	"context"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"userManagement/internal/auth"
	"userManagement/internal/config"
	"userManagement/internal/metrics"
	"userManagement/internal/users"
)

const healthCheckMethod = "/grpc.health.v1.Health/Check"

// NewServer builds a gRPC server exposing UserService and the standard
// health service. Every method except the health check requires a bearer
// token signed with secret.
func NewServer(secret string, svc *users.Service, logger *zap.Logger, m *metrics.Metrics) *grpc.Server {
	srv, _ := newServer(context.Background(), secret, svc, logger, m)
	return srv
}

// newServer is NewServer with a server lifetime: WatchUsers streams end once
// lifetime is done.
func newServer(lifetime context.Context, secret string, svc *users.Service, logger *zap.Logger, m *metrics.Metrics) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			LoggingInterceptor(logger, m),
			auth.NewUnaryAuthInterceptor(secret, healthCheckMethod),
		),
		grpc.ChainStreamInterceptor(
			StreamLoggingInterceptor(logger, m),
			auth.NewStreamAuthInterceptor(secret),
		),
	)

	RegisterUserServiceServer(srv, &Server{Users: svc, Logger: logger, Lifetime: lifetime})

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}

// StartGRPC starts the gRPC server on the configured address and returns a shutdown function.
func StartGRPC(cfg *config.Config, svc *users.Service, logger *zap.Logger, m *metrics.Metrics) (func(context.Context) error, error) {
	if cfg == nil {
		panic("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	addr := cfg.GRPC.Address
	if addr == "" {
		addr = ":50051"
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	// Plaintext; terminate TLS in front of the service.
	lifetime, cancel := context.WithCancel(context.Background())
	srv, hs := newServer(lifetime, cfg.Auth.JWTSecret, svc, logger, m)
	go serve(srv, lis, logger)
	logger.Info("grpc listening", zap.String("addr", lis.Addr().String()))

	return stopFunc(srv, hs, cancel), nil
}

func serve(srv *grpc.Server, lis net.Listener, logger *zap.Logger) {
	if err := srv.Serve(lis); err != nil {
		logger.Error("grpc serve", zap.Error(err))
	}
}

// stopFunc marks the server NOT_SERVING, ends open WatchUsers streams and
// drains in-flight calls. Calls still running when ctx ends are cut off.
func stopFunc(srv *grpc.Server, hs *health.Server, endStreams context.CancelFunc) func(context.Context) error {
	return func(ctx context.Context) error {
		hs.Shutdown()
		endStreams()
		done := make(chan struct{})
		go func() { srv.GracefulStop(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			srv.Stop()
			return ctx.Err()
		}
	}
}
