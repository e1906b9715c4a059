package grpcserver

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"userManagement/internal/logging"
	"userManagement/internal/metrics"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "x-request-id"

func requestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(RequestIDHeader); len(v) > 0 && v[0] != "" {
			return v[0]
		}
	}
	return uuid.NewString()
}

// LoggingInterceptor tags each call with a request id, echoes it in the
// response header, and logs and counts the outcome.
func LoggingInterceptor(logger *zap.Logger, m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		rid := requestID(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, rid))

		resp, err := handler(ctx, req)
		observe(logging.WithRequestID(logger, rid), m, info.FullMethod, start, err)
		return resp, err
	}
}

// StreamLoggingInterceptor is LoggingInterceptor for streams.
func StreamLoggingInterceptor(logger *zap.Logger, m *metrics.Metrics) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		rid := requestID(ss.Context())
		_ = ss.SetHeader(metadata.Pairs(RequestIDHeader, rid))

		err := handler(srv, ss)
		observe(logging.WithRequestID(logger, rid), m, info.FullMethod, start, err)
		return err
	}
}

func observe(log *zap.Logger, m *metrics.Metrics, method string, start time.Time, err error) {
	code := status.Code(err)
	elapsed := time.Since(start)
	m.ObserveRPC(method, code.String(), elapsed.Seconds())
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("code", code.String()),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		log.Warn("rpc failed", append(fields, zap.Error(err))...)
		return
	}
	log.Debug("rpc", fields...)
}
