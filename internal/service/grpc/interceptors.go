package grpcsvc

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingUnaryInterceptor пишет одну запись на вызов: метод, код, длительность.
// Серверные ошибки логируются как error, отказы клиенту как info.
func LoggingUnaryInterceptor(logger *log.Entry) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = log.WithField("component", "grpc")
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		fields := log.Fields{
			"method":      info.FullMethod,
			"code":        code.String(),
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if sessionID := incomingValue(ctx, SessionIDHeader); sessionID != "" {
			fields["session_id"] = sessionID
		}
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}

		entry := logger.WithFields(fields)
		switch code {
		case codes.OK:
			entry.Debug("grpc request served")
		case codes.Internal, codes.Unknown, codes.DataLoss:
			entry.WithError(err).Error("grpc request failed")
		default:
			entry.WithField("reason", status.Convert(err).Message()).Info("grpc request rejected")
		}
		return resp, err
	}
}

// RecoveryUnaryInterceptor превращает панику обработчика в codes.Internal.
func RecoveryUnaryInterceptor(logger *log.Entry) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = log.WithField("component", "grpc")
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(log.Fields{
					"method": info.FullMethod,
					"panic":  r,
				}).Error("grpc handler panicked")
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}
