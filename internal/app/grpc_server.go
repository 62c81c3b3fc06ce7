package app

import (
	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcsvc "github.com/vladislavdragonenkov/petshop/internal/service/grpc"
)

// newGRPCServer собирает сервер витрины с метриками, трассировкой, логированием,
// стандартным health-сервисом и reflection.
func newGRPCServer(service grpcsvc.StorefrontServer, logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := registerGRPCMetrics(logger)

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcMetrics.UnaryServerInterceptor(),
			grpcsvc.LoggingUnaryInterceptor(logger),
			grpcsvc.RecoveryUnaryInterceptor(logger),
		),
	)

	grpcsvc.RegisterStorefrontServer(server, service)
	grpcMetrics.InitializeMetrics(server)

	// Register reflection service for grpcurl and load testing tools
	reflection.Register(server)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcsvc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	return server, healthServer
}

// registerGRPCMetrics регистрирует метрики сервера, переиспользуя уже
// зарегистрированный коллектор при повторном запуске в одном процессе.
func registerGRPCMetrics(logger *log.Entry) *promgrpc.ServerMetrics {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				return existing
			}
		}
		logger.WithError(err).Warn("failed to register grpc metrics")
	}
	return grpcMetrics
}
