// Package app собирает витрину из хранилищ, Kafka, воркеров и серверов.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	healthcheck "github.com/vladislavdragonenkov/petshop/internal/health"
	"github.com/vladislavdragonenkov/petshop/internal/httpapi"
	"github.com/vladislavdragonenkov/petshop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/petshop/internal/metrics"
	grpcsvc "github.com/vladislavdragonenkov/petshop/internal/service/grpc"
	"github.com/vladislavdragonenkov/petshop/internal/service/idempotency"
	"github.com/vladislavdragonenkov/petshop/internal/service/outbox"
	"github.com/vladislavdragonenkov/petshop/internal/storefront"
	"github.com/vladislavdragonenkov/petshop/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run запускает витрину и блокируется до отмены ctx или ошибки gRPC-сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	shutdownTracing := initTracing(version.ServiceName, version.GetVersion(), cfg.TracingEnabled, logger)
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			logger.WithError(err).Warn("failed to shut down tracing")
		}
	}()

	brokers := cfg.kafkaBrokerList()
	producer, _ := initKafkaProducer(brokers, logger)
	defer closeKafka(producer, logger)

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	if producer != nil {
		consumer, err := startAuditConsumer(workerCtx, brokers, cfg.KafkaConsumerGroup, deps.Timeline, producer, logger)
		if err != nil {
			logger.WithError(err).Warn("failed to start audit consumer, timeline projection disabled")
		}
		defer func() {
			cancelWorkers()
			stopConsumer(consumer, logger)
		}()
	}

	registryCfg := storefront.Config{
		NewSource: deps.NewCatalogSource,
		Pets:      deps.Pets,
		Payments:  deps.Payments,
		Orders:    deps.Orders,
		Outbox:    deps.Outbox,
		Timeline:  deps.Timeline,
		Metrics:   metrics.NewCheckoutMetrics(),
		Logger:    logger.WithField("component", "storefront"),
	}
	if producer != nil {
		registryCfg.Publisher = producer
	}
	registry := storefront.NewRegistry(registryCfg)

	guard := idempotency.NewGuard(deps.Idempotency, cfg.IdempotencyTTL, logger.WithField("component", "idempotency-guard"))
	grpcLogger := logger.WithField("layer", "grpc")
	grpcServer, grpcHealth := newGRPCServer(grpcsvc.NewStorefrontService(registry, guard, grpcLogger), grpcLogger)

	healthHandler := healthcheck.NewHandler(version.ServiceName, version.GetVersion())
	deps.RegisterHealthChecks(healthHandler)
	router := httpapi.NewRouter(httpapi.NewHandler(deps.NewCatalogSource, deps.Pets, logger.WithField("layer", "http")), healthHandler)

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}
	httpSrv, err := startHTTPServer(cfg.HTTPAddr, router, logger)
	if err != nil {
		_ = grpcLis.Close()
		return err
	}

	var workers sync.WaitGroup
	startWorker := func(run func(context.Context)) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			run(workerCtx)
		}()
	}

	startWorker(func(ctx context.Context) {
		registry.RunJanitor(ctx, cfg.SessionSweepInterval, cfg.SessionIdleTTL)
	})
	if producer != nil {
		worker := outbox.NewWorker(deps.Outbox, kafka.NewOutboxPublisher(producer, kafka.TopicCheckoutEvents),
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryDelay(cfg.OutboxRetryDelay),
		)
		startWorker(worker.Run)
	} else {
		logger.Info("kafka is not configured, outbox messages stay pending")
	}
	if !deps.UsesNativeTTL() {
		cleanup := idempotency.NewCleanupWorker(deps.Idempotency,
			idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
			idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
			idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
		)
		startWorker(cleanup.Run)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", grpcLis.Addr().String()).Info("grpc server listening")
		errCh <- grpcServer.Serve(grpcLis)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, draining")
		healthHandler.SetDraining(true)
		grpcHealth.Shutdown()
		stopGRPC(grpcServer, logger)
		runErr = ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			runErr = err
		}
	}

	shutdownHTTP(httpSrv, logger)
	cancelWorkers()
	workers.Wait()
	logger.WithField("open_sessions", registry.Len()).Info("storefront stopped")

	return runErr
}

// stopGRPC ждёт завершения активных вызовов не дольше shutdownTimeout.
func stopGRPC(server *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop timed out, forcing grpc server stop")
		server.Stop()
	}
}

// startHTTPServer занимает адрес синхронно, чтобы ошибка bind вернулась из Run.
func startHTTPServer(addr string, handler http.Handler, logger *log.Entry) (*http.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen http %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.WithField("addr", lis.Addr().String()).Info("http server listening (/metrics, /healthz, /readyz, /api/v1)")
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("http server failed")
		}
	}()
	return srv, nil
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
