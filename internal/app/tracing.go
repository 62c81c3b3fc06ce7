package app

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// initTracing устанавливает глобальный TracerProvider и W3C-пропагатор.
// Экспортёр не подключён: спаны нужны для trace_id в логах и пропагации
// контекста между gRPC и HTTP.
func initTracing(serviceName, serviceVersion string, enabled bool, logger *log.Entry) func(context.Context) error {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !enabled {
		return func(context.Context) error { return nil }
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		)),
	)
	otel.SetTracerProvider(tp)
	logger.Info("tracing enabled")

	return tp.Shutdown
}
