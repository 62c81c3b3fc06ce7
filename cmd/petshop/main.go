package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/petshop/internal/app"
	"github.com/vladislavdragonenkov/petshop/internal/version"
)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
}

func main() {
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	setupLogger(cfg.LogLevel)
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"grpc_addr":      cfg.GRPCAddr,
		"http_addr":      cfg.HTTPAddr,
		"storage":        cfg.StorageDriver,
		"idempotency":    cfg.IdempotencyDriver,
		"catalog_source": cfg.CatalogSource,
		"kafka":          cfg.KafkaBrokers != "",
		"version":        version.GetVersion(),
	}).Info("starting petshop storefront")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("storefront exited with error")
	}

	log.Info("petshop storefront stopped")
}
