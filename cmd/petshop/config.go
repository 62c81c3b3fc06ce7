package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/petshop/internal/app"
)

const (
	envGRPCAddr                    = "PETSHOP_GRPC_ADDR"
	envHTTPAddr                    = "PETSHOP_HTTP_ADDR"
	envLogLevel                    = "PETSHOP_LOG_LEVEL"
	envStorageDriver               = "PETSHOP_STORAGE_DRIVER"
	envPostgresDSN                 = "PETSHOP_POSTGRES_DSN"
	envPostgresAutoMigrate         = "PETSHOP_POSTGRES_AUTO_MIGRATE"
	envSeedDemoData                = "PETSHOP_SEED_DEMO_DATA"
	envIdempotencyDriver           = "PETSHOP_IDEMPOTENCY_DRIVER"
	envIdempotencyTTL              = "PETSHOP_IDEMPOTENCY_TTL"
	envRedisAddr                   = "PETSHOP_REDIS_ADDR"
	envKafkaBrokers                = "PETSHOP_KAFKA_BROKERS"
	envKafkaConsumerGroup          = "PETSHOP_KAFKA_CONSUMER_GROUP"
	envCatalogSource               = "PETSHOP_CATALOG_SOURCE"
	envCatalogPageSize             = "PETSHOP_CATALOG_PAGE_SIZE"
	envSessionIdleTTL              = "PETSHOP_SESSION_IDLE_TTL"
	envTracingEnabled              = "PETSHOP_TRACING_ENABLED"
	envOutboxPollInterval          = "PETSHOP_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize             = "PETSHOP_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts           = "PETSHOP_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay            = "PETSHOP_OUTBOX_RETRY_DELAY"
	envIdempotencyCleanupInterval  = "PETSHOP_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "PETSHOP_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
)

type envLookup func(key string) (string, bool)

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения не применяются и возвращаются как предупреждения.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	str := func(key string, dst *string, normalize func(string) string) {
		value, ok := lookup(key)
		if !ok {
			return
		}
		value = strings.TrimSpace(value)
		if normalize != nil {
			value = normalize(value)
		}
		if value != "" {
			*dst = value
		}
	}
	boolean := func(key string, dst *bool) {
		value, ok := lookup(key)
		if !ok {
			return
		}
		parsed, err := parseBool(value)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v, using default %t", key, err, *dst))
			return
		}
		*dst = parsed
	}
	positiveInt := func(key string, dst *int) {
		value, ok := lookup(key)
		if !ok {
			return
		}
		parsed, err := parseInt(value, func(v int) bool { return v > 0 }, "must be > 0")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v, using default %d", key, err, *dst))
			return
		}
		*dst = parsed
	}
	duration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		value, ok := lookup(key)
		if !ok {
			return
		}
		parsed, err := parseDuration(value, valid, rule)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v, using default %s", key, err, *dst))
			return
		}
		*dst = parsed
	}
	positive := func(v time.Duration) bool { return v > 0 }
	nonNegative := func(v time.Duration) bool { return v >= 0 }

	str(envGRPCAddr, &cfg.GRPCAddr, nil)
	str(envHTTPAddr, &cfg.HTTPAddr, nil)
	str(envLogLevel, &cfg.LogLevel, strings.ToLower)
	str(envStorageDriver, &cfg.StorageDriver, strings.ToLower)
	str(envPostgresDSN, &cfg.PostgresDSN, nil)
	boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	boolean(envSeedDemoData, &cfg.SeedDemoData)
	str(envIdempotencyDriver, &cfg.IdempotencyDriver, strings.ToLower)
	duration(envIdempotencyTTL, &cfg.IdempotencyTTL, positive, "must be > 0")
	str(envRedisAddr, &cfg.RedisAddr, nil)
	str(envKafkaBrokers, &cfg.KafkaBrokers, nil)
	str(envKafkaConsumerGroup, &cfg.KafkaConsumerGroup, nil)
	str(envCatalogSource, &cfg.CatalogSource, strings.ToLower)
	positiveInt(envCatalogPageSize, &cfg.CatalogPageSize)
	duration(envSessionIdleTTL, &cfg.SessionIdleTTL, positive, "must be > 0")
	boolean(envTracingEnabled, &cfg.TracingEnabled)
	duration(envOutboxPollInterval, &cfg.OutboxPollInterval, positive, "must be > 0")
	positiveInt(envOutboxBatchSize, &cfg.OutboxBatchSize)
	positiveInt(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts)
	duration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegative, "must be >= 0")
	duration(envIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval, positive, "must be > 0")
	positiveInt(envIdempotencyCleanupBatchSize, &cfg.IdempotencyCleanupBatchSize)

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q", raw)
	}
	if !valid(value) {
		return 0, fmt.Errorf("value %d %s", value, rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	if !valid(value) {
		return 0, fmt.Errorf("duration %s %s", value, rule)
	}
	return value, nil
}
