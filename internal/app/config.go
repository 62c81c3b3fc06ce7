package app

import (
	"fmt"
	"strings"
	"time"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"

	// IdempotencyDriverStorage хранит ключи в основном хранилище (memory или postgres).
	IdempotencyDriverStorage = "storage"
	IdempotencyDriverRedis   = "redis"

	CatalogSourceSynthetic  = "synthetic"
	CatalogSourceRepository = "repository"
)

// Config описывает настройки запуска витрины.
type Config struct {
	GRPCAddr string
	HTTPAddr string
	LogLevel string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	SeedDemoData        bool

	IdempotencyDriver string
	IdempotencyTTL    time.Duration
	RedisAddr         string

	KafkaBrokers       string
	KafkaConsumerGroup string

	CatalogSource   string
	CatalogPageSize int

	SessionIdleTTL       time.Duration
	SessionSweepInterval time.Duration

	TracingEnabled bool

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
}

// DefaultConfig возвращает настройки локального запуска: всё в памяти, без Kafka и Redis.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:                    ":50051",
		HTTPAddr:                    ":9090",
		LogLevel:                    "info",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		SeedDemoData:                true,
		IdempotencyDriver:           IdempotencyDriverStorage,
		IdempotencyTTL:              24 * time.Hour,
		KafkaConsumerGroup:          "petshop-timeline",
		CatalogSource:               CatalogSourceSynthetic,
		CatalogPageSize:             20,
		SessionIdleTTL:              30 * time.Minute,
		SessionSweepInterval:        time.Minute,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             50,
		OutboxMaxAttempts:           5,
		OutboxRetryDelay:            200 * time.Millisecond,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}

// Validate проверяет согласованность драйверов и обязательных адресов.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("postgres storage driver requires dsn")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}

	switch c.IdempotencyDriver {
	case IdempotencyDriverStorage:
	case IdempotencyDriverRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("redis idempotency driver requires redis addr")
		}
	default:
		return fmt.Errorf("unsupported idempotency driver %q", c.IdempotencyDriver)
	}

	switch c.CatalogSource {
	case CatalogSourceSynthetic, CatalogSourceRepository:
	default:
		return fmt.Errorf("unsupported catalog source %q", c.CatalogSource)
	}

	return nil
}

// kafkaBrokerList разбирает список брокеров через запятую, пропуская пустые элементы.
func (c Config) kafkaBrokerList() []string {
	var brokers []string
	for _, broker := range strings.Split(c.KafkaBrokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}
