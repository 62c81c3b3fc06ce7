package app

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/petshop/internal/catalog"
	"github.com/vladislavdragonenkov/petshop/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/petshop/internal/health"
	"github.com/vladislavdragonenkov/petshop/internal/storage/memory"
	"github.com/vladislavdragonenkov/petshop/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/petshop/internal/storage/redis"
)

// Dependencies содержит хранилища витрины, выбранные конфигурацией.
type Dependencies struct {
	Pets        domain.PetRepository
	Payments    domain.PaymentMethodRepository
	Orders      domain.OrderRepository
	Outbox      domain.OutboxRepository
	Timeline    domain.TimelineRepository
	Idempotency domain.IdempotencyRepository

	// NewCatalogSource создаёт источник каталога для новой сессии.
	NewCatalogSource func() catalog.PageSource

	store  *postgres.Store
	redis  *goredis.Client
	logger *log.Entry
}

// NewDependencies открывает хранилища согласно cfg. При ошибке уже открытые
// подключения закрываются.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (_ *Dependencies, err error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Dependencies{logger: logger}
	defer func() {
		if err != nil {
			_ = d.Close()
		}
	}()

	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		if err := d.openPostgres(ctx, cfg); err != nil {
			return nil, err
		}
	default:
		d.Pets = memory.NewPetRepository(domain.BasePets())
		d.Payments = memory.NewPaymentMethodRepository()
		d.Orders = memory.NewOrderRepository()
		d.Outbox = memory.NewOutboxRepository()
		d.Timeline = memory.NewTimelineRepository()
		d.Idempotency = memory.NewIdempotencyRepository()
	}

	if cfg.IdempotencyDriver == IdempotencyDriverRedis {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		d.redis = client
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		d.Idempotency = redisstore.NewIdempotencyRepository(client)
		logger.WithField("addr", cfg.RedisAddr).Info("redis idempotency store connected")
	}

	if cfg.SeedDemoData {
		if err := memory.SeedDemoData(ctx, d.Payments); err != nil {
			return nil, err
		}
		logger.WithField("customer_id", memory.DemoCustomerID).Info("demo payment method seeded")
	}

	pets, pageSize := d.Pets, cfg.CatalogPageSize
	if cfg.CatalogSource == CatalogSourceRepository {
		d.NewCatalogSource = func() catalog.PageSource { return catalog.NewRepositorySource(pets, pageSize) }
	} else {
		d.NewCatalogSource = func() catalog.PageSource { return catalog.NewSyntheticSource(nil) }
	}

	return d, nil
}

func (d *Dependencies) openPostgres(ctx context.Context, cfg Config) error {
	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	d.store = store

	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("apply postgres migrations: %w", err)
		}
	}

	d.Pets = postgres.NewPetRepository(store)
	d.Payments = postgres.NewPaymentMethodRepository(store)
	d.Orders = postgres.NewOrderRepository(store)
	d.Outbox = postgres.NewOutboxRepository(store)
	d.Timeline = postgres.NewTimelineRepository(store)
	d.Idempotency = postgres.NewIdempotencyRepository(store)
	d.logger.Info("postgres storage connected")
	return nil
}

// RegisterHealthChecks добавляет проверки открытых подключений.
func (d *Dependencies) RegisterHealthChecks(handler *healthcheck.Handler) {
	if d.store != nil {
		handler.RegisterChecker("postgres", healthcheck.NewCriticalChecker("postgres", d.store.Ping))
	}
	if d.redis != nil {
		client := d.redis
		handler.RegisterChecker("redis", healthcheck.NewOptionalChecker("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
	}
}

// UsesNativeTTL сообщает, что хранилище ключей идемпотентности само удаляет истёкшие записи.
func (d *Dependencies) UsesNativeTTL() bool {
	return d.redis != nil
}

// Close закрывает внешние подключения.
func (d *Dependencies) Close() error {
	var errs []error
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close postgres: %w", err))
		}
	}
	return errors.Join(errs...)
}
