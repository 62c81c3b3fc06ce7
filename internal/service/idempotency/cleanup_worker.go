package idempotency

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
	"github.com/vladislavdragonenkov/petshop/internal/metrics"
)

const (
	defaultCleanupInterval  = 10 * time.Minute
	defaultCleanupBatchSize = 500
)

type cleanupConfig struct {
	logger    *log.Entry
	metrics   *metrics.CleanupMetrics
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// CleanupOption настраивает CleanupWorker.
type CleanupOption func(*cleanupConfig)

// WithLogger задаёт logger воркера.
func WithLogger(logger *log.Entry) CleanupOption {
	return func(c *cleanupConfig) { c.logger = logger }
}

// WithMetrics задаёт метрики очистки.
func WithMetrics(m *metrics.CleanupMetrics) CleanupOption {
	return func(c *cleanupConfig) { c.metrics = m }
}

// WithInterval задаёт период между циклами очистки.
func WithInterval(interval time.Duration) CleanupOption {
	return func(c *cleanupConfig) { c.interval = interval }
}

// WithBatchSize задаёт размер одной порции удаления.
func WithBatchSize(size int) CleanupOption {
	return func(c *cleanupConfig) { c.batchSize = size }
}

// CleanupWorker удаляет истёкшие ключи идемпотентности для хранилищ без нативного TTL.
type CleanupWorker struct {
	repo domain.IdempotencyRepository
	cfg  cleanupConfig
}

// NewCleanupWorker создаёт воркер очистки.
func NewCleanupWorker(repo domain.IdempotencyRepository, opts ...CleanupOption) *CleanupWorker {
	cfg := cleanupConfig{
		interval:  defaultCleanupInterval,
		batchSize: defaultCleanupBatchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.logger == nil {
		cfg.logger = log.WithField("component", "idempotency-cleanup")
	}
	if cfg.metrics == nil {
		cfg.metrics = metrics.NewCleanupMetrics()
	}
	if cfg.interval <= 0 {
		cfg.interval = defaultCleanupInterval
	}
	if cfg.batchSize <= 0 {
		cfg.batchSize = defaultCleanupBatchSize
	}

	return &CleanupWorker{repo: repo, cfg: cfg}
}

// Run выполняет очистку сразу и затем каждые interval до отмены ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.cfg.logger.Warn("idempotency cleanup disabled: repository is not configured")
		return
	}

	ticker := time.NewTicker(w.cfg.interval)
	defer ticker.Stop()

	for {
		w.runOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *CleanupWorker) runOnce(ctx context.Context) {
	deleted, err := w.DeleteExpired(ctx, w.cfg.now())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		w.cfg.metrics.RecordRun(false, deleted)
		w.cfg.logger.WithError(err).Warn("idempotency cleanup failed")
		return
	}

	w.cfg.metrics.RecordRun(true, deleted)
	if deleted > 0 {
		w.cfg.logger.WithField("deleted", deleted).Info("expired idempotency keys removed")
	}
}

// DeleteExpired удаляет ключи с ttl <= before порциями, пока порция заполнена целиком.
func (w *CleanupWorker) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	if before.IsZero() {
		before = w.cfg.now()
	}

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		deleted, err := w.repo.DeleteExpired(before, w.cfg.batchSize)
		if err != nil {
			return total, err
		}
		total += deleted
		w.cfg.metrics.RecordDeleted(deleted)

		if deleted < w.cfg.batchSize {
			return total, nil
		}
	}
}
