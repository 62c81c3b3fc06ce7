// Package outbox публикует события оформления, накопленные в transactional outbox.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
	"github.com/vladislavdragonenkov/petshop/internal/metrics"
)

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 100
	defaultMaxAttempts  = 3
	defaultRetryDelay   = 50 * time.Millisecond
	maxRetryDelay       = 5 * time.Second
)

type config struct {
	logger       *log.Entry
	metrics      *metrics.OutboxMetrics
	dlq          domain.OutboxPublisher
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
	retryDelay   time.Duration
	now          func() time.Time
}

// Option настраивает Worker.
type Option func(*config)

// WithLogger задаёт logger воркера.
func WithLogger(logger *log.Entry) Option {
	return func(c *config) { c.logger = logger }
}

// WithMetrics задаёт метрики публикации.
func WithMetrics(m *metrics.OutboxMetrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithDLQPublisher задаёт publisher для событий, исчерпавших попытки.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(c *config) { c.dlq = publisher }
}

// WithPollInterval задаёт период опроса outbox.
func WithPollInterval(interval time.Duration) Option {
	return func(c *config) { c.pollInterval = interval }
}

// WithBatchSize задаёт размер выборки за один цикл.
func WithBatchSize(size int) Option {
	return func(c *config) { c.batchSize = size }
}

// WithMaxAttempts задаёт число попыток публикации одного события.
func WithMaxAttempts(attempts int) Option {
	return func(c *config) { c.maxAttempts = attempts }
}

// WithRetryDelay задаёт начальную паузу между попытками; пауза удваивается.
func WithRetryDelay(delay time.Duration) Option {
	return func(c *config) { c.retryDelay = delay }
}

// Worker переносит pending-события из outbox в брокер.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	cfg       config
}

// NewWorker создаёт воркер. Некорректные значения опций заменяются значениями по умолчанию.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, opts ...Option) *Worker {
	cfg := config{
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
		maxAttempts:  defaultMaxAttempts,
		retryDelay:   defaultRetryDelay,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.logger == nil {
		cfg.logger = log.WithField("component", "outbox-worker")
	}
	if cfg.metrics == nil {
		cfg.metrics = metrics.NewOutboxMetrics()
	}
	if cfg.pollInterval <= 0 {
		cfg.pollInterval = defaultPollInterval
	}
	if cfg.batchSize <= 0 {
		cfg.batchSize = defaultBatchSize
	}
	if cfg.maxAttempts <= 0 {
		cfg.maxAttempts = defaultMaxAttempts
	}
	if cfg.retryDelay < 0 {
		cfg.retryDelay = 0
	}

	return &Worker{repo: repo, publisher: publisher, cfg: cfg}
}

// Run опрашивает outbox до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.cfg.logger.Warn("outbox worker disabled: repository or publisher is not configured")
		return
	}

	ticker := time.NewTicker(w.cfg.pollInterval)
	defer ticker.Stop()

	for {
		w.ProcessOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce публикует одну выборку и возвращает число отправленных событий.
func (w *Worker) ProcessOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}

	w.refreshBacklog()
	defer w.refreshBacklog()

	events, err := w.repo.PullPending(w.cfg.batchSize)
	if err != nil {
		w.cfg.logger.WithError(err).Warn("failed to pull pending outbox events")
		return 0
	}

	sent := 0
	for _, event := range events {
		if ctx.Err() != nil {
			break
		}

		entry := w.cfg.logger.WithFields(log.Fields{
			"outbox_id":   event.ID,
			"event_type":  event.EventType,
			"checkout_id": event.AggregateID,
		})

		if err := w.publish(ctx, event); err != nil {
			entry.WithError(err).Error("outbox event exhausted publish attempts")
			w.cfg.metrics.RecordAttempt(metrics.OutboxResultFailed)
			if dlqErr := w.sendToDLQ(event, err); dlqErr != nil {
				entry.WithError(dlqErr).Warn("failed to publish outbox event to dlq")
				w.cfg.metrics.RecordAttempt(metrics.OutboxResultDLQFailed)
			}
			if markErr := w.repo.MarkFailed(event.ID); markErr != nil {
				entry.WithError(markErr).Warn("failed to mark outbox event as failed")
			}
			continue
		}

		if err := w.repo.MarkSent(event.ID); err != nil {
			entry.WithError(err).Warn("failed to mark outbox event as sent")
			continue
		}
		sent++
	}

	if sent > 0 {
		w.cfg.logger.WithField("sent", sent).Debug("outbox batch published")
	}
	return sent
}

func (w *Worker) publish(ctx context.Context, event domain.OutboxMessage) error {
	var lastErr error
	delay := w.cfg.retryDelay

	for attempt := 1; attempt <= w.cfg.maxAttempts; attempt++ {
		if lastErr = w.publisher.Publish(event); lastErr == nil {
			w.cfg.metrics.RecordAttempt(metrics.OutboxResultSent)
			return nil
		}
		w.cfg.metrics.RecordAttempt(metrics.OutboxResultRetryError)

		if attempt == w.cfg.maxAttempts || delay == 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = nextDelay(delay)
	}

	return fmt.Errorf("publish failed after %d attempts: %w", w.cfg.maxAttempts, lastErr)
}

func nextDelay(delay time.Duration) time.Duration {
	if delay >= maxRetryDelay/2 {
		return maxRetryDelay
	}
	return delay * 2
}

func (w *Worker) refreshBacklog() {
	stats, err := w.repo.Stats()
	if err != nil {
		w.cfg.logger.WithError(err).Warn("failed to read outbox backlog")
		return
	}

	var age time.Duration
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		age = w.cfg.now().Sub(stats.OldestPendingAt)
	}
	w.cfg.metrics.SetBacklog(stats.PendingCount, age)
}

// dlqPayload - тело события, отправляемого в DLQ вместо исходного.
type dlqPayload struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	CheckoutID    string          `json:"checkout_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
	FailedAt      time.Time       `json:"failed_at"`
}

func (w *Worker) sendToDLQ(event domain.OutboxMessage, publishErr error) error {
	if w.cfg.dlq == nil {
		return nil
	}

	raw := json.RawMessage(event.Payload)
	if !json.Valid(raw) {
		quoted, _ := json.Marshal(string(event.Payload))
		raw = quoted
	}

	payload, err := json.Marshal(dlqPayload{
		OutboxID:      event.ID,
		AggregateType: event.AggregateType,
		CheckoutID:    event.AggregateID,
		EventType:     event.EventType,
		Payload:       raw,
		PublishError:  publishErr.Error(),
		FailedAt:      w.cfg.now(),
	})
	if err != nil {
		return fmt.Errorf("marshal dlq payload: %w", err)
	}

	dlqEvent := event
	dlqEvent.Payload = payload
	if err := w.cfg.dlq.Publish(dlqEvent); err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}
	return nil
}
