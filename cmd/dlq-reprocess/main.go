// Команда dlq-reprocess перечитывает petshop.dlq и возвращает события витрины
// в исходные топики. По умолчанию работает в режиме dry-run.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/petshop/internal/messaging/kafka"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second

	envKafkaBrokers = "PETSHOP_KAFKA_BROKERS"
)

var errUsage = errors.New("usage error")

type config struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	eventTypes  map[string]struct{}
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

func (c config) acceptsEvent(eventType string) bool {
	if len(c.eventTypes) == 0 || eventType == "" {
		return true
	}
	_, ok := c.eventTypes[eventType]
	return ok
}

type replayMessage struct {
	topic     string
	key       string
	eventType string
	value     []byte
}

// outboxDLQPayload повторяет тело, которое outbox-воркер кладёт в DLQ.
type outboxDLQPayload struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	CheckoutID    string          `json:"checkout_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
}

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionConsumerSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

type replayProducer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

type saramaConsumerAdapter struct {
	consumer sarama.Consumer
}

func (a saramaConsumerAdapter) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	pc, err := a.consumer.ConsumePartition(topic, partition, offset)
	if err != nil {
		return nil, err
	}
	return pc, nil
}

func (a saramaConsumerAdapter) Close() error {
	if a.consumer == nil {
		return nil
	}
	return a.consumer.Close()
}

var newReplayDependencies = func(cfg config) (offsetClient, partitionConsumerSource, replayProducer, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create kafka client: %w", err)
	}

	rawConsumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	consumer := saramaConsumerAdapter{consumer: rawConsumer}

	if !cfg.execute {
		return client, consumer, nil, nil
	}

	producerConfig := sarama.NewConfig()
	producerConfig.Producer.RequiredAcks = sarama.WaitForAll
	producerConfig.Producer.Retry.Max = 5
	producerConfig.Producer.Return.Successes = true
	producerConfig.Producer.Idempotent = true
	producerConfig.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(cfg.brokers, producerConfig)
	if err != nil {
		_ = consumer.Close()
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return client, consumer, producer, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := readConfig(os.Args[1:], os.LookupEnv, os.Stderr)
	if err != nil {
		log.WithError(err).Error("invalid arguments")
		os.Exit(2)
	}

	if err := run(context.Background(), cfg); err != nil {
		log.WithError(err).Error("dlq replay failed")
		os.Exit(1)
	}
}

func readConfig(args []string, lookup func(string) (string, bool), output io.Writer) (config, error) {
	var (
		brokersRaw    string
		eventTypesRaw string
		cfg           config
	)

	fs := flag.NewFlagSet("dlq-reprocess", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: "+envKafkaBrokers+")")
	fs.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ source topic")
	fs.StringVar(&cfg.targetTopic, "target-topic", kafka.TopicCheckoutEvents, "topic for outbox events without an original topic")
	fs.StringVar(&eventTypesRaw, "event-type", "", "replay only these event types (comma-separated)")
	fs.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of messages to scan/replay")
	fs.BoolVar(&cfg.execute, "execute", false, "execute replay; default is dry-run")
	fs.BoolVar(&cfg.fromNewest, "from-newest", false, "scan latest messages first (bounded by limit)")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	if err := fs.Parse(args); err != nil {
		return config{}, fmt.Errorf("%w: %v", errUsage, err)
	}

	if strings.TrimSpace(brokersRaw) == "" && lookup != nil {
		brokersRaw, _ = lookup(envKafkaBrokers)
	}

	cfg.brokers = splitList(brokersRaw)
	if len(cfg.brokers) == 0 {
		return config{}, fmt.Errorf("%w: kafka brokers are required (-brokers or %s)", errUsage, envKafkaBrokers)
	}
	if strings.TrimSpace(cfg.sourceTopic) == "" {
		return config{}, fmt.Errorf("%w: source-topic is required", errUsage)
	}
	if strings.TrimSpace(cfg.targetTopic) == "" {
		return config{}, fmt.Errorf("%w: target-topic is required", errUsage)
	}
	if cfg.limit <= 0 {
		return config{}, fmt.Errorf("%w: limit must be > 0", errUsage)
	}
	if cfg.idleTimeout <= 0 {
		return config{}, fmt.Errorf("%w: idle-timeout must be > 0", errUsage)
	}

	if types := splitList(eventTypesRaw); len(types) > 0 {
		cfg.eventTypes = make(map[string]struct{}, len(types))
		for _, eventType := range types {
			cfg.eventTypes[eventType] = struct{}{}
		}
	}

	return cfg, nil
}

func splitList(raw string) []string {
	chunks := strings.Split(raw, ",")
	items := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		item := strings.TrimSpace(chunk)
		if item == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}

func run(ctx context.Context, cfg config) error {
	log.WithFields(log.Fields{
		"source_topic": cfg.sourceTopic,
		"target_topic": cfg.targetTopic,
		"limit":        cfg.limit,
		"execute":      cfg.execute,
		"from_newest":  cfg.fromNewest,
	}).Info("starting dlq replay")

	client, consumer, producer, err := newReplayDependencies(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if producer != nil {
			_ = producer.Close()
		}
		if consumer != nil {
			_ = consumer.Close()
		}
		if client != nil {
			_ = client.Close()
		}
	}()

	stats, err := runReplay(ctx, cfg, client, consumer, producer)
	if err != nil {
		return err
	}

	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}
	log.WithFields(log.Fields{
		"mode":      mode,
		"processed": stats.processed,
		"replayed":  stats.replayed,
		"skipped":   stats.skipped,
	}).Info("dlq replay finished")
	return nil
}

type replayStats struct {
	processed int
	replayed  int
	skipped   int
}

func (s *replayStats) add(other replayStats) {
	s.processed += other.processed
	s.replayed += other.replayed
	s.skipped += other.skipped
}

func runReplay(ctx context.Context, cfg config, client offsetClient, consumer partitionConsumerSource, producer replayProducer) (replayStats, error) {
	var total replayStats
	if client == nil || consumer == nil {
		return total, fmt.Errorf("kafka client and consumer are required")
	}
	if cfg.execute && producer == nil {
		return total, fmt.Errorf("producer is required in execute mode")
	}

	partitions, err := client.Partitions(cfg.sourceTopic)
	if err != nil {
		return total, fmt.Errorf("get partitions for topic %s: %w", cfg.sourceTopic, err)
	}
	if len(partitions) == 0 {
		log.WithField("topic", cfg.sourceTopic).Warn("source topic has no partitions")
		return total, nil
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, partition := range partitions {
		if total.processed >= cfg.limit {
			break
		}

		stats, err := processPartition(ctx, consumer, client, producer, cfg, partition, cfg.limit-total.processed)
		total.add(stats)
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

func processPartition(
	ctx context.Context,
	consumer partitionConsumerSource,
	client offsetClient,
	producer replayProducer,
	cfg config,
	partition int32,
	limit int,
) (replayStats, error) {
	var stats replayStats
	if limit <= 0 {
		return stats, nil
	}

	oldest, err := client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return stats, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return stats, nil
	}

	startOffset := oldest
	if cfg.fromNewest {
		startOffset = max(newest-int64(limit), oldest)
	}

	pc, err := consumer.ConsumePartition(cfg.sourceTopic, partition, startOffset)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(cfg.idleTimeout)
	defer idle.Stop()

	for stats.processed < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case consumerErr := <-pc.Errors():
			if consumerErr != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, consumerErr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return stats, nil
			}
			idle.Reset(cfg.idleTimeout)

			stats.processed++
			if err := handleMessage(cfg, producer, msg, &stats); err != nil {
				return stats, err
			}

			if msg.Offset+1 >= newest {
				return stats, nil
			}
		case <-idle.C:
			return stats, nil
		}
	}

	return stats, nil
}

func handleMessage(cfg config, producer replayProducer, msg *sarama.ConsumerMessage, stats *replayStats) error {
	entry := log.WithFields(log.Fields{
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	replay, ok, err := extractReplayMessage(msg, cfg.targetTopic)
	if err != nil {
		stats.skipped++
		entry.WithError(err).Warn("skip unsupported dlq message")
		return nil
	}
	if !ok || !cfg.acceptsEvent(replay.eventType) {
		stats.skipped++
		return nil
	}

	entry = entry.WithFields(log.Fields{
		"target_topic": replay.topic,
		"key":          replay.key,
		"event_type":   replay.eventType,
	})

	if !cfg.execute {
		entry.Info("dlq replay candidate")
		stats.replayed++
		return nil
	}

	if err := publishReplay(producer, replay); err != nil {
		return fmt.Errorf("publish replay message: %w", err)
	}
	entry.Debug("dlq message replayed")
	stats.replayed++
	return nil
}

func publishReplay(producer replayProducer, msg replayMessage) error {
	if producer == nil {
		return fmt.Errorf("producer is nil")
	}

	_, _, err := producer.SendMessage(&sarama.ProducerMessage{
		Topic:     msg.topic,
		Key:       sarama.StringEncoder(msg.key),
		Value:     sarama.ByteEncoder(msg.value),
		Timestamp: time.Now().UTC(),
	})
	return err
}

// extractReplayMessage распознаёт два формата DLQ: запись консьюмера с исходным
// сообщением и outbox-конверт, внутри которого лежит исходное событие чекаута.
func extractReplayMessage(msg *sarama.ConsumerMessage, defaultTopic string) (replayMessage, bool, error) {
	if record, err := kafka.ParseDLQMessage(msg); err == nil && record.OriginalValue != "" {
		return replayMessage{
			topic:     record.OriginalTopic,
			key:       record.OriginalKey,
			eventType: eventTypeOf([]byte(record.OriginalValue)),
			value:     []byte(record.OriginalValue),
		}, true, nil
	}

	envelope, err := kafka.ParseOutboxEnvelope(msg)
	if err != nil || len(envelope.Payload) == 0 {
		return replayMessage{}, false, nil
	}

	var dead outboxDLQPayload
	if err := json.Unmarshal(envelope.Payload, &dead); err != nil {
		return replayMessage{}, false, fmt.Errorf("decode outbox dlq payload: %w", err)
	}
	if len(dead.Payload) == 0 {
		return replayMessage{}, false, fmt.Errorf("outbox dlq payload does not contain original event payload")
	}

	replay := kafka.OutboxEnvelope{
		ID:            firstNonEmpty(dead.OutboxID, envelope.ID),
		AggregateType: firstNonEmpty(dead.AggregateType, envelope.AggregateType),
		AggregateID:   firstNonEmpty(dead.CheckoutID, envelope.AggregateID),
		EventType:     firstNonEmpty(dead.EventType, envelope.EventType),
		Payload:       dead.Payload,
		PublishedAt:   time.Now().UTC(),
	}
	encoded, err := json.Marshal(replay)
	if err != nil {
		return replayMessage{}, false, fmt.Errorf("encode replay envelope: %w", err)
	}

	return replayMessage{
		topic:     defaultTopic,
		key:       firstNonEmpty(replay.AggregateID, replay.ID),
		eventType: replay.EventType,
		value:     encoded,
	}, true, nil
}

// eventTypeOf достаёт event_type из события витрины; для чужого формата пусто.
func eventTypeOf(raw []byte) string {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ""
	}
	return envelope.EventType
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
