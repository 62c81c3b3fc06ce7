package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/petshop/internal/messaging/kafka"
)

func noEnv(string) (string, bool) { return "", false }

func consumerDLQRecord(t *testing.T, offset int64, eventType string) *sarama.ConsumerMessage {
	t.Helper()

	original, err := json.Marshal(map[string]any{"event_id": "evt-1", "event_type": eventType})
	require.NoError(t, err)
	raw, err := json.Marshal(kafka.DLQMessage{
		OriginalTopic: kafka.TopicOrderEvents,
		OriginalKey:   "order-1",
		OriginalValue: string(original),
		ErrorMessage:  "timeline unavailable",
	})
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Offset: offset, Value: raw}
}

func outboxDLQRecord(t *testing.T, offset int64) *sarama.ConsumerMessage {
	t.Helper()

	raw, err := json.Marshal(map[string]any{
		"id":             "outbox-1",
		"aggregate_type": "checkout",
		"aggregate_id":   "checkout-1",
		"event_type":     "checkout.committed",
		"payload": map[string]any{
			"outbox_id":      "outbox-1",
			"aggregate_type": "checkout",
			"checkout_id":    "checkout-1",
			"event_type":     "checkout.committed",
			"payload":        map[string]any{"orders": 2},
			"publish_error":  "broker timeout",
		},
	})
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Offset: offset, Value: raw}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, splitList(" broker-1:9092, ,broker-2:9092 "))
	assert.Empty(t, splitList(" , "))
}

func TestExtractReplayMessageFromConsumerRecord(t *testing.T) {
	got, ok, err := extractReplayMessage(consumerDLQRecord(t, 0, "order.placed"), kafka.TopicCheckoutEvents)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, kafka.TopicOrderEvents, got.topic)
	assert.Equal(t, "order-1", got.key)
	assert.Equal(t, "order.placed", got.eventType)
	assert.JSONEq(t, `{"event_id":"evt-1","event_type":"order.placed"}`, string(got.value))
}

func TestExtractReplayMessageFromOutboxRecord(t *testing.T) {
	got, ok, err := extractReplayMessage(outboxDLQRecord(t, 0), kafka.TopicCheckoutEvents)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, kafka.TopicCheckoutEvents, got.topic)
	assert.Equal(t, "checkout-1", got.key)
	assert.Equal(t, "checkout.committed", got.eventType)

	var envelope kafka.OutboxEnvelope
	require.NoError(t, json.Unmarshal(got.value, &envelope))
	assert.Equal(t, "outbox-1", envelope.ID)
	assert.Equal(t, "checkout-1", envelope.AggregateID)
	assert.JSONEq(t, `{"orders":2}`, string(envelope.Payload))
	assert.False(t, envelope.PublishedAt.IsZero())
}

func TestExtractReplayMessageRejectsBrokenOutboxPayload(t *testing.T) {
	_, ok, err := extractReplayMessage(&sarama.ConsumerMessage{
		Value: []byte(`{"id":"outbox-1","payload":"not-an-object"}`),
	}, kafka.TopicCheckoutEvents)
	require.Error(t, err)
	assert.False(t, ok)

	_, ok, err = extractReplayMessage(&sarama.ConsumerMessage{
		Value: []byte(`{"id":"outbox-1","payload":{"outbox_id":"outbox-1"}}`),
	}, kafka.TopicCheckoutEvents)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "original event payload")
	assert.False(t, ok)
}

func TestExtractReplayMessageSkipsUnknownPayload(t *testing.T) {
	for _, value := range []string{`not-json`, `{"foo":"bar"}`} {
		_, ok, err := extractReplayMessage(&sarama.ConsumerMessage{Value: []byte(value)}, kafka.TopicCheckoutEvents)
		require.NoError(t, err, value)
		assert.False(t, ok, value)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", " ", "b", "c"))
	assert.Empty(t, firstNonEmpty("", "  "))
}

func TestReadConfigFromFlags(t *testing.T) {
	cfg, err := readConfig([]string{
		"-brokers=broker-1:9092,broker-2:9092",
		"-source-topic=custom.dlq",
		"-target-topic=custom.target",
		"-event-type=checkout.committed, order.placed",
		"-limit=5",
		"-execute",
		"-from-newest",
		"-idle-timeout=3s",
	}, noEnv, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.brokers)
	assert.Equal(t, "custom.dlq", cfg.sourceTopic)
	assert.Equal(t, "custom.target", cfg.targetTopic)
	assert.Equal(t, 5, cfg.limit)
	assert.True(t, cfg.execute)
	assert.True(t, cfg.fromNewest)
	assert.Equal(t, 3*time.Second, cfg.idleTimeout)
	assert.True(t, cfg.acceptsEvent("order.placed"))
	assert.False(t, cfg.acceptsEvent("checkout.entered"))
}

func TestReadConfigDefaultsAndEnvBrokers(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == envKafkaBrokers {
			return "kafka:9092", true
		}
		return "", false
	}

	cfg, err := readConfig(nil, lookup, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, []string{"kafka:9092"}, cfg.brokers)
	assert.Equal(t, kafka.TopicDeadLetterQueue, cfg.sourceTopic)
	assert.Equal(t, kafka.TopicCheckoutEvents, cfg.targetTopic)
	assert.Equal(t, defaultReplayLimit, cfg.limit)
	assert.Equal(t, defaultIdleTimeout, cfg.idleTimeout)
	assert.False(t, cfg.execute)
	assert.True(t, cfg.acceptsEvent("anything"))
}

func TestReadConfigValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "missing brokers"},
		{name: "empty source topic", args: []string{"-brokers=b:9092", "-source-topic= "}},
		{name: "empty target topic", args: []string{"-brokers=b:9092", "-target-topic= "}},
		{name: "zero limit", args: []string{"-brokers=b:9092", "-limit=0"}},
		{name: "zero idle timeout", args: []string{"-brokers=b:9092", "-idle-timeout=0s"}},
		{name: "unknown flag", args: []string{"-replay-all"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			_, err := readConfig(tt.args, noEnv, &out)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errUsage))
		})
	}
}

func TestPublishReplay(t *testing.T) {
	require.Error(t, publishReplay(nil, replayMessage{}))

	producer := &stubReplayProducer{}
	require.NoError(t, publishReplay(producer, replayMessage{topic: "target", key: "checkout-1", value: []byte(`{}`)}))
	require.NotNil(t, producer.lastMsg)
	assert.Equal(t, "target", producer.lastMsg.Topic)

	key, err := producer.lastMsg.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "checkout-1", string(key))
}

func TestProcessPartitionDryRun(t *testing.T) {
	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, targetTopic: kafka.TopicCheckoutEvents, idleTimeout: time.Second}
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 3}}}
	consumer := &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{
		0: closedPartitionConsumer([]*sarama.ConsumerMessage{
			consumerDLQRecord(t, 0, "order.placed"),
			{Offset: 1, Value: []byte(`garbage`)},
			outboxDLQRecord(t, 2),
		}),
	}}

	stats, err := processPartition(context.Background(), consumer, client, nil, cfg, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, replayStats{processed: 3, replayed: 2, skipped: 1}, stats)
}

func TestProcessPartitionExecuteWithEventFilter(t *testing.T) {
	cfg := config{
		sourceTopic: kafka.TopicDeadLetterQueue,
		targetTopic: kafka.TopicCheckoutEvents,
		eventTypes:  map[string]struct{}{"checkout.committed": {}},
		execute:     true,
		idleTimeout: time.Second,
	}
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 2}}}
	consumer := &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{
		0: closedPartitionConsumer([]*sarama.ConsumerMessage{
			consumerDLQRecord(t, 0, "order.placed"),
			outboxDLQRecord(t, 1),
		}),
	}}
	producer := &stubReplayProducer{}

	stats, err := processPartition(context.Background(), consumer, client, producer, cfg, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, replayStats{processed: 2, replayed: 1, skipped: 1}, stats)
	assert.Equal(t, 1, producer.calls)
	assert.Equal(t, kafka.TopicCheckoutEvents, producer.lastMsg.Topic)
}

func TestProcessPartitionFromNewestStartsInsideWindow(t *testing.T) {
	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, targetTopic: kafka.TopicCheckoutEvents, fromNewest: true, idleTimeout: time.Second}
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 2, newest: 10}}}
	consumer := &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{
		0: closedPartitionConsumer(nil),
	}}

	_, err := processPartition(context.Background(), consumer, client, nil, cfg, 0, 3)
	require.NoError(t, err)
	require.Len(t, consumer.calls, 1)
	assert.Equal(t, int64(7), consumer.calls[0].offset)
}

func TestProcessPartitionErrors(t *testing.T) {
	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, targetTopic: kafka.TopicCheckoutEvents, execute: true, idleTimeout: time.Second}

	t.Run("offset error", func(t *testing.T) {
		client := &stubOffsetClient{offsetErr: map[int32]error{0: errors.New("boom")}}
		_, err := processPartition(context.Background(), &stubPartitionConsumerSource{}, client, nil, cfg, 0, 1)
		require.ErrorContains(t, err, "oldest offset")
	})

	t.Run("consume error", func(t *testing.T) {
		client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 1}}}
		consumer := &stubPartitionConsumerSource{consumeErr: errors.New("boom")}
		_, err := processPartition(context.Background(), consumer, client, nil, cfg, 0, 1)
		require.ErrorContains(t, err, "consume partition 0")
	})

	t.Run("publish error", func(t *testing.T) {
		client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 1}}}
		consumer := &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer([]*sarama.ConsumerMessage{outboxDLQRecord(t, 0)}),
		}}
		producer := &stubReplayProducer{sendErr: errors.New("broker down")}
		_, err := processPartition(context.Background(), consumer, client, producer, cfg, 0, 1)
		require.ErrorContains(t, err, "publish replay message")
	})

	t.Run("empty partition", func(t *testing.T) {
		client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 4, newest: 4}}}
		consumer := &stubPartitionConsumerSource{}
		stats, err := processPartition(context.Background(), consumer, client, nil, cfg, 0, 1)
		require.NoError(t, err)
		assert.Zero(t, stats.processed)
		assert.Empty(t, consumer.calls)
	})
}

func TestProcessPartitionStopsOnIdleAndContext(t *testing.T) {
	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, targetTopic: kafka.TopicCheckoutEvents, idleTimeout: 20 * time.Millisecond}
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 5}}}
	open := &stubPartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage),
		errors:   make(chan *sarama.ConsumerError),
	}
	consumer := &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{0: open}}

	stats, err := processPartition(context.Background(), consumer, client, nil, cfg, 0, 5)
	require.NoError(t, err)
	assert.Zero(t, stats.processed)
	assert.True(t, open.closed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg.idleTimeout = time.Minute
	_, err = processPartition(ctx, consumer, client, nil, cfg, 0, 5)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunReplay(t *testing.T) {
	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, targetTopic: kafka.TopicCheckoutEvents, limit: 2, idleTimeout: time.Second}

	_, err := runReplay(context.Background(), cfg, nil, nil, nil)
	require.Error(t, err)

	executeCfg := cfg
	executeCfg.execute = true
	_, err = runReplay(context.Background(), executeCfg, &stubOffsetClient{}, &stubPartitionConsumerSource{}, nil)
	require.ErrorContains(t, err, "producer is required")

	_, err = runReplay(context.Background(), cfg, &stubOffsetClient{partitionsErr: errors.New("boom")}, &stubPartitionConsumerSource{}, nil)
	require.ErrorContains(t, err, "get partitions")

	client := &stubOffsetClient{
		partitions: []int32{1, 0},
		offsets: map[int32]offsetRange{
			0: {oldest: 0, newest: 2},
			1: {oldest: 0, newest: 2},
		},
	}
	consumer := &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{
		0: closedPartitionConsumer([]*sarama.ConsumerMessage{consumerDLQRecord(t, 0, "order.placed"), outboxDLQRecord(t, 1)}),
		1: closedPartitionConsumer([]*sarama.ConsumerMessage{outboxDLQRecord(t, 0)}),
	}}

	stats, err := runReplay(context.Background(), cfg, client, consumer, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.processed)
	require.Len(t, consumer.calls, 1)
	assert.Equal(t, int32(0), consumer.calls[0].partition)
}

func TestRunUsesDependencies(t *testing.T) {
	client := &stubOffsetClient{}
	consumer := &stubPartitionConsumerSource{}
	producer := &stubReplayProducer{}

	original := newReplayDependencies
	t.Cleanup(func() { newReplayDependencies = original })
	newReplayDependencies = func(config) (offsetClient, partitionConsumerSource, replayProducer, error) {
		return client, consumer, producer, nil
	}

	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, targetTopic: kafka.TopicCheckoutEvents, limit: 1, execute: true, idleTimeout: time.Second}
	require.NoError(t, run(context.Background(), cfg))
	assert.True(t, client.closed)
	assert.True(t, consumer.closed)
	assert.True(t, producer.closed)

	newReplayDependencies = func(config) (offsetClient, partitionConsumerSource, replayProducer, error) {
		return nil, nil, nil, errors.New("kafka unavailable")
	}
	require.ErrorContains(t, run(context.Background(), cfg), "kafka unavailable")
}

type offsetRange struct {
	oldest int64
	newest int64
}

type stubOffsetClient struct {
	partitions    []int32
	partitionsErr error
	offsets       map[int32]offsetRange
	offsetErr     map[int32]error
	closed        bool
}

func (s *stubOffsetClient) GetOffset(_ string, partition int32, marker int64) (int64, error) {
	if err, ok := s.offsetErr[partition]; ok {
		return 0, err
	}

	r := s.offsets[partition]
	switch marker {
	case sarama.OffsetOldest:
		return r.oldest, nil
	case sarama.OffsetNewest:
		return r.newest, nil
	default:
		return 0, fmt.Errorf("unsupported marker %d", marker)
	}
}

func (s *stubOffsetClient) Partitions(string) ([]int32, error) {
	if s.partitionsErr != nil {
		return nil, s.partitionsErr
	}
	return append([]int32(nil), s.partitions...), nil
}

func (s *stubOffsetClient) Close() error {
	s.closed = true
	return nil
}

type consumeCall struct {
	partition int32
	offset    int64
}

type stubPartitionConsumerSource struct {
	consumers  map[int32]partitionConsumer
	consumeErr error
	calls      []consumeCall
	closed     bool
}

func (s *stubPartitionConsumerSource) ConsumePartition(_ string, partition int32, offset int64) (partitionConsumer, error) {
	s.calls = append(s.calls, consumeCall{partition: partition, offset: offset})
	if s.consumeErr != nil {
		return nil, s.consumeErr
	}
	pc, ok := s.consumers[partition]
	if !ok {
		return nil, fmt.Errorf("partition %d not configured", partition)
	}
	return pc, nil
}

func (s *stubPartitionConsumerSource) Close() error {
	s.closed = true
	return nil
}

type stubPartitionConsumer struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
	closed   bool
}

func (s *stubPartitionConsumer) Messages() <-chan *sarama.ConsumerMessage { return s.messages }
func (s *stubPartitionConsumer) Errors() <-chan *sarama.ConsumerError     { return s.errors }
func (s *stubPartitionConsumer) Close() error {
	s.closed = true
	return nil
}

func closedPartitionConsumer(messages []*sarama.ConsumerMessage) *stubPartitionConsumer {
	msgCh := make(chan *sarama.ConsumerMessage, len(messages))
	for _, msg := range messages {
		msgCh <- msg
	}
	close(msgCh)
	return &stubPartitionConsumer{messages: msgCh, errors: make(chan *sarama.ConsumerError)}
}

type stubReplayProducer struct {
	sendErr error
	calls   int
	closed  bool
	lastMsg *sarama.ProducerMessage
}

func (s *stubReplayProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	s.calls++
	s.lastMsg = msg
	if s.sendErr != nil {
		return 0, 0, s.sendErr
	}
	return 0, int64(s.calls), nil
}

func (s *stubReplayProducer) Close() error {
	s.closed = true
	return nil
}
