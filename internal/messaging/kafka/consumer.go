package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// MessageHandler обрабатывает одно сообщение топика.
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

const (
	defaultRetryDelay = 200 * time.Millisecond
	defaultMaxRetries = 3
)

// Consumer читает топики в consumer group, повторяет обработку и после
// исчерпания попыток перекладывает сообщение в DLQ.
type Consumer struct {
	group      sarama.ConsumerGroup
	topics     []string
	handler    MessageHandler
	logger     *log.Entry
	wg         sync.WaitGroup
	dlq        *Producer
	maxRetries int
	retryDelay time.Duration
}

// ConsumerOption настраивает Consumer.
type ConsumerOption func(*Consumer)

// WithDeadLetterQueue включает перекладывание в DLQ после maxRetries неудачных попыток.
func WithDeadLetterQueue(producer *Producer, maxRetries int) ConsumerOption {
	return func(c *Consumer) {
		c.dlq = producer
		if maxRetries > 0 {
			c.maxRetries = maxRetries
		}
	}
}

// WithRetryDelay задаёт паузу между попытками обработки.
func WithRetryDelay(delay time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if delay >= 0 {
			c.retryDelay = delay
		}
	}
}

// WithConsumerLogger задаёт логгер консьюмера.
func WithConsumerLogger(logger *log.Entry) ConsumerOption {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewConsumer подключается к consumer group. Новые группы читают с конца топика.
func NewConsumer(brokers []string, groupID string, topics []string, handler MessageHandler, opts ...ConsumerOption) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	return newGroupConsumer(group, topics, handler, opts...), nil
}

func newGroupConsumer(group sarama.ConsumerGroup, topics []string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		group:      group,
		topics:     topics,
		handler:    handler,
		logger:     log.WithField("component", "kafka-consumer"),
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start запускает чтение в фоне. Остановка через Stop или отмену ctx.
func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			// Consume возвращается на каждом rebalance
			if err := c.group.Consume(ctx, c.topics, c); err != nil {
				c.logger.WithError(err).Error("consumer group session failed")
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			c.logger.WithError(err).Error("consumer error")
		}
	}()

	c.logger.WithField("topics", c.topics).Info("kafka consumer started")
	return nil
}

// Stop закрывает группу и ждёт фоновые горутины.
func (c *Consumer) Stop() error {
	if err := c.group.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	c.wg.Wait()
	c.logger.Info("kafka consumer stopped")
	return nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim обрабатывает сообщения из partition
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			fields := log.Fields{
				"topic":     message.Topic,
				"partition": message.Partition,
				"offset":    message.Offset,
			}
			c.logger.WithFields(fields).Debug("received message")

			if err := c.handleMessageWithRetry(session.Context(), message); err != nil {
				// Сообщение не маркируется и будет перечитано после rebalance
				c.logger.WithError(err).WithFields(fields).Error("message processing failed after all retries")
				continue
			}

			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// handleMessageWithRetry продолжает счёт попыток из заголовка x-retry-count.
// Когда попытки исчерпаны, сообщение уходит в DLQ и считается обработанным.
func (c *Consumer) handleMessageWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	attempts := c.getRetryCount(message)

	var err error
	for {
		err = c.handler(ctx, message)
		if err == nil {
			return nil
		}

		attempts++
		if attempts >= c.maxRetries {
			break
		}

		c.logger.WithError(err).WithFields(log.Fields{
			"topic":       message.Topic,
			"attempt":     attempts,
			"max_retries": c.maxRetries,
		}).Warn("message processing failed, will retry")

		if c.retryDelay > 0 {
			timer := time.NewTimer(c.retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
		}
	}

	if c.dlq == nil {
		return err
	}

	if dlqErr := c.sendToDLQ(message, err, attempts); dlqErr != nil {
		return fmt.Errorf("failed to send to DLQ: %w", dlqErr)
	}
	c.logger.WithFields(log.Fields{
		"topic":    message.Topic,
		"attempts": attempts,
	}).Info("message moved to DLQ")
	return nil
}

// getRetryCount извлекает retry count из headers сообщения
func (c *Consumer) getRetryCount(message *sarama.ConsumerMessage) int {
	for _, header := range message.Headers {
		if header == nil || string(header.Key) != HeaderRetryCount {
			continue
		}
		if count, err := strconv.Atoi(string(header.Value)); err == nil {
			return count
		}
	}
	return 0
}

// DLQMessage - формат сообщения в Dead Letter Queue.
type DLQMessage struct {
	OriginalTopic     string `json:"original_topic"`
	OriginalPartition int32  `json:"original_partition"`
	OriginalOffset    int64  `json:"original_offset"`
	OriginalKey       string `json:"original_key"`
	OriginalValue     string `json:"original_value"`
	ErrorMessage      string `json:"error_message"`
	FailedAt          string `json:"failed_at"`
	RetryCount        int    `json:"retry_count"`
}

func (c *Consumer) sendToDLQ(message *sarama.ConsumerMessage, processingErr error, attempts int) error {
	failedAt := time.Now().UTC().Format(time.RFC3339)
	dlqMessage := DLQMessage{
		OriginalTopic:     message.Topic,
		OriginalPartition: message.Partition,
		OriginalOffset:    message.Offset,
		OriginalKey:       string(message.Key),
		OriginalValue:     string(message.Value),
		ErrorMessage:      processingErr.Error(),
		FailedAt:          failedAt,
		RetryCount:        attempts,
	}

	payload, err := json.Marshal(dlqMessage)
	if err != nil {
		return fmt.Errorf("failed to marshal dlq message: %w", err)
	}

	return c.dlq.Send(&sarama.ProducerMessage{
		Topic:     TopicDeadLetterQueue,
		Key:       sarama.ByteEncoder(message.Key),
		Value:     sarama.ByteEncoder(payload),
		Timestamp: time.Now(),
		Headers: []sarama.RecordHeader{
			{Key: []byte(HeaderOriginalTopic), Value: []byte(message.Topic)},
			{Key: []byte(HeaderErrorMessage), Value: []byte(processingErr.Error())},
			{Key: []byte(HeaderFailedAt), Value: []byte(failedAt)},
			{Key: []byte(HeaderRetryCount), Value: []byte(strconv.Itoa(dlqMessage.RetryCount))},
		},
	})
}

// ParseDLQMessage парсит сообщение из DLQ
func ParseDLQMessage(message *sarama.ConsumerMessage) (*DLQMessage, error) {
	var dlq DLQMessage
	if err := json.Unmarshal(message.Value, &dlq); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dlq message: %w", err)
	}
	if dlq.OriginalTopic == "" {
		return nil, fmt.Errorf("dlq message has no original topic")
	}
	return &dlq, nil
}

// ParseCheckoutEvent парсит CheckoutEvent из сообщения
func ParseCheckoutEvent(message *sarama.ConsumerMessage) (*CheckoutEvent, error) {
	var event CheckoutEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkout event: %w", err)
	}
	return &event, nil
}

// ParseOrderEvent парсит OrderEvent из сообщения
func ParseOrderEvent(message *sarama.ConsumerMessage) (*OrderEvent, error) {
	var event OrderEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order event: %w", err)
	}
	return &event, nil
}

// ParseOutboxEnvelope парсит outbox-конверт из сообщения
func ParseOutboxEnvelope(message *sarama.ConsumerMessage) (*OutboxEnvelope, error) {
	var envelope OutboxEnvelope
	if err := json.Unmarshal(message.Value, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outbox envelope: %w", err)
	}
	return &envelope, nil
}
