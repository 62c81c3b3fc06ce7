package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
	"github.com/vladislavdragonenkov/petshop/internal/messaging/kafka"
)

const auditConsumerMaxRetries = 3

// initKafkaProducer создаёт producer, если брокеры заданы.
// Пустой список брокеров не считается ошибкой: витрина работает без Kafka.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// startAuditConsumer запускает проекцию событий заказов в timeline оформления.
func startAuditConsumer(ctx context.Context, brokers []string, group string, timeline domain.TimelineRepository, dlq *kafka.Producer, logger *log.Entry) (*kafka.Consumer, error) {
	projector := kafka.NewTimelineProjector(timeline, logger.WithField("component", "timeline-projector"))
	consumer, err := kafka.NewConsumer(brokers, group, []string{kafka.TopicOrderEvents}, projector,
		kafka.WithDeadLetterQueue(dlq, auditConsumerMaxRetries),
		kafka.WithConsumerLogger(logger.WithField("component", "audit-consumer")),
	)
	if err != nil {
		return nil, err
	}
	if err := consumer.Start(ctx); err != nil {
		_ = consumer.Stop()
		return nil, err
	}
	return consumer, nil
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

func stopConsumer(consumer *kafka.Consumer, logger *log.Entry) {
	if consumer == nil {
		return
	}
	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("failed to stop kafka consumer")
	}
}
