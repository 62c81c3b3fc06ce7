package kafka

import (
	"context"
	"fmt"
	"strings"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

// TimelineProjectionPrefix отличает события, пришедшие из Kafka, от записанных оформлением напрямую.
const TimelineProjectionPrefix = "kafka."

// NewTimelineProjector возвращает обработчик, который переносит опубликованные
// события заказов в timeline оформления.
func NewTimelineProjector(timeline domain.TimelineRepository, logger *log.Entry) MessageHandler {
	if logger == nil {
		logger = log.WithField("component", "timeline-projector")
	}

	return func(_ context.Context, message *sarama.ConsumerMessage) error {
		event, err := ParseOrderEvent(message)
		if err != nil {
			return err
		}
		if strings.TrimSpace(event.CheckoutID) == "" {
			// Без checkout_id событие некуда проецировать, повтор не поможет
			logger.WithField("offset", message.Offset).Warn("order event without checkout id skipped")
			return nil
		}

		entry := domain.TimelineEvent{
			CheckoutID: event.CheckoutID,
			Type:       TimelineProjectionPrefix + string(event.EventType),
			Reason:     fmt.Sprintf("order %s pet %s", event.OrderID, event.PetID),
			Occurred:   event.Timestamp.UTC(),
		}
		if err := timeline.Append(entry); err != nil {
			return fmt.Errorf("append projected timeline event: %w", err)
		}

		logger.WithFields(log.Fields{
			"checkout_id": event.CheckoutID,
			"event_type":  event.EventType,
		}).Debug("order event projected into timeline")
		return nil
	}
}
