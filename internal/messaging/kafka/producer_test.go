package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func TestProducer_PublishEvent(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromSync(mockProducer, log.WithField("component", "kafka-producer-test"))

	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event CheckoutEvent
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.CheckoutID != "checkout-123" {
			t.Errorf("unexpected checkout id %q", event.CheckoutID)
		}
		return nil
	})

	event := NewCheckoutEvent(
		EventTypeCheckoutCommitted,
		"checkout-123",
		"cust-1",
		map[string]interface{}{"orders": 2},
	)

	if err := producer.PublishEvent(TopicCheckoutEvents, "checkout-123", event); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	event := NewCheckoutEvent(EventTypeCheckoutEntered, "checkout-123", "", nil)
	if err := producer.PublishEvent(TopicCheckoutEvents, "checkout-123", event); err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_MarshalError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromSync(mockProducer, nil)

	if err := producer.PublishEvent(TopicCheckoutEvents, "k", map[string]interface{}{"bad": make(chan int)}); err == nil {
		t.Fatal("expected marshal error")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewCheckoutEvent(t *testing.T) {
	metadata := map[string]interface{}{
		"total": "84.79",
	}

	event := NewCheckoutEvent(EventTypeCheckoutCommitted, "checkout-1", "cust-1", metadata)

	if event.EventType != EventTypeCheckoutCommitted {
		t.Errorf("expected event type %s, got %s", EventTypeCheckoutCommitted, event.EventType)
	}
	if event.CheckoutID != "checkout-1" {
		t.Errorf("expected checkout id checkout-1, got %s", event.CheckoutID)
	}
	if event.CustomerID != "cust-1" {
		t.Errorf("expected customer id cust-1, got %s", event.CustomerID)
	}
	if event.Metadata["total"] != "84.79" {
		t.Error("metadata not set correctly")
	}
	if event.Timestamp.IsZero() || time.Since(event.Timestamp) > time.Second {
		t.Error("timestamp should be close to current time")
	}
}

func TestNewOrderEvent(t *testing.T) {
	event := NewOrderEvent(EventTypeOrderPlaced, "order-1", "checkout-1", "cust-1", "2", nil)

	if event.EventType != EventTypeOrderPlaced {
		t.Errorf("expected event type %s, got %s", EventTypeOrderPlaced, event.EventType)
	}
	if event.OrderID != "order-1" || event.CheckoutID != "checkout-1" {
		t.Errorf("unexpected ids: %+v", event)
	}
	if event.PetID != "2" {
		t.Errorf("expected pet id 2, got %s", event.PetID)
	}
	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}
}
