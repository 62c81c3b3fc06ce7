package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Checkout события
	EventTypeCheckoutEntered        EventType = "checkout.entered"
	EventTypeCheckoutReady          EventType = "checkout.ready"
	EventTypeCheckoutNoPaymentInfo  EventType = "checkout.no_payment_info"
	EventTypeCheckoutLoadFailed     EventType = "checkout.load_failed"
	EventTypeCheckoutCommitted      EventType = "checkout.committed"
	EventTypeCheckoutPartialFailure EventType = "checkout.partial_failure"

	// Order события
	EventTypeOrderPlaced EventType = "order.placed"
	EventTypePetAdopted  EventType = "pet.adopted"
)

// Topics для Kafka
const (
	TopicCheckoutEvents  = "petshop.checkout.events"
	TopicOrderEvents     = "petshop.order.events"
	TopicDeadLetterQueue = "petshop.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// CheckoutEvent представляет переход оформления покупки
type CheckoutEvent struct {
	EventType  EventType              `json:"event_type"`
	CheckoutID string                 `json:"checkout_id"`
	CustomerID string                 `json:"customer_id,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// OrderEvent представляет событие по отдельному заказу
type OrderEvent struct {
	EventType  EventType              `json:"event_type"`
	OrderID    string                 `json:"order_id"`
	CheckoutID string                 `json:"checkout_id"`
	CustomerID string                 `json:"customer_id"`
	PetID      string                 `json:"pet_id"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewCheckoutEvent создает событие оформления
func NewCheckoutEvent(eventType EventType, checkoutID, customerID string, metadata map[string]interface{}) *CheckoutEvent {
	return &CheckoutEvent{
		EventType:  eventType,
		CheckoutID: checkoutID,
		CustomerID: customerID,
		Timestamp:  time.Now(),
		Metadata:   metadata,
	}
}

// NewOrderEvent создает событие заказа
func NewOrderEvent(eventType EventType, orderID, checkoutID, customerID, petID string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType:  eventType,
		OrderID:    orderID,
		CheckoutID: checkoutID,
		CustomerID: customerID,
		PetID:      petID,
		Timestamp:  time.Now(),
		Metadata:   metadata,
	}
}
