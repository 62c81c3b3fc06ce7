package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PetRepository - удалённое хранилище карточек питомцев.
type PetRepository interface {
	// ListPets возвращает страницу каталога (page начинается с 1). Пустая страница означает конец данных.
	ListPets(ctx context.Context, page, pageSize int) ([]Pet, error)
	// GetPet возвращает питомца и признак наличия. Отсутствие записи не является ошибкой.
	GetPet(ctx context.Context, id string) (Pet, bool, error)
	// MarkAdopted переводит перечисленных питомцев в статус Adopted.
	MarkAdopted(ctx context.Context, petIDs []string) error
}

// PaymentMethodRepository хранит платёжные данные клиентов.
type PaymentMethodRepository interface {
	// GetByCustomer возвращает единственную запись клиента; found=false, если записи нет.
	GetByCustomer(ctx context.Context, customerID string) (PaymentMethod, bool, error)
	// Save создаёт или заменяет запись клиента.
	Save(ctx context.Context, method PaymentMethod) error
}

// OrderRepository хранит записи о покупках.
type OrderRepository interface {
	// InsertOrders сохраняет пакет заказов одного оформления.
	InsertOrders(ctx context.Context, orders []Order) error
	// ListByCustomer возвращает заказы клиента, новые первыми; limit<=0 снимает ограничение.
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]Order, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события оформления.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(checkoutID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, statusCode int) error
	MarkFailed(key string, responseBody []byte, statusCode int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// CheckoutStep задаёт шаги оформления для метрик/логов.
type CheckoutStep string

const (
	CheckoutStepLoadPayment  CheckoutStep = "load_payment"
	CheckoutStepInsertOrders CheckoutStep = "insert_orders"
	CheckoutStepMarkAdopted  CheckoutStep = "mark_adopted"
)

// OutboxAggregateCheckout - тип агрегата событий оформления; по нему сообщения ключуются в Kafka.
const OutboxAggregateCheckout = "checkout"

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Normalize проверяет сообщение перед постановкой в outbox.
// Пустой тип агрегата означает checkout, пустой payload - пустой JSON-объект.
func (m OutboxMessage) Normalize() (OutboxMessage, error) {
	m.AggregateID = strings.TrimSpace(m.AggregateID)
	if m.AggregateID == "" {
		return OutboxMessage{}, fmt.Errorf("%w: aggregate id is required", ErrOutboxMessageInvalid)
	}
	if strings.TrimSpace(m.AggregateType) == "" {
		m.AggregateType = OutboxAggregateCheckout
	}
	if len(m.Payload) == 0 {
		m.Payload = []byte("{}")
	}
	return m, nil
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
