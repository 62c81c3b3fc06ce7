// Package checkout реализует оформление покупки: загрузку платёжных данных,
// проверку корзины и фиксацию заказов по принципу best effort.
package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
	"github.com/vladislavdragonenkov/petshop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/petshop/internal/metrics"
)

// SessionReader отдаёт текущую сессию покупателя.
type SessionReader interface {
	Get() domain.Session
}

// Cart - корзина, которую оформляет workflow.
type Cart interface {
	IDs() []string
	Len() int
	Total(pets []domain.Pet) decimal.Decimal
	Remove(ids ...string)
}

// Catalog отдаёт загруженный каталог для расчёта суммы.
type Catalog interface {
	Pets() []domain.Pet
}

// EventPublisher публикует события во внешнюю шину (реализуется kafka.Producer).
type EventPublisher interface {
	PublishEvent(topic string, key string, event interface{}) error
}

// Dependencies - обязательные зависимости workflow.
type Dependencies struct {
	Session  SessionReader
	Cart     Cart
	Catalog  Catalog
	Payments domain.PaymentMethodRepository
	Orders   domain.OrderRepository
	Pets     domain.PetRepository
}

// Option настраивает Workflow.
type Option func(*Workflow)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(w *Workflow) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithMetrics включает метрики оформления.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(w *Workflow) {
		w.metrics = m
	}
}

// WithOutbox включает запись событий фиксации в transactional outbox.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(w *Workflow) {
		w.outbox = outbox
	}
}

// WithTimeline включает запись переходов в timeline.
func WithTimeline(timeline domain.TimelineRepository) Option {
	return func(w *Workflow) {
		w.timeline = timeline
	}
}

// WithEventPublisher включает прямую публикацию событий в Kafka.
func WithEventPublisher(publisher EventPublisher) Option {
	return func(w *Workflow) {
		w.publisher = publisher
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) {
		if now != nil {
			w.now = now
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов заказов и оформлений.
func WithIDGenerator(newID func() string) Option {
	return func(w *Workflow) {
		if newID != nil {
			w.newID = newID
		}
	}
}

// Workflow - конечный автомат оформления одной сессии. Одновременно выполняется
// не более одного оформления; удалённые вызовы идут без удержания мьютекса.
type Workflow struct {
	session  SessionReader
	cart     Cart
	catalog  Catalog
	payments domain.PaymentMethodRepository
	orders   domain.OrderRepository
	pets     domain.PetRepository

	outbox    domain.OutboxRepository
	timeline  domain.TimelineRepository
	publisher EventPublisher
	metrics   *metrics.CheckoutMetrics
	logger    *log.Entry
	now       func() time.Time
	newID     func() string

	mu         sync.Mutex
	state      State
	generation uint64
	// committing держится от начала записей Confirm до их завершения, даже после Leave.
	committing bool
	checkoutID string
	payment    *domain.PaymentMethod
}

// NewWorkflow создаёт workflow в состоянии Idle.
func NewWorkflow(deps Dependencies, opts ...Option) *Workflow {
	w := &Workflow{
		session:  deps.Session,
		cart:     deps.Cart,
		catalog:  deps.Catalog,
		payments: deps.Payments,
		orders:   deps.Orders,
		pets:     deps.Pets,
		logger:   log.WithField("component", "checkout"),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State возвращает текущее состояние.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Snapshot возвращает текущий вид экрана.
func (w *Workflow) Snapshot() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewLocked()
}

// Enter открывает экран оформления и загружает платёжные данные покупателя.
// Без входа в систему удалённых вызовов нет, возвращается ErrUnauthenticated.
func (w *Workflow) Enter(ctx context.Context) (View, error) {
	current := w.session.Get()

	w.mu.Lock()
	if w.state.busy() || w.committing {
		view := w.viewLocked()
		w.mu.Unlock()
		return view, domain.ErrCheckoutInProgress
	}
	if !current.Authenticated() {
		w.generation++
		w.state = StateUnauthenticated
		w.payment = nil
		w.checkoutID = ""
		view := w.viewLocked()
		w.mu.Unlock()

		if w.metrics != nil {
			w.metrics.RecordUnauthenticated()
		}
		view.Navigate = domain.NavigateLogin
		return view, domain.ErrUnauthenticated
	}

	w.generation++
	generation := w.generation
	w.state = StateLoadingPaymentInfo
	w.payment = nil
	w.checkoutID = w.newID()
	checkoutID := w.checkoutID
	w.mu.Unlock()

	if w.metrics != nil {
		w.metrics.RecordEntered()
	}
	logger := w.logger.WithFields(log.Fields{
		"checkout_id": checkoutID,
		"customer_id": current.CustomerID,
	})

	// Запрос доводится до конца даже при уходе вызывающего.
	remoteCtx := context.WithoutCancel(ctx)
	start := time.Now()
	method, found, err := w.payments.GetByCustomer(remoteCtx, current.CustomerID)
	if w.metrics != nil {
		w.metrics.RecordStepDuration(string(domain.CheckoutStepLoadPayment), time.Since(start))
	}

	w.mu.Lock()
	if generation != w.generation {
		view := w.viewLocked()
		w.mu.Unlock()
		logger.Debug("payment lookup finished after checkout was left, result discarded")
		return view, domain.ErrCheckoutAbandoned
	}

	var (
		result    error
		eventType kafka.EventType
		lookup    string
	)
	switch {
	case err != nil:
		w.state = StateLoadError
		result = fmt.Errorf("%w: %w", domain.ErrRemoteRead, err)
		eventType, lookup = kafka.EventTypeCheckoutLoadFailed, metrics.PaymentLookupError
	case !found:
		w.state = StateNoPaymentInfo
		eventType, lookup = kafka.EventTypeCheckoutNoPaymentInfo, metrics.PaymentLookupMissing
	default:
		w.state = StateReady
		w.payment = &method
		eventType, lookup = kafka.EventTypeCheckoutReady, metrics.PaymentLookupFound
	}
	state := w.state
	view := w.viewLocked()
	w.mu.Unlock()

	if w.metrics != nil {
		w.metrics.RecordPaymentLookup(lookup)
	}
	if err != nil {
		logger.WithError(err).Warn("payment method lookup failed")
	} else {
		logger.WithField("state", state).Debug("payment method lookup finished")
	}

	w.appendTimeline(checkoutID, string(state), errorReason(err))
	w.publishCheckoutEvent(eventType, checkoutID, current.CustomerID, nil)

	return view, result
}

// Leave покидает экран. Незавершённая загрузка или запись доработает, но её результат не применится.
// Пока идёт запись заказов, новый Enter отклоняется с ErrCheckoutInProgress.
func (w *Workflow) Leave() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.generation++
	w.state = StateIdle
	w.payment = nil
	w.checkoutID = ""
}

// Confirm фиксирует оформление. Возможен только из Ready.
// Ошибки валидации оставляют состояние Ready и не порождают удалённых записей.
// Ошибки записи заказов и статусов питомцев логируются и не возвращаются.
func (w *Workflow) Confirm(ctx context.Context) (Receipt, error) {
	current := w.session.Get()

	w.mu.Lock()
	if w.state != StateReady {
		w.mu.Unlock()
		return Receipt{}, domain.ErrCheckoutNotReady
	}

	pets := w.catalog.Pets()
	total := w.cart.Total(pets)
	if err := w.validateLocked(current, total); err != nil {
		w.mu.Unlock()
		if w.metrics != nil {
			w.metrics.RecordRejected()
		}
		return Receipt{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	w.state = StateConfirming
	w.committing = true
	generation := w.generation
	checkoutID := w.checkoutID
	payment := *w.payment
	petIDs := w.cart.IDs()
	w.mu.Unlock()

	start := time.Now()
	if w.metrics != nil {
		w.metrics.RecordCommitStarted()
	}

	orderDate := w.now()
	orders := make([]domain.Order, 0, len(petIDs))
	for _, petID := range petIDs {
		orders = append(orders, domain.Order{
			ID:          w.newID(),
			CustomerID:  current.CustomerID,
			PaymentID:   payment.ID,
			PetID:       petID,
			OrderDate:   orderDate,
			TotalAmount: total,
		})
	}

	logger := w.logger.WithFields(log.Fields{
		"checkout_id": checkoutID,
		"customer_id": current.CustomerID,
	})

	remoteCtx := context.WithoutCancel(ctx)
	var failed []domain.CheckoutStep
	if err := w.runStep(remoteCtx, domain.CheckoutStepInsertOrders, func(ctx context.Context) error {
		return w.orders.InsertOrders(ctx, orders)
	}); err != nil {
		logger.WithError(err).Error("insert orders failed, checkout reported as successful")
		failed = append(failed, domain.CheckoutStepInsertOrders)
	}
	if err := w.runStep(remoteCtx, domain.CheckoutStepMarkAdopted, func(ctx context.Context) error {
		return w.pets.MarkAdopted(ctx, petIDs)
	}); err != nil {
		logger.WithError(err).Error("mark pets adopted failed, checkout reported as successful")
		failed = append(failed, domain.CheckoutStepMarkAdopted)
	}

	// Питомцы, добавленные во время записи, остаются в корзине.
	w.cart.Remove(petIDs...)

	final := StateCommitted
	if len(failed) > 0 {
		final = StateCommitPartialFailure
	}

	w.mu.Lock()
	w.committing = false
	if generation == w.generation {
		w.state = final
		w.payment = nil
	}
	w.mu.Unlock()

	if w.metrics != nil {
		w.metrics.RecordCommitFinished(len(failed) > 0, time.Since(start))
	}
	logger.WithFields(log.Fields{
		"orders": len(orders),
		"total":  total.StringFixed(2),
		"state":  final,
	}).Info("checkout committed")

	w.emitCommitted(checkoutID, current.CustomerID, orders, total, failed)

	return Receipt{
		CheckoutID:  checkoutID,
		Orders:      orders,
		Total:       total,
		State:       final,
		FailedSteps: failed,
		Navigate:    domain.NavigateConfirmation,
	}, nil
}

func (w *Workflow) validateLocked(current domain.Session, total decimal.Decimal) error {
	switch {
	case w.payment == nil:
		return domain.ErrPaymentMethodMissing
	case !current.Authenticated():
		return domain.ErrCustomerRequired
	case w.cart.Len() == 0:
		return domain.ErrCartEmpty
	case !total.IsPositive():
		return domain.ErrTotalNotPositive
	}
	return nil
}

func (w *Workflow) runStep(ctx context.Context, step domain.CheckoutStep, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	if w.metrics != nil {
		w.metrics.RecordStepDuration(string(step), time.Since(start))
		if err != nil {
			w.metrics.RecordRemoteWriteFailure(string(step))
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrRemoteWrite, step, err)
	}
	return nil
}

func (w *Workflow) viewLocked() View {
	current := w.session.Get()
	view := View{
		State:      w.state,
		CheckoutID: w.checkoutID,
		CustomerID: current.CustomerID,
		Email:      current.Email,
	}

	pets := w.catalog.Pets()
	index := make(map[string]domain.Pet, len(pets))
	for _, pet := range pets {
		if _, ok := index[pet.ID]; !ok {
			index[pet.ID] = pet
		}
	}
	for _, id := range w.cart.IDs() {
		if pet, ok := index[id]; ok {
			view.Items = append(view.Items, pet)
		}
	}
	view.Total = w.cart.Total(pets)

	if w.payment != nil {
		view.MaskedCard = w.payment.MaskedCardNumber()
		view.CardholderName = w.payment.CardholderName
		view.Expiration = w.payment.Expiration
		view.BillingAddress = w.payment.BillingAddress
	}
	view.CanConfirm = w.state == StateReady
	return view
}

func (w *Workflow) emitCommitted(checkoutID, customerID string, orders []domain.Order, total decimal.Decimal, failed []domain.CheckoutStep) {
	orderIDs := make([]string, 0, len(orders))
	petIDs := make([]string, 0, len(orders))
	for _, order := range orders {
		orderIDs = append(orderIDs, order.ID)
		petIDs = append(petIDs, order.PetID)
	}

	eventType := "CheckoutCommitted"
	reason := ""
	if len(failed) > 0 {
		eventType = "CheckoutCommitPartialFailure"
		reason = fmt.Sprintf("failed steps: %v", failed)
	}

	payload := map[string]interface{}{
		"checkout_id":  checkoutID,
		"customer_id":  customerID,
		"order_ids":    orderIDs,
		"pet_ids":      petIDs,
		"total_amount": total.StringFixed(2),
		"failed_steps": failed,
		"ts":           w.now().Format(time.RFC3339Nano),
	}
	w.enqueueOutbox(checkoutID, eventType, payload)
	w.appendTimeline(checkoutID, eventType, reason)

	for _, order := range orders {
		w.publishOrderEvent(kafka.EventTypeOrderPlaced, order, checkoutID)
	}
}

func (w *Workflow) enqueueOutbox(checkoutID, eventType string, payload map[string]interface{}) {
	if w.outbox == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		w.logger.WithError(err).WithFields(log.Fields{
			"checkout_id": checkoutID,
			"event":       eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: domain.OutboxAggregateCheckout,
		AggregateID:   checkoutID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := w.outbox.Enqueue(msg); err != nil {
		w.logger.WithError(err).WithFields(log.Fields{
			"checkout_id": checkoutID,
			"event":       eventType,
		}).Error("enqueue event failed")
		return
	}
	if w.metrics != nil {
		w.metrics.RecordOutboxEvent()
	}
}

func (w *Workflow) appendTimeline(checkoutID, eventType, reason string) {
	if w.timeline == nil || checkoutID == "" {
		return
	}
	event := domain.TimelineEvent{
		CheckoutID: checkoutID,
		Type:       eventType,
		Reason:     reason,
		Occurred:   w.now(),
	}
	if err := w.timeline.Append(event); err != nil {
		w.logger.WithError(err).WithFields(log.Fields{
			"checkout_id": checkoutID,
			"event":       eventType,
		}).Warn("append timeline event failed")
		return
	}
	if w.metrics != nil {
		w.metrics.RecordTimelineEvent()
	}
}

// publishCheckoutEvent публикует переход в Kafka, если publisher настроен.
func (w *Workflow) publishCheckoutEvent(eventType kafka.EventType, checkoutID, customerID string, metadata map[string]interface{}) {
	if w.publisher == nil {
		return
	}
	event := kafka.NewCheckoutEvent(eventType, checkoutID, customerID, metadata)
	if err := w.publisher.PublishEvent(kafka.TopicCheckoutEvents, checkoutID, event); err != nil {
		// Kafka опциональна и не влияет на результат оформления
		w.logger.WithError(err).WithFields(log.Fields{
			"event_type":  eventType,
			"checkout_id": checkoutID,
		}).Warn("failed to publish checkout event to kafka")
	}
}

func (w *Workflow) publishOrderEvent(eventType kafka.EventType, order domain.Order, checkoutID string) {
	if w.publisher == nil {
		return
	}
	event := kafka.NewOrderEvent(eventType, order.ID, checkoutID, order.CustomerID, order.PetID, map[string]interface{}{
		"total_amount": order.TotalAmount.StringFixed(2),
	})
	if err := w.publisher.PublishEvent(kafka.TopicOrderEvents, order.ID, event); err != nil {
		w.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"order_id":   order.ID,
		}).Warn("failed to publish order event to kafka")
	}
}

func errorReason(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

var _ EventPublisher = (*kafka.Producer)(nil)
