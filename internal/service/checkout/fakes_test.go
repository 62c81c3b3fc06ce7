package checkout

import (
	"context"
	"errors"
	"sync"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

type fakePayments struct {
	mu      sync.Mutex
	calls   int
	methods map[string]domain.PaymentMethod
	err     error
	// block, если задан, задерживает ответ до закрытия канала
	block   chan struct{}
	started chan struct{}
	ctxErrs []error
}

func (f *fakePayments) GetByCustomer(ctx context.Context, customerID string) (domain.PaymentMethod, bool, error) {
	f.mu.Lock()
	f.calls++
	block, started := f.block, f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if f.err != nil {
		return domain.PaymentMethod{}, false, f.err
	}
	method, ok := f.methods[customerID]
	return method, ok, nil
}

func (f *fakePayments) Save(_ context.Context, method domain.PaymentMethod) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.methods == nil {
		f.methods = make(map[string]domain.PaymentMethod)
	}
	f.methods[method.CustomerID] = method
	return nil
}

func (f *fakePayments) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeOrders struct {
	mu      sync.Mutex
	batches [][]domain.Order
	err     error
	calls   int
	// block, если задан, задерживает запись до закрытия канала
	block   chan struct{}
	started chan struct{}
}

func (f *fakeOrders) InsertOrders(_ context.Context, orders []domain.Order) error {
	f.mu.Lock()
	block, started := f.block, f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	batch := make([]domain.Order, len(orders))
	copy(batch, orders)
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeOrders) ListByCustomer(_ context.Context, customerID string, _ int) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Order
	for _, batch := range f.batches {
		for _, order := range batch {
			if order.CustomerID == customerID {
				result = append(result, order)
			}
		}
	}
	return result, nil
}

type fakePets struct {
	mu      sync.Mutex
	adopted [][]string
	err     error
	calls   int
}

func (f *fakePets) ListPets(context.Context, int, int) ([]domain.Pet, error) {
	return nil, errors.New("not used")
}

func (f *fakePets) GetPet(context.Context, string) (domain.Pet, bool, error) {
	return domain.Pet{}, false, nil
}

func (f *fakePets) MarkAdopted(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.adopted = append(f.adopted, append([]string(nil), ids...))
	return nil
}

type staticCatalog struct {
	pets []domain.Pet
}

func (c staticCatalog) Pets() []domain.Pet {
	return c.pets
}

type fakeOutbox struct {
	mu       sync.Mutex
	messages []domain.OutboxMessage
}

func (f *fakeOutbox) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.ID = "outbox-" + msg.AggregateID
	f.messages = append(f.messages, msg)
	return msg, nil
}

func (f *fakeOutbox) PullPending(int) ([]domain.OutboxMessage, error) { return nil, nil }
func (f *fakeOutbox) Stats() (domain.OutboxStats, error)            { return domain.OutboxStats{}, nil }
func (f *fakeOutbox) MarkSent(string) error                          { return nil }
func (f *fakeOutbox) MarkFailed(string) error                        { return nil }

type fakeTimeline struct {
	mu     sync.Mutex
	events []domain.TimelineEvent
}

func (f *fakeTimeline) Append(event domain.TimelineEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeTimeline) List(checkoutID string) ([]domain.TimelineEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.TimelineEvent
	for _, e := range f.events {
		if e.CheckoutID == checkoutID {
			result = append(result, e)
		}
	}
	return result, nil
}
