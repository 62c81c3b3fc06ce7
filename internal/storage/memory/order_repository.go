package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

type storedOrder struct {
	order domain.Order
	seq   uint64
}

// orderRepositoryInMemory - простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]storedOrder
	seq   uint64
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]storedOrder),
	}
}

// InsertOrders сохраняет пакет целиком: при конфликте ID не сохраняется ни один заказ.
func (r *orderRepositoryInMemory) InsertOrders(_ context.Context, orders []domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(orders))
	for _, order := range orders {
		if _, exists := r.items[order.ID]; exists {
			return fmt.Errorf("%w: %s", domain.ErrOrderAlreadyExists, order.ID)
		}
		if _, dup := seen[order.ID]; dup {
			return fmt.Errorf("%w: %s", domain.ErrOrderAlreadyExists, order.ID)
		}
		seen[order.ID] = struct{}{}
	}

	for _, order := range orders {
		r.seq++
		r.items[order.ID] = storedOrder{order: order, seq: r.seq}
	}
	return nil
}

// ListByCustomer возвращает заказы клиента, новые первыми, ограничивая выборку limit (если >0).
func (r *orderRepositoryInMemory) ListByCustomer(_ context.Context, customerID string, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]storedOrder, 0)
	for _, item := range r.items {
		if item.order.CustomerID == customerID {
			matched = append(matched, item)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].order.OrderDate.Equal(matched[j].order.OrderDate) {
			return matched[i].order.OrderDate.After(matched[j].order.OrderDate)
		}
		return matched[i].seq > matched[j].seq
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	result := make([]domain.Order, 0, len(matched))
	for _, item := range matched {
		result = append(result, item.order)
	}
	return result, nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
