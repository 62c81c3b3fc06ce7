package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

// paymentMethodRepositoryInMemory хранит одну запись на клиента.
type paymentMethodRepositoryInMemory struct {
	mu      sync.RWMutex
	methods map[string]domain.PaymentMethod
}

// NewPaymentMethodRepository создаёт пустое in-memory хранилище платёжных данных.
func NewPaymentMethodRepository() domain.PaymentMethodRepository {
	return &paymentMethodRepositoryInMemory{methods: make(map[string]domain.PaymentMethod)}
}

func (r *paymentMethodRepositoryInMemory) GetByCustomer(_ context.Context, customerID string) (domain.PaymentMethod, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	method, ok := r.methods[customerID]
	return method, ok, nil
}

// Save создаёт или заменяет запись клиента; пустой ID генерируется.
func (r *paymentMethodRepositoryInMemory) Save(_ context.Context, method domain.PaymentMethod) error {
	if strings.TrimSpace(method.CustomerID) == "" {
		return domain.ErrCustomerRequired
	}
	if method.ID == "" {
		method.ID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[method.CustomerID] = method
	return nil
}

var _ domain.PaymentMethodRepository = (*paymentMethodRepositoryInMemory)(nil)
