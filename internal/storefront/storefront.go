// Package storefront собирает компоненты витрины (каталог, корзину, сессию и
// оформление) в отдельный объект на каждую сессию покупателя.
package storefront

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/petshop/internal/cart"
	"github.com/vladislavdragonenkov/petshop/internal/catalog"
	"github.com/vladislavdragonenkov/petshop/internal/domain"
	"github.com/vladislavdragonenkov/petshop/internal/service/checkout"
	"github.com/vladislavdragonenkov/petshop/internal/session"
)

// Storefront - состояние витрины одной сессии.
type Storefront struct {
	id       string
	catalog  *catalog.Store
	view     *catalog.ViewModel
	cart     *cart.Store
	session  *session.Store
	checkout *checkout.Workflow
	pets     domain.PetRepository
	orders   domain.OrderRepository
	logger   *log.Entry

	mu       sync.Mutex
	lastSeen time.Time
}

// CartView - содержимое корзины для отображения.
type CartView struct {
	PetIDs []string
	Items  []domain.Pet
	Total  decimal.Decimal
}

// ID возвращает идентификатор сессии.
func (s *Storefront) ID() string {
	return s.id
}

// Session возвращает текущую идентичность покупателя.
func (s *Storefront) Session() domain.Session {
	return s.session.Get()
}

// SignIn запоминает покупателя. Настоящей аутентификации нет.
func (s *Storefront) SignIn(customerID, email string) error {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return domain.ErrCustomerRequired
	}
	s.session.Set(customerID, strings.TrimSpace(email))
	s.logger.WithField("customer_id", customerID).Info("customer signed in")
	return nil
}

// SignOut очищает сессию и покидает экран оформления.
func (s *Storefront) SignOut() {
	s.session.Clear()
	s.checkout.Leave()
}

// Browse возвращает видимый список каталога.
func (s *Storefront) Browse(q catalog.Query) []domain.Pet {
	return s.view.Visible(q)
}

// LoadMore подгружает следующую страницу каталога.
func (s *Storefront) LoadMore(ctx context.Context, currentPage int) ([]domain.Pet, int, bool) {
	added := s.catalog.LoadMore(ctx, currentPage)
	return added, s.catalog.Page(), s.catalog.Exhausted()
}

// Page возвращает номер последней загруженной страницы.
func (s *Storefront) Page() int {
	return s.catalog.Page()
}

// Exhausted сообщает, что источник каталога больше не отдаёт страниц.
func (s *Storefront) Exhausted() bool {
	return s.catalog.Exhausted()
}

// Pet возвращает карточку питомца: сначала из загруженного каталога, затем из хранилища.
func (s *Storefront) Pet(ctx context.Context, id string) (catalog.Details, error) {
	if pet, ok := s.catalog.Lookup(id); ok {
		return catalog.Describe(pet), nil
	}
	if s.pets == nil {
		return catalog.Details{}, domain.ErrPetNotFound
	}
	pet, found, err := s.pets.GetPet(ctx, id)
	if err != nil {
		return catalog.Details{}, err
	}
	if !found {
		return catalog.Details{}, domain.ErrPetNotFound
	}
	return catalog.Describe(pet), nil
}

// AddToCart добавляет в корзину питомца из загруженного каталога.
func (s *Storefront) AddToCart(id string) (CartView, error) {
	if _, ok := s.catalog.Lookup(id); !ok {
		return CartView{}, domain.ErrPetNotFound
	}
	s.cart.Add(id)
	return s.Cart(), nil
}

// Cart возвращает содержимое корзины.
func (s *Storefront) Cart() CartView {
	pets := s.catalog.Pets()
	ids := s.cart.IDs()

	view := CartView{PetIDs: ids, Total: s.cart.Total(pets)}
	for _, id := range ids {
		if pet, ok := s.catalog.Lookup(id); ok {
			view.Items = append(view.Items, pet)
		}
	}
	return view
}

// ClearCart опустошает корзину.
func (s *Storefront) ClearCart() {
	s.cart.Clear()
}

// Checkout возвращает workflow оформления этой сессии.
func (s *Storefront) Checkout() *checkout.Workflow {
	return s.checkout
}

// Orders возвращает историю заказов вошедшего покупателя.
func (s *Storefront) Orders(ctx context.Context, limit int) ([]domain.Order, error) {
	current := s.session.Get()
	if !current.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	orders, err := s.orders.ListByCustomer(ctx, current.CustomerID, limit)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Storefront) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Storefront) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
