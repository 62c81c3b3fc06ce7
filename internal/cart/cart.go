// Package cart хранит корзину текущей сессии: множество идентификаторов питомцев.
package cart

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

// Store - корзина без повторов, порядок добавления сохраняется.
type Store struct {
	mu  sync.RWMutex
	ids []string
	set map[string]struct{}
}

// NewStore создаёт пустую корзину.
func NewStore() *Store {
	return &Store{set: make(map[string]struct{})}
}

// Add добавляет питомца. Повторное добавление ничего не меняет.
// Возвращает true, если идентификатор был добавлен.
func (s *Store) Add(id string) bool {
	if id == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.set[id]; ok {
		return false
	}
	s.set[id] = struct{}{}
	s.ids = append(s.ids, id)
	return true
}

func (s *Store) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.set[id]
	return ok
}

// Clear опустошает корзину.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = nil
	s.set = make(map[string]struct{})
}

// Remove убирает перечисленных питомцев, сохраняя порядок остальных.
func (s *Store) Remove(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.set, id)
	}
	kept := s.ids[:0]
	for _, id := range s.ids {
		if _, ok := s.set[id]; ok {
			kept = append(kept, id)
		}
	}
	s.ids = kept
}

// IDs возвращает копию идентификаторов в порядке добавления.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]string, len(s.ids))
	copy(result, s.ids)
	return result
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Total суммирует цены питомцев из корзины, найденных в pets.
// Идентификаторы, которых нет в pets, молча пропускаются.
func (s *Store) Total(pets []domain.Pet) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	if len(s.ids) == 0 {
		return total
	}

	prices := make(map[string]decimal.Decimal, len(pets))
	for _, pet := range pets {
		if _, ok := prices[pet.ID]; !ok {
			prices[pet.ID] = pet.Price
		}
	}
	for _, id := range s.ids {
		if price, ok := prices[id]; ok {
			total = total.Add(price)
		}
	}
	return total
}
