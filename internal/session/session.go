// Package session хранит идентичность покупателя на время жизни процесса.
package session

import (
	"sync"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

// Store - текущая сессия. Пустой CustomerID означает анонимного покупателя.
type Store struct {
	mu      sync.RWMutex
	current domain.Session
}

func NewStore() *Store {
	return &Store{}
}

// Set запоминает покупателя.
func (s *Store) Set(customerID, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = domain.Session{CustomerID: customerID, Email: email}
}

// Get возвращает копию текущей сессии.
func (s *Store) Get() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Clear эквивалентен Set("", "").
func (s *Store) Clear() {
	s.Set("", "")
}
