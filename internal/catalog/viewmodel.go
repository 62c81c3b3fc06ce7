package catalog

import (
	"sync"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

type viewKey struct {
	revision uint64
	query    Query
}

// ViewModel отдаёт видимый список каталога и запоминает последний результат.
type ViewModel struct {
	store *Store

	mu     sync.Mutex
	key    viewKey
	cached []domain.Pet
	valid  bool
}

// NewViewModel создаёт модель поверх каталога.
func NewViewModel(store *Store) *ViewModel {
	return &ViewModel{store: store}
}

// Visible возвращает список для query; результат пересчитывается только при
// изменении каталога или параметров.
func (vm *ViewModel) Visible(q Query) []domain.Pet {
	pets, revision := vm.store.Snapshot()
	key := viewKey{revision: revision, query: q}

	vm.mu.Lock()
	defer vm.mu.Unlock()

	if !vm.valid || vm.key != key {
		vm.cached = Visible(pets, q)
		vm.key = key
		vm.valid = true
	}

	result := make([]domain.Pet, len(vm.cached))
	copy(result, vm.cached)
	return result
}
