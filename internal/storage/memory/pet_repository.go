package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

const defaultPageSize = 20

// petRepositoryInMemory хранит каталог в порядке добавления.
type petRepositoryInMemory struct {
	mu    sync.RWMutex
	pets  []domain.Pet
	index map[string]int
}

// NewPetRepository создаёт каталог из seed (повторяющиеся ID пропускаются).
func NewPetRepository(seed []domain.Pet) domain.PetRepository {
	repo := &petRepositoryInMemory{index: make(map[string]int, len(seed))}
	for _, pet := range seed {
		if _, exists := repo.index[pet.ID]; exists {
			continue
		}
		repo.index[pet.ID] = len(repo.pets)
		repo.pets = append(repo.pets, pet)
	}
	return repo
}

// ListPets возвращает страницу page (с 1). За пределами данных - пустая страница.
func (r *petRepositoryInMemory) ListPets(_ context.Context, page, pageSize int) ([]domain.Pet, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	start := (page - 1) * pageSize
	if start >= len(r.pets) {
		return []domain.Pet{}, nil
	}
	end := start + pageSize
	if end > len(r.pets) {
		end = len(r.pets)
	}

	result := make([]domain.Pet, end-start)
	copy(result, r.pets[start:end])
	return result, nil
}

func (r *petRepositoryInMemory) GetPet(_ context.Context, id string) (domain.Pet, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.index[id]
	if !ok {
		return domain.Pet{}, false, nil
	}
	return r.pets[idx], true, nil
}

// MarkAdopted меняет статус известных питомцев; неизвестные ID игнорируются.
func (r *petRepositoryInMemory) MarkAdopted(_ context.Context, petIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range petIDs {
		if idx, ok := r.index[id]; ok {
			r.pets[idx].AdoptionStatus = domain.AdoptionStatusAdopted
		}
	}
	return nil
}

var _ domain.PetRepository = (*petRepositoryInMemory)(nil)
