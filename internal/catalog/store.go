package catalog

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

// Store хранит загруженный каталог. Страницы только добавляются в конец.
type Store struct {
	mu        sync.RWMutex
	source    PageSource
	logger    *log.Entry
	pets      []domain.Pet
	index     map[string]int
	page      int
	exhausted bool
	revision  uint64
}

// NewStore создаёт пустой каталог поверх source.
func NewStore(source PageSource, logger *log.Entry) *Store {
	if logger == nil {
		logger = log.WithField("component", "catalog")
	}
	if source == nil {
		source = NewSyntheticSource(nil)
	}
	return &Store{
		source: source,
		logger: logger,
		index:  make(map[string]int),
	}
}

// LoadInitial сбрасывает каталог и загружает первую страницу.
// Ошибка источника логируется, каталог остаётся пустым.
func (s *Store) LoadInitial(ctx context.Context) []domain.Pet {
	pets, err := s.source.Page(ctx, FirstPage)
	if err != nil {
		s.logger.WithError(err).Warn("initial catalog load failed")
		pets = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pets = s.pets[:0]
	s.index = make(map[string]int, len(pets))
	s.page = FirstPage
	s.exhausted = false
	s.appendLocked(pets)
	s.revision++

	return s.snapshotLocked()
}

// LoadMore загружает страницу currentPage+1 и возвращает добавленных питомцев.
// Никогда не завершается ошибкой: сбой источника даёт пустую страницу.
// Повторный вызов с уже загруженным currentPage ничего не добавляет.
func (s *Store) LoadMore(ctx context.Context, currentPage int) []domain.Pet {
	s.mu.RLock()
	loaded, exhausted := s.page, s.exhausted
	s.mu.RUnlock()

	if exhausted || currentPage != loaded {
		return nil
	}

	next := currentPage + 1
	pets, err := s.source.Page(ctx, next)
	if err != nil {
		s.logger.WithError(err).WithField("page", next).Warn("catalog page load failed")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Пока шёл запрос, страницу мог загрузить другой вызов.
	if s.page != currentPage {
		return nil
	}
	if len(pets) == 0 {
		s.exhausted = true
		s.logger.WithField("page", next).Debug("catalog exhausted")
		return nil
	}

	added := s.appendLocked(pets)
	s.page = next
	s.revision++
	return added
}

// appendLocked добавляет питомцев, пропуская уже известные идентификаторы.
func (s *Store) appendLocked(pets []domain.Pet) []domain.Pet {
	added := make([]domain.Pet, 0, len(pets))
	for _, pet := range pets {
		if _, ok := s.index[pet.ID]; ok {
			continue
		}
		s.index[pet.ID] = len(s.pets)
		s.pets = append(s.pets, pet)
		added = append(added, pet)
	}
	return added
}

func (s *Store) snapshotLocked() []domain.Pet {
	result := make([]domain.Pet, len(s.pets))
	copy(result, s.pets)
	return result
}

// Pets возвращает копию каталога в порядке загрузки.
func (s *Store) Pets() []domain.Pet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Lookup ищет питомца по идентификатору.
func (s *Store) Lookup(id string) (domain.Pet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.index[id]
	if !ok {
		return domain.Pet{}, false
	}
	return s.pets[idx], true
}

// Page возвращает номер последней загруженной страницы.
func (s *Store) Page() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page
}

// Exhausted сообщает, что источник вернул пустую страницу.
func (s *Store) Exhausted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exhausted
}

// Revision меняется при каждом изменении набора питомцев.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Snapshot возвращает согласованную пару (питомцы, ревизия).
func (s *Store) Snapshot() ([]domain.Pet, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(), s.revision
}
