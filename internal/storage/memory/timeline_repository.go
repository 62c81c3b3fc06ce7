package memory

import (
	"sort"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

// timelineRepositoryInMemory хранит события оформления в памяти (для разработки/тестов).
type timelineRepositoryInMemory struct {
	mu     sync.RWMutex
	events map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineRepositoryInMemory{events: make(map[string][]domain.TimelineEvent)}
}

// Append добавляет событие; события одного оформления упорядочены по времени.
func (r *timelineRepositoryInMemory) Append(event domain.TimelineEvent) error {
	if strings.TrimSpace(event.CheckoutID) == "" {
		return domain.ErrCheckoutIDRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	events := append(r.events[event.CheckoutID], event)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Occurred.Before(events[j].Occurred)
	})
	r.events[event.CheckoutID] = events

	return nil
}

// List возвращает копию событий оформления.
func (r *timelineRepositoryInMemory) List(checkoutID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.events[checkoutID]
	result := make([]domain.TimelineEvent, len(events))
	copy(result, events)
	return result, nil
}

var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
