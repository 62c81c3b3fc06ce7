package storefront

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/petshop/internal/cart"
	"github.com/vladislavdragonenkov/petshop/internal/catalog"
	"github.com/vladislavdragonenkov/petshop/internal/domain"
	"github.com/vladislavdragonenkov/petshop/internal/metrics"
	"github.com/vladislavdragonenkov/petshop/internal/service/checkout"
	"github.com/vladislavdragonenkov/petshop/internal/session"
)

// Config описывает общие зависимости всех сессий.
type Config struct {
	// NewSource создаёт источник страниц каталога для новой сессии.
	NewSource func() catalog.PageSource

	Pets     domain.PetRepository
	Payments domain.PaymentMethodRepository
	Orders   domain.OrderRepository

	Outbox    domain.OutboxRepository
	Timeline  domain.TimelineRepository
	Publisher checkout.EventPublisher
	Metrics   *metrics.CheckoutMetrics
	Logger    *log.Entry
}

// Registry хранит витрины по идентификатору сессии.
type Registry struct {
	cfg    Config
	logger *log.Entry
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Storefront
}

// NewRegistry создаёт пустой реестр.
func NewRegistry(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = log.WithField("component", "storefront")
	}
	if cfg.NewSource == nil {
		cfg.NewSource = func() catalog.PageSource { return catalog.NewSyntheticSource(nil) }
	}
	return &Registry{
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Storefront),
	}
}

// Open создаёт сессию и загружает первую страницу каталога.
func (r *Registry) Open(ctx context.Context) *Storefront {
	id := uuid.NewString()
	logger := r.logger.WithField("session_id", id)

	catalogStore := catalog.NewStore(r.cfg.NewSource(), logger.WithField("component", "catalog"))
	cartStore := cart.NewStore()
	sessionStore := session.NewStore()

	opts := []checkout.Option{
		checkout.WithLogger(logger.WithField("component", "checkout")),
		checkout.WithOutbox(r.cfg.Outbox),
		checkout.WithTimeline(r.cfg.Timeline),
		checkout.WithMetrics(r.cfg.Metrics),
	}
	if r.cfg.Publisher != nil {
		opts = append(opts, checkout.WithEventPublisher(r.cfg.Publisher))
	}

	sf := &Storefront{
		id:      id,
		catalog: catalogStore,
		view:    catalog.NewViewModel(catalogStore),
		cart:    cartStore,
		session: sessionStore,
		checkout: checkout.NewWorkflow(checkout.Dependencies{
			Session:  sessionStore,
			Cart:     cartStore,
			Catalog:  catalogStore,
			Payments: r.cfg.Payments,
			Orders:   r.cfg.Orders,
			Pets:     r.cfg.Pets,
		}, opts...),
		pets:   r.cfg.Pets,
		orders: r.cfg.Orders,
		logger: logger,
	}
	sf.touch(r.now())

	catalogStore.LoadInitial(ctx)

	r.mu.Lock()
	r.sessions[id] = sf
	r.mu.Unlock()

	logger.Debug("storefront session opened")
	return sf
}

// Get возвращает витрину сессии.
func (r *Registry) Get(id string) (*Storefront, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrSessionNotFound
	}

	// touch под блокировкой реестра, чтобы Sweep не закрыл только что выданную сессию.
	r.mu.RLock()
	defer r.mu.RUnlock()
	sf, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	sf.touch(r.now())
	return sf, nil
}

// Close удаляет сессию. Незавершённое оформление покидается.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	sf, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		sf.checkout.Leave()
	}
	return ok
}

// Len возвращает количество открытых сессий.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep закрывает сессии без обращений с момента before.
func (r *Registry) Sweep(before time.Time) int {
	r.mu.RLock()
	var stale []string
	for id, sf := range r.sessions {
		if sf.idleSince().Before(before) {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	closed := 0
	for _, id := range stale {
		if r.closeIfIdle(id, before) {
			closed++
		}
	}
	if closed > 0 {
		r.logger.WithField("closed", closed).Info("idle storefront sessions closed")
	}
	return closed
}

// closeIfIdle повторно проверяет простой под блокировкой: сессия,
// к которой обратились после сканирования, остаётся открытой.
func (r *Registry) closeIfIdle(id string, before time.Time) bool {
	r.mu.Lock()
	sf, ok := r.sessions[id]
	if !ok || !sf.idleSince().Before(before) {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	sf.checkout.Leave()
	return true
}

// RunJanitor периодически закрывает сессии, простаивающие дольше idleTTL.
func (r *Registry) RunJanitor(ctx context.Context, interval, idleTTL time.Duration) {
	if interval <= 0 || idleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(r.now().Add(-idleTTL))
		}
	}
}
