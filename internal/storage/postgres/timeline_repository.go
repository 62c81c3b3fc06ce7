package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

type timelineRepository struct {
	db *sql.DB
}

// NewTimelineRepository создаёт PostgreSQL-реализацию TimelineRepository.
func NewTimelineRepository(store *Store) domain.TimelineRepository {
	return &timelineRepository{db: store.DB()}
}

func (r *timelineRepository) Append(event domain.TimelineEvent) error {
	if strings.TrimSpace(event.CheckoutID) == "" {
		return domain.ErrCheckoutIDRequired
	}
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}

	ctx, cancel := withTimeout(context.Background())
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO timeline_events (checkout_id, event_type, reason, occurred_at)
		VALUES ($1,$2,$3,$4)
	`, event.CheckoutID, event.Type, event.Reason, event.Occurred.UTC()); err != nil {
		return fmt.Errorf("append timeline event: %w", err)
	}

	return nil
}

// List возвращает события оформления в порядке возникновения.
func (r *timelineRepository) List(checkoutID string) ([]domain.TimelineEvent, error) {
	ctx, cancel := withTimeout(context.Background())
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT checkout_id, event_type, reason, occurred_at
		FROM timeline_events
		WHERE checkout_id = $1
		ORDER BY occurred_at, id
	`, checkoutID)
	if err != nil {
		return nil, fmt.Errorf("list timeline events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.TimelineEvent, 0)
	for rows.Next() {
		var event domain.TimelineEvent
		if err := rows.Scan(&event.CheckoutID, &event.Type, &event.Reason, &event.Occurred); err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		event.Occurred = event.Occurred.UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline events: %w", err)
	}

	return events, nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
