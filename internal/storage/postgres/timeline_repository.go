package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// timelineRepository хранит таймлайн заказа. Записи о создании заказа и смене
// статуса пишет orderRepository в своей транзакции; Append нужен для событий
// вне заказа (компенсация остатков).
type timelineRepository struct {
	db *sql.DB
}

func NewTimelineRepository(store *Store) domain.TimelineRepository {
	return &timelineRepository{db: store.DB()}
}

func (r *timelineRepository) Append(ctx context.Context, event domain.TimelineEvent) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return insertTimeline(ctx, r.db, event)
}

// List возвращает события заказа в порядке записи.
func (r *timelineRepository) List(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, type, reason, occurred
		FROM timeline_events
		WHERE order_id = $1
		ORDER BY occurred, id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list timeline of order %s: %w", orderID, err)
	}
	defer rows.Close()

	var events []domain.TimelineEvent
	for rows.Next() {
		var e domain.TimelineEvent
		if err := rows.Scan(&e.OrderID, &e.Type, &e.Reason, &e.Occurred); err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline events: %w", err)
	}
	if events == nil {
		events = []domain.TimelineEvent{}
	}
	return events, nil
}

// insertTimeline пишет события через пул или транзакцию заказа.
// Пустое время события заменяется текущим UTC.
func insertTimeline(ctx context.Context, db execer, events ...domain.TimelineEvent) error {
	for _, e := range events {
		occurred := e.Occurred
		if occurred.IsZero() {
			occurred = time.Now().UTC()
		}
		if _, err := db.ExecContext(ctx, `
			INSERT INTO timeline_events (order_id, type, reason, occurred)
			VALUES ($1, $2, $3, $4)
		`, e.OrderID, e.Type, e.Reason, occurred); err != nil {
			return fmt.Errorf("append %s to timeline of order %s: %w", e.Type, e.OrderID, err)
		}
	}
	return nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
