package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"schedcore/internal/infra"
)

// EventRepository appends booking lifecycle events to an outbox table. A
// separate relay process drains it; this core only ever inserts.
type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

func (r *EventRepository) Append(ctx context.Context, bookingID uuid.UUID, eventType string, payload any, at time.Time) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return infra.WrapRepoErr(infra.KindDBFailure, "encode event payload", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO lifecycle_events (id, booking_id, event_type, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), bookingID, eventType, raw, at)
	if err != nil {
		return infra.WrapRepoErr(infra.KindDBFailure, "append lifecycle event", err)
	}
	return nil
}
