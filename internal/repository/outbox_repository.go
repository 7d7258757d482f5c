package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/gm-relay/internal/domain"
)

// OutboxRepository encapsulates the domain-to-platform event queue.
type OutboxRepository interface {
	Append(ctx context.Context, eventType domain.OutboxEventType, payload string) (int64, error)
	FetchPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkDispatched(ctx context.Context, id int64) error
	CountPending(ctx context.Context) (int64, error)
}

type outboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository instantiates repository.
func NewOutboxRepository(pool *pgxpool.Pool) OutboxRepository {
	return &outboxRepository{pool: pool}
}

func (r *outboxRepository) Append(ctx context.Context, eventType domain.OutboxEventType, payload string) (int64, error) {
	const query = `
        INSERT INTO gm_relay_outbox (event_type, payload)
        VALUES ($1,$2)
        RETURNING id`
	var id int64
	if err := r.pool.QueryRow(ctx, query, eventType, payload).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *outboxRepository) FetchPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	const query = `
        SELECT id, event_type, payload, dispatched, created_at, dispatched_at
        FROM gm_relay_outbox
        WHERE NOT dispatched
        ORDER BY id ASC
        LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOutboxEvents(rows)
}

func (r *outboxRepository) MarkDispatched(ctx context.Context, id int64) error {
	const query = `
        UPDATE gm_relay_outbox SET dispatched=TRUE, dispatched_at=NOW()
        WHERE id=$1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func (r *outboxRepository) CountPending(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM gm_relay_outbox WHERE NOT dispatched`
	var count int64
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanOutboxEvents(rows pgx.Rows) ([]domain.OutboxEvent, error) {
	var result []domain.OutboxEvent
	for rows.Next() {
		var event domain.OutboxEvent
		if err := rows.Scan(
			&event.ID,
			&event.EventType,
			&event.Payload,
			&event.Dispatched,
			&event.CreatedAt,
			&event.DispatchedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	return result, rows.Err()
}
