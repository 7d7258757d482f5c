package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/gm-relay/internal/domain"
)

// InboxRepository encapsulates the platform-to-domain action queue.
type InboxRepository interface {
	Append(ctx context.Context, actorID string, action domain.InboxActionKind, payload string) (int64, error)
	// FetchPending returns pending actions in id order. When
	// processingTimeout is positive, processing rows whose claim is
	// older than the timeout are returned as well so a crashed cycle's
	// work is eventually retried.
	FetchPending(ctx context.Context, limit int, processingTimeout time.Duration) ([]domain.InboxAction, error)
	// MarkProcessing claims a row, stamping the claim time. It succeeds
	// for pending rows and, when requeueAfter is positive, for
	// processing rows whose previous claim has gone stale. Reports
	// whether this caller won the transition.
	MarkProcessing(ctx context.Context, id int64, requeueAfter time.Duration) (bool, error)
	MarkResult(ctx context.Context, id int64, status, result string) error
	CountPending(ctx context.Context) (int64, error)
}

type inboxRepository struct {
	pool *pgxpool.Pool
}

// NewInboxRepository instantiates repository.
func NewInboxRepository(pool *pgxpool.Pool) InboxRepository {
	return &inboxRepository{pool: pool}
}

func (r *inboxRepository) Append(ctx context.Context, actorID string, action domain.InboxActionKind, payload string) (int64, error) {
	const query = `
        INSERT INTO gm_relay_inbox (actor_id, action, payload)
        VALUES ($1,$2,$3)
        RETURNING id`
	var id int64
	if err := r.pool.QueryRow(ctx, query, actorID, action, payload).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *inboxRepository) FetchPending(ctx context.Context, limit int, processingTimeout time.Duration) ([]domain.InboxAction, error) {
	const query = `
        SELECT id, actor_id, action, payload, state, status, result, created_at, processing_started_at, processed_at
        FROM gm_relay_inbox
        WHERE state = 'pending'
           OR ($2 > 0 AND state = 'processing' AND processing_started_at < NOW() - make_interval(secs => $2))
        ORDER BY id ASC
        LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit, processingTimeout.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInboxActions(rows)
}

func (r *inboxRepository) MarkProcessing(ctx context.Context, id int64, requeueAfter time.Duration) (bool, error) {
	const query = `
        UPDATE gm_relay_inbox SET state='processing', processing_started_at=NOW()
        WHERE id=$1 AND (state='pending'
           OR ($2 > 0 AND state='processing' AND processing_started_at < NOW() - make_interval(secs => $2)))`
	cmd, err := r.pool.Exec(ctx, query, id, requeueAfter.Seconds())
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *inboxRepository) MarkResult(ctx context.Context, id int64, status, result string) error {
	const query = `
        UPDATE gm_relay_inbox SET state='done', status=$2, result=$3, processed_at=NOW()
        WHERE id=$1`
	_, err := r.pool.Exec(ctx, query, id, status, result)
	return err
}

func (r *inboxRepository) CountPending(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM gm_relay_inbox WHERE state <> 'done'`
	var count int64
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanInboxActions(rows pgx.Rows) ([]domain.InboxAction, error) {
	var result []domain.InboxAction
	for rows.Next() {
		var action domain.InboxAction
		if err := rows.Scan(
			&action.ID,
			&action.ActorID,
			&action.Action,
			&action.Payload,
			&action.State,
			&action.Status,
			&action.Result,
			&action.CreatedAt,
			&action.ProcessingStartedAt,
			&action.ProcessedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, action)
	}
	return result, rows.Err()
}
