package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/gm-relay/internal/domain"
)

// AuditRepository records every processed relay action.
type AuditRepository interface {
	Append(ctx context.Context, record domain.AuditRecord) error
	ListRecent(ctx context.Context, limit int) ([]domain.AuditRecord, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository instantiates repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Append(ctx context.Context, record domain.AuditRecord) error {
	const query = `
        INSERT INTO gm_relay_audit (actor_id, account_id, action, category, status, detail, payload)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.pool.Exec(ctx, query,
		record.ActorID,
		int64(record.AccountID),
		record.Action,
		record.Category,
		record.Status,
		record.Detail,
		record.Payload,
	)
	return err
}

func (r *auditRepository) ListRecent(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	const query = `
        SELECT id, actor_id, account_id, action, category, status, detail, payload, created_at
        FROM gm_relay_audit
        ORDER BY id DESC
        LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditRecord
	for rows.Next() {
		var record domain.AuditRecord
		if err := rows.Scan(
			&record.ID,
			&record.ActorID,
			&record.AccountID,
			&record.Action,
			&record.Category,
			&record.Status,
			&record.Detail,
			&record.Payload,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}
