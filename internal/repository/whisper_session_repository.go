package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/gm-relay/internal/domain"
)

// WhisperSessionRepository keeps the latest GM-to-player whisper route
// per player, so replies can find their way back.
type WhisperSessionRepository interface {
	Upsert(ctx context.Context, targetName, actorID, gmName string) error
	GetByTargetName(ctx context.Context, targetName string) (*domain.WhisperSession, error)
}

type whisperSessionRepository struct {
	pool *pgxpool.Pool
}

// NewWhisperSessionRepository instantiates repository.
func NewWhisperSessionRepository(pool *pgxpool.Pool) WhisperSessionRepository {
	return &whisperSessionRepository{pool: pool}
}

func (r *whisperSessionRepository) Upsert(ctx context.Context, targetName, actorID, gmName string) error {
	const query = `
        INSERT INTO gm_relay_whisper_session (target_name, actor_id, gm_name, updated_at)
        VALUES ($1,$2,$3,NOW())
        ON CONFLICT (target_name) DO UPDATE SET
            actor_id=EXCLUDED.actor_id,
            gm_name=EXCLUDED.gm_name,
            updated_at=NOW()`
	_, err := r.pool.Exec(ctx, query, strings.ToLower(targetName), actorID, gmName)
	return err
}

func (r *whisperSessionRepository) GetByTargetName(ctx context.Context, targetName string) (*domain.WhisperSession, error) {
	const query = `
        SELECT target_name, actor_id, gm_name, updated_at
        FROM gm_relay_whisper_session
        WHERE target_name=$1`
	var session domain.WhisperSession
	err := r.pool.QueryRow(ctx, query, strings.ToLower(targetName)).Scan(
		&session.TargetName,
		&session.ActorID,
		&session.GMName,
		&session.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}
