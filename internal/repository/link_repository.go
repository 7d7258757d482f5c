package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/gm-relay/internal/domain"
)

// LinkRepository stores account-to-platform identity links.
type LinkRepository interface {
	// UpsertSecret records a fresh one-time secret for an account,
	// replacing any earlier unconsumed secret.
	UpsertSecret(ctx context.Context, accountID uint32, gmName, secretHash string, expiresAt time.Time) error
	GetByAccount(ctx context.Context, accountID uint32) (*domain.AccountLink, error)
	GetByActor(ctx context.Context, actorID string) (*domain.AccountLink, error)
	// ListPendingSecrets returns links whose secret has been issued but
	// not yet consumed or expired.
	ListPendingSecrets(ctx context.Context, now time.Time) ([]domain.AccountLink, error)
	// BindActor consumes the secret: attaches the actor, marks the link
	// verified and clears the secret so it can never match again.
	BindActor(ctx context.Context, accountID uint32, actorID string) error
	Delete(ctx context.Context, accountID uint32) error
}

type linkRepository struct {
	pool *pgxpool.Pool
}

// NewLinkRepository instantiates repository.
func NewLinkRepository(pool *pgxpool.Pool) LinkRepository {
	return &linkRepository{pool: pool}
}

func (r *linkRepository) UpsertSecret(ctx context.Context, accountID uint32, gmName, secretHash string, expiresAt time.Time) error {
	const query = `
        INSERT INTO gm_relay_account_link (account_id, gm_name, secret_hash, secret_expires_at, updated_at)
        VALUES ($1,$2,$3,$4,NOW())
        ON CONFLICT (account_id) DO UPDATE SET
            gm_name=EXCLUDED.gm_name,
            secret_hash=EXCLUDED.secret_hash,
            secret_expires_at=EXCLUDED.secret_expires_at,
            updated_at=NOW()`
	_, err := r.pool.Exec(ctx, query, int64(accountID), gmName, secretHash, expiresAt)
	return err
}

func (r *linkRepository) GetByAccount(ctx context.Context, accountID uint32) (*domain.AccountLink, error) {
	const query = `
        SELECT account_id, gm_name, actor_id, verified, secret_hash, secret_expires_at, updated_at
        FROM gm_relay_account_link
        WHERE account_id=$1`
	return r.get(ctx, query, int64(accountID))
}

func (r *linkRepository) GetByActor(ctx context.Context, actorID string) (*domain.AccountLink, error) {
	const query = `
        SELECT account_id, gm_name, actor_id, verified, secret_hash, secret_expires_at, updated_at
        FROM gm_relay_account_link
        WHERE actor_id=$1`
	return r.get(ctx, query, actorID)
}

func (r *linkRepository) get(ctx context.Context, query string, arg any) (*domain.AccountLink, error) {
	var link domain.AccountLink
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&link.AccountID,
		&link.GMName,
		&link.ActorID,
		&link.Verified,
		&link.SecretHash,
		&link.SecretExpiresAt,
		&link.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) ListPendingSecrets(ctx context.Context, now time.Time) ([]domain.AccountLink, error) {
	const query = `
        SELECT account_id, gm_name, actor_id, verified, secret_hash, secret_expires_at, updated_at
        FROM gm_relay_account_link
        WHERE secret_hash IS NOT NULL AND secret_expires_at > $1`
	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AccountLink
	for rows.Next() {
		var link domain.AccountLink
		if err := rows.Scan(
			&link.AccountID,
			&link.GMName,
			&link.ActorID,
			&link.Verified,
			&link.SecretHash,
			&link.SecretExpiresAt,
			&link.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, link)
	}
	return result, rows.Err()
}

func (r *linkRepository) BindActor(ctx context.Context, accountID uint32, actorID string) error {
	const query = `
        UPDATE gm_relay_account_link SET
            actor_id=$2,
            verified=TRUE,
            secret_hash=NULL,
            secret_expires_at=NULL,
            updated_at=NOW()
        WHERE account_id=$1`
	_, err := r.pool.Exec(ctx, query, int64(accountID), actorID)
	return err
}

func (r *linkRepository) Delete(ctx context.Context, accountID uint32) error {
	const query = `DELETE FROM gm_relay_account_link WHERE account_id=$1`
	_, err := r.pool.Exec(ctx, query, int64(accountID))
	return err
}
