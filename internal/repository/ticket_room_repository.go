package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/gm-relay/internal/domain"
)

// TicketRoomRepository maps tickets to their platform rooms.
type TicketRoomRepository interface {
	Upsert(ctx context.Context, ticketID uint32, channelID, guildID string) error
	GetByTicket(ctx context.Context, ticketID uint32) (*domain.TicketRoom, error)
	GetByChannel(ctx context.Context, channelID string) (*domain.TicketRoom, error)
	MarkArchived(ctx context.Context, ticketID uint32) error
}

type ticketRoomRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRoomRepository instantiates repository.
func NewTicketRoomRepository(pool *pgxpool.Pool) TicketRoomRepository {
	return &ticketRoomRepository{pool: pool}
}

func (r *ticketRoomRepository) Upsert(ctx context.Context, ticketID uint32, channelID, guildID string) error {
	const query = `
        INSERT INTO gm_relay_ticket_room (ticket_id, channel_id, guild_id)
        VALUES ($1,$2,$3)
        ON CONFLICT (ticket_id) DO UPDATE SET
            channel_id=EXCLUDED.channel_id,
            guild_id=EXCLUDED.guild_id,
            archived_at=NULL`
	_, err := r.pool.Exec(ctx, query, int64(ticketID), channelID, guildID)
	return err
}

func (r *ticketRoomRepository) GetByTicket(ctx context.Context, ticketID uint32) (*domain.TicketRoom, error) {
	const query = `
        SELECT ticket_id, channel_id, guild_id, created_at, archived_at
        FROM gm_relay_ticket_room
        WHERE ticket_id=$1`
	return r.get(ctx, query, int64(ticketID))
}

func (r *ticketRoomRepository) GetByChannel(ctx context.Context, channelID string) (*domain.TicketRoom, error) {
	const query = `
        SELECT ticket_id, channel_id, guild_id, created_at, archived_at
        FROM gm_relay_ticket_room
        WHERE channel_id=$1`
	return r.get(ctx, query, channelID)
}

func (r *ticketRoomRepository) get(ctx context.Context, query string, arg any) (*domain.TicketRoom, error) {
	var room domain.TicketRoom
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&room.TicketID,
		&room.ChannelID,
		&room.GuildID,
		&room.CreatedAt,
		&room.ArchivedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *ticketRoomRepository) MarkArchived(ctx context.Context, ticketID uint32) error {
	const query = `
        UPDATE gm_relay_ticket_room SET archived_at=NOW()
        WHERE ticket_id=$1 AND archived_at IS NULL`
	_, err := r.pool.Exec(ctx, query, int64(ticketID))
	return err
}
