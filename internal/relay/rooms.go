package relay

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/gm-relay/internal/authz"
	"github.com/spec-kit/gm-relay/internal/config"
	"github.com/spec-kit/gm-relay/internal/domain"
	"github.com/spec-kit/gm-relay/internal/platform"
	"github.com/spec-kit/gm-relay/internal/repository"
)

// RoomManager drives the per-ticket channel lifecycle: a room is created
// once when a ticket first appears, receives updates while the ticket is
// open, and is archived exactly once when the ticket closes.
type RoomManager struct {
	cfg     config.TicketRoomsConfig
	guildID string
	gateway platform.Gateway
	rooms   repository.TicketRoomRepository
	roles   authz.RoleMap
	logger  *zap.Logger
}

// NewRoomManager instantiates a room manager.
func NewRoomManager(
	cfg config.TicketRoomsConfig,
	guildID string,
	gateway platform.Gateway,
	rooms repository.TicketRoomRepository,
	roles authz.RoleMap,
	logger *zap.Logger,
) *RoomManager {
	return &RoomManager{
		cfg:     cfg,
		guildID: guildID,
		gateway: gateway,
		rooms:   rooms,
		roles:   roles,
		logger:  logger,
	}
}

// Enabled reports whether room mirroring is on.
func (m *RoomManager) Enabled() bool {
	return m != nil && m.cfg.Enabled
}

// EnsureRoom returns the room for a ticket, creating it on first sight.
// Lookup happens before creation so replayed create events never spawn a
// second channel.
func (m *RoomManager) EnsureRoom(ctx context.Context, ticketID uint32, player string) (*domain.TicketRoom, error) {
	room, err := m.rooms.GetByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if room != nil {
		return room, nil
	}

	name := FormatRoomName(m.cfg.NameFormat, ticketID, player)
	channelID, err := m.gateway.CreateChannel(ctx, platform.ChannelCreate{
		GuildID:    m.guildID,
		Name:       name,
		ParentID:   m.cfg.CategoryID,
		Overwrites: m.overwrites(),
	})
	if err != nil {
		return nil, err
	}
	if err := m.rooms.Upsert(ctx, ticketID, channelID, m.guildID); err != nil {
		return nil, err
	}

	m.logger.Info("ticket room created",
		zap.Uint32("ticket_id", ticketID),
		zap.String("channel_id", channelID),
		zap.String("name", name),
	)
	return &domain.TicketRoom{TicketID: ticketID, ChannelID: channelID, GuildID: m.guildID}, nil
}

// overwrites builds the channel permission set. Explicitly configured
// roles win; otherwise every role in the role map may participate. With
// no roles at all the room stays open.
func (m *RoomManager) overwrites() []platform.PermissionOverwrite {
	roleIDs := m.cfg.AllowedRoles
	if len(roleIDs) == 0 {
		roleIDs = m.roles.RoleIDs()
	}
	if len(roleIDs) == 0 {
		return nil
	}

	overwrites := make([]platform.PermissionOverwrite, 0, len(roleIDs)+1)
	// The guild id doubles as the everyone role.
	overwrites = append(overwrites, platform.PermissionOverwrite{
		TargetID: m.guildID,
		Type:     platform.OverwriteTypeRole,
		Deny:     platform.PermissionViewChannel,
	})
	for _, roleID := range roleIDs {
		overwrites = append(overwrites, platform.PermissionOverwrite{
			TargetID: roleID,
			Type:     platform.OverwriteTypeRole,
			Allow:    platform.PermissionViewChannel | platform.PermissionCreateMessages,
		})
	}
	return overwrites
}

// PostUpdate mirrors a ticket event into its room. Archived rooms and
// tickets without a room are skipped silently.
func (m *RoomManager) PostUpdate(ctx context.Context, ticketID uint32, embed *platform.Embed) error {
	if !m.cfg.PostUpdates {
		return nil
	}
	room, err := m.rooms.GetByTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if room == nil || room.Archived() {
		return nil
	}
	_, err = m.gateway.SendMessage(ctx, platform.Message{ChannelID: room.ChannelID, Embed: embed})
	return err
}

// CloseRoom archives a ticket's room: a closing notice, a move to the
// archive category when one is configured, and the archived marker.
// Closing twice is a no-op.
func (m *RoomManager) CloseRoom(ctx context.Context, ticketID uint32) error {
	if !m.cfg.ArchiveOnClose {
		return nil
	}
	room, err := m.rooms.GetByTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if room == nil || room.Archived() {
		return nil
	}

	if _, err := m.gateway.SendMessage(ctx, platform.Message{
		ChannelID: room.ChannelID,
		Content:   "Ticket closed.",
	}); err != nil {
		m.logger.Warn("ticket room closing notice failed",
			zap.Uint32("ticket_id", ticketID), zap.Error(err))
	}
	if m.cfg.ArchiveCategoryID != "" {
		if err := m.gateway.MoveChannel(ctx, room.ChannelID, m.cfg.ArchiveCategoryID); err != nil {
			m.logger.Warn("ticket room archive move failed",
				zap.Uint32("ticket_id", ticketID), zap.Error(err))
		}
	}
	if err := m.rooms.MarkArchived(ctx, ticketID); err != nil {
		return err
	}

	m.logger.Info("ticket room archived", zap.Uint32("ticket_id", ticketID))
	return nil
}
