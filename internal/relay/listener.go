package relay

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/gm-relay/internal/authz"
	"github.com/spec-kit/gm-relay/internal/domain"
	"github.com/spec-kit/gm-relay/internal/game"
	"github.com/spec-kit/gm-relay/internal/platform"
	"github.com/spec-kit/gm-relay/internal/repository"
)

// Slash command and option names exposed on the platform.
const (
	CommandAuth         = "gm-auth"
	CommandRun          = "gm-command"
	CommandWhisper      = "gm-whisper"
	CommandTicketAssign = "gm-ticket-assign"
)

// SlashCommands describes the commands the bot registers on its guild.
func SlashCommands() []platform.SlashCommand {
	return []platform.SlashCommand{
		{
			Name:        CommandAuth,
			Description: "Link your game account with a one-time secret",
			Options: []platform.CommandOption{
				{Name: "secret", Description: "Secret shown in-game", Required: true},
			},
		},
		{
			Name:        CommandRun,
			Description: "Run a GM command on the game server",
			Options: []platform.CommandOption{
				{Name: "command", Description: "Command text, e.g. .ticket list", Required: true},
			},
		},
		{
			Name:        CommandWhisper,
			Description: "Whisper an online player",
			Options: []platform.CommandOption{
				{Name: "player", Description: "Player character name", Required: true},
				{Name: "message", Description: "Message to send", Required: true},
			},
		},
		{
			Name:        CommandTicketAssign,
			Description: "Assign a ticket to a GM",
			Options: []platform.CommandOption{
				{Name: "ticket", Description: "Ticket id", Required: true},
				{Name: "gm", Description: "GM character name", Required: true},
			},
		},
	}
}

// Listener turns inbound platform traffic into inbox rows. It never
// touches the game world directly; every accepted interaction becomes a
// queued action and the reply only acknowledges the enqueue.
type Listener struct {
	guildID  string
	inbox    repository.InboxRepository
	links    repository.LinkRepository
	resolver *authz.Resolver
	roles    authz.RoleMap
	cache    *ThreadCache
	gateway  platform.Gateway
	server   game.Server
	logger   *zap.Logger
}

// NewListener instantiates a listener.
func NewListener(
	guildID string,
	inbox repository.InboxRepository,
	links repository.LinkRepository,
	resolver *authz.Resolver,
	roles authz.RoleMap,
	cache *ThreadCache,
	gateway platform.Gateway,
	server game.Server,
	logger *zap.Logger,
) *Listener {
	return &Listener{
		guildID:  guildID,
		inbox:    inbox,
		links:    links,
		resolver: resolver,
		roles:    roles,
		cache:    cache,
		gateway:  gateway,
		server:   server,
		logger:   logger,
	}
}

// OnInteraction handles a slash command. The returned string is the
// private acknowledgement shown to the invoking actor.
func (l *Listener) OnInteraction(ctx context.Context, in platform.Interaction) (string, error) {
	if l.guildID != "" && in.GuildID != l.guildID {
		return "This bot is not available here.", nil
	}

	switch in.Command {
	case CommandAuth:
		secret := strings.TrimSpace(in.Options["secret"])
		if secret == "" {
			return "A secret is required.", nil
		}
		if _, err := l.inbox.Append(ctx, in.ActorID, domain.ActionAuth, secret); err != nil {
			return "", err
		}
		return "Link request queued; you will be linked shortly.", nil

	case CommandRun:
		command := strings.TrimSpace(in.Options["command"])
		if command == "" {
			return "A command is required.", nil
		}
		if !l.resolver.Allowed(command) {
			return "That command cannot be relayed.", nil
		}
		category := authz.Category(authz.Root(command))
		if !l.roles.Allows(in.RoleIDs, category) {
			return fmt.Sprintf("You lack the role for %s commands.", category), nil
		}
		if _, err := l.inbox.Append(ctx, in.ActorID, domain.ActionCommand, command); err != nil {
			return "", err
		}
		return "Command queued.", nil

	case CommandWhisper:
		player := strings.TrimSpace(in.Options["player"])
		message := strings.TrimSpace(in.Options["message"])
		if player == "" || message == "" {
			return "Player and message are required.", nil
		}
		if !l.roles.Allows(in.RoleIDs, authz.CategoryWhisper) {
			return "You lack the role for whispers.", nil
		}
		// GM name is left blank; the processor fills it from the link.
		payload := fmt.Sprintf("%s||%s", player, message)
		if _, err := l.inbox.Append(ctx, in.ActorID, domain.ActionWhisper, payload); err != nil {
			return "", err
		}
		return fmt.Sprintf("Whisper to %s queued.", player), nil

	case CommandTicketAssign:
		ticket := strings.TrimSpace(in.Options["ticket"])
		gm := strings.TrimSpace(in.Options["gm"])
		if _, err := strconv.ParseUint(ticket, 10, 32); err != nil || gm == "" {
			return "A numeric ticket id and a GM name are required.", nil
		}
		if !l.roles.Allows(in.RoleIDs, authz.CategoryTicket) {
			return "You lack the role for ticket commands.", nil
		}
		payload := fmt.Sprintf("%s|%s", ticket, gm)
		if _, err := l.inbox.Append(ctx, in.ActorID, domain.ActionTicketAssign, payload); err != nil {
			return "", err
		}
		return fmt.Sprintf("Assignment of ticket %s queued.", ticket), nil
	}

	return "Unknown command.", nil
}

// OnThreadMessage turns a message in a ticket thread into a whisper to
// the ticket's owner. Messages in unrelated threads are ignored.
func (l *Listener) OnThreadMessage(ctx context.Context, msg platform.ThreadMessage) error {
	ticketID, found := l.cache.TicketForThread(ctx, msg.ThreadID)
	if !found {
		if thread, err := l.gateway.GetThread(ctx, msg.ThreadID); err == nil && thread != nil {
			ticketID, found = ParseTicketIDFromThreadName(thread.Name)
		}
	}
	if !found {
		return nil
	}

	link, err := l.links.GetByActor(ctx, msg.ActorID)
	if err != nil {
		return err
	}
	if link == nil || !link.Verified {
		l.notify(ctx, msg.ThreadID, "Link your game account with /"+CommandAuth+" before replying here.")
		return nil
	}

	ticket, err := l.server.TicketByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket == nil || ticket.Closed {
		l.notify(ctx, msg.ThreadID, "This ticket is closed; replies are no longer relayed.")
		return nil
	}

	payload := fmt.Sprintf("%s|%s|%s", ticket.PlayerName, link.GMName, msg.Content)
	if _, err := l.inbox.Append(ctx, msg.ActorID, domain.ActionWhisper, payload); err != nil {
		return err
	}
	return nil
}

func (l *Listener) notify(ctx context.Context, threadID, content string) {
	if _, err := l.gateway.SendMessage(ctx, platform.Message{ChannelID: threadID, Content: content}); err != nil {
		l.logger.Warn("thread notice failed", zap.String("thread_id", threadID), zap.Error(err))
	}
}
