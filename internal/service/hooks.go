package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/gm-relay/internal/config"
	"github.com/spec-kit/gm-relay/internal/domain"
	"github.com/spec-kit/gm-relay/internal/game"
	"github.com/spec-kit/gm-relay/internal/payload"
	"github.com/spec-kit/gm-relay/internal/repository"
)

// Hooks is the game-facing write surface of the relay. The game server
// calls these from its ticket and chat paths; each call becomes at most
// one outbox row, so a platform outage never blocks the game loop.
type Hooks struct {
	cfg      config.RelayConfig
	outbox   repository.OutboxRepository
	sessions repository.WhisperSessionRepository
	tickets  TicketSource
	logger   *zap.Logger
}

// TicketSource resolves a player's current ticket; may be nil when the
// game core is not attached.
type TicketSource interface {
	TicketByPlayer(ctx context.Context, playerName string) (*game.Ticket, error)
}

// NewHooks instantiates hooks.
func NewHooks(
	cfg config.RelayConfig,
	outbox repository.OutboxRepository,
	sessions repository.WhisperSessionRepository,
	tickets TicketSource,
	logger *zap.Logger,
) *Hooks {
	return &Hooks{cfg: cfg, outbox: outbox, sessions: sessions, tickets: tickets, logger: logger}
}

// TicketCreated enqueues a ticket creation event.
func (h *Hooks) TicketCreated(ctx context.Context, ticket *game.Ticket) error {
	return h.enqueueTicket(ctx, domain.EventTicketCreate, ticket)
}

// TicketUpdated enqueues a ticket text update event.
func (h *Hooks) TicketUpdated(ctx context.Context, ticket *game.Ticket) error {
	return h.enqueueTicket(ctx, domain.EventTicketUpdate, ticket)
}

// TicketStatusChanged enqueues a status transition event.
func (h *Hooks) TicketStatusChanged(ctx context.Context, ticket *game.Ticket) error {
	return h.enqueueTicket(ctx, domain.EventTicketStatus, ticket)
}

// TicketClosed enqueues a ticket close event.
func (h *Hooks) TicketClosed(ctx context.Context, ticket *game.Ticket) error {
	return h.enqueueTicket(ctx, domain.EventTicketClose, ticket)
}

// TicketResolved enqueues a ticket resolution event.
func (h *Hooks) TicketResolved(ctx context.Context, ticket *game.Ticket) error {
	return h.enqueueTicket(ctx, domain.EventTicketResolve, ticket)
}

func (h *Hooks) enqueueTicket(ctx context.Context, event domain.OutboxEventType, ticket *game.Ticket) error {
	if !h.enabled() || ticket == nil {
		return nil
	}
	envelope := payload.Envelope(string(event), "ticket", ticketBody(ticket), time.Now().Unix())
	if _, err := h.outbox.Append(ctx, event, envelope); err != nil {
		h.logger.Error("ticket event enqueue failed",
			zap.String("event", string(event)),
			zap.Uint32("ticket_id", ticket.ID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// PlayerWhisper intercepts a player's whisper when its target is a GM
// name with an active relay session. It returns true when the message
// was captured; the game should then suppress normal delivery.
func (h *Hooks) PlayerWhisper(ctx context.Context, playerName, targetName, message string) (bool, error) {
	if !h.enabled() || !h.cfg.WhisperEnabled {
		return false, nil
	}
	session, err := h.sessions.GetByTargetName(ctx, playerName)
	if err != nil {
		return false, err
	}
	if session == nil || !strings.EqualFold(session.GMName, targetName) {
		return false, nil
	}

	body := payload.NewObject().
		Str("player", playerName).
		Str("gmName", session.GMName).
		Str("target", targetName).
		Str("actor", session.ActorID).
		Str("message", message)
	if h.tickets != nil {
		if ticket, terr := h.tickets.TicketByPlayer(ctx, playerName); terr == nil && ticket != nil && !ticket.Closed {
			body.Uint("ticketId", uint64(ticket.ID))
		}
	}
	envelope := payload.Envelope(string(domain.EventPlayerWhisper), "whisper", body, time.Now().Unix())
	if _, err := h.outbox.Append(ctx, domain.EventPlayerWhisper, envelope); err != nil {
		return false, err
	}
	return true, nil
}

func (h *Hooks) enabled() bool {
	return h.cfg.Enabled && h.cfg.OutboxEnabled
}

func ticketBody(t *game.Ticket) *payload.Object {
	return payload.NewObject().
		Uint("id", uint64(t.ID)).
		Str("player", t.PlayerName).
		Str("message", t.Message).
		Str("comment", t.Comment).
		Str("response", t.Response).
		Str("assignedTo", t.AssignedTo).
		Uint("assignedGuid", t.AssignedToGUID).
		Str("status", t.Status).
		Flag("closed", t.Closed).
		Uint("escalation", uint64(t.Escalation)).
		Flag("viewed", t.Viewed).
		Flag("needResponse", t.NeedResponse).
		Flag("needMoreHelp", t.NeedMoreHelp).
		Int("createTime", t.CreateTime).
		Int("lastModified", t.LastModified).
		Uint("closedBy", t.ClosedByGUID).
		Uint("resolvedBy", t.ResolvedByGUID).
		Uint("mapId", uint64(t.MapID)).
		Float("x", t.X).
		Float("y", t.Y).
		Float("z", t.Z)
}
