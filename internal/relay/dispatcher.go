package relay

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/gm-relay/internal/domain"
	"github.com/spec-kit/gm-relay/internal/observability"
	"github.com/spec-kit/gm-relay/internal/payload"
	"github.com/spec-kit/gm-relay/internal/platform"
	"github.com/spec-kit/gm-relay/internal/repository"
)

const threadAutoArchiveMinutes = 1440

// Dispatcher drains the outbox toward the chat platform. One cycle
// fetches a batch in id order, renders each event and delivers it. Rows
// are marked dispatched even when delivery fails: the queue must not
// wedge on a single poisoned or undeliverable event.
type Dispatcher struct {
	outbox          repository.OutboxRepository
	gateway         platform.Gateway
	rooms           *RoomManager
	cache           *ThreadCache
	metrics         *observability.Metrics
	logger          *zap.Logger
	announceChannel string
	batchSize       int
}

// NewDispatcher instantiates a dispatcher.
func NewDispatcher(
	outbox repository.OutboxRepository,
	gateway platform.Gateway,
	rooms *RoomManager,
	cache *ThreadCache,
	metrics *observability.Metrics,
	logger *zap.Logger,
	announceChannel string,
	batchSize int,
) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 25
	}
	return &Dispatcher{
		outbox:          outbox,
		gateway:         gateway,
		rooms:           rooms,
		cache:           cache,
		metrics:         metrics,
		logger:          logger,
		announceChannel: announceChannel,
		batchSize:       batchSize,
	}
}

// RunCycle performs one poll of the outbox. It returns the number of
// events handled.
func (d *Dispatcher) RunCycle(ctx context.Context) (int, error) {
	events, err := d.outbox.FetchPending(ctx, d.batchSize)
	if err != nil {
		d.metrics.RecordError("dispatcher")
		return 0, err
	}

	for _, event := range events {
		d.dispatch(ctx, event)
		if err := d.outbox.MarkDispatched(ctx, event.ID); err != nil {
			d.metrics.RecordError("dispatcher")
			return 0, err
		}
		d.metrics.RecordDispatched(string(event.EventType))
	}
	return len(events), nil
}

func (d *Dispatcher) dispatch(ctx context.Context, event domain.OutboxEvent) {
	embed, ok := EmbedForEvent(event.EventType, event.Payload)

	msg := platform.Message{ChannelID: d.announceChannel}
	if ok {
		msg.Embed = embed
	} else {
		msg.Content = FallbackContent(event.EventType, event.Payload)
	}

	messageID, err := d.gateway.SendMessage(ctx, msg)
	if err != nil {
		d.metrics.RecordError("dispatcher")
		d.logger.Warn("outbox delivery failed",
			zap.Int64("event_id", event.ID),
			zap.String("event_type", string(event.EventType)),
			zap.Error(err),
		)
		return
	}

	if event.EventType.IsTicketEvent() {
		d.mirrorTicketEvent(ctx, event, embed, messageID)
	}
}

// mirrorTicketEvent keeps the per-ticket surfaces in step with the
// announce channel: a thread on create, posts into thread and room while
// open, archival on close.
func (d *Dispatcher) mirrorTicketEvent(ctx context.Context, event domain.OutboxEvent, embed *platform.Embed, messageID string) {
	ticketID, ok := TicketIDFromEvent(event.Payload)
	if !ok {
		return
	}
	block, _ := payload.ExtractBlock(event.Payload, "ticket")
	player := payload.StringOr(block, "player", "unknown")

	switch event.EventType {
	case domain.EventTicketCreate:
		name := FormatRoomName("ticket-{id}-{player}", ticketID, player)
		threadID, err := d.gateway.CreateThreadFromMessage(ctx, d.announceChannel, messageID, name, threadAutoArchiveMinutes)
		if err != nil {
			d.metrics.RecordError("dispatcher")
			d.logger.Warn("ticket thread creation failed",
				zap.Uint32("ticket_id", ticketID), zap.Error(err))
		} else {
			d.cache.PutThread(ctx, threadID, ticketID)
		}
		if d.rooms.Enabled() {
			if _, err := d.rooms.EnsureRoom(ctx, ticketID, player); err != nil {
				d.metrics.RecordError("dispatcher")
				d.logger.Warn("ticket room creation failed",
					zap.Uint32("ticket_id", ticketID), zap.Error(err))
			}
		}

	case domain.EventTicketClose, domain.EventTicketResolve:
		d.postToThread(ctx, ticketID, embed)
		if threadID, found := d.cache.ThreadForTicket(ctx, ticketID); found {
			if err := d.gateway.EditThread(ctx, threadID, true, true); err != nil {
				d.logger.Warn("ticket thread archive failed",
					zap.Uint32("ticket_id", ticketID), zap.Error(err))
			}
		}
		if d.rooms.Enabled() {
			if err := d.rooms.CloseRoom(ctx, ticketID); err != nil {
				d.metrics.RecordError("dispatcher")
				d.logger.Warn("ticket room close failed",
					zap.Uint32("ticket_id", ticketID), zap.Error(err))
			}
		}
		d.cache.ForgetTicket(ctx, ticketID)

	default:
		d.postToThread(ctx, ticketID, embed)
		if d.rooms.Enabled() {
			if err := d.rooms.PostUpdate(ctx, ticketID, embed); err != nil {
				d.logger.Warn("ticket room update failed",
					zap.Uint32("ticket_id", ticketID), zap.Error(err))
			}
		}
	}
}

func (d *Dispatcher) postToThread(ctx context.Context, ticketID uint32, embed *platform.Embed) {
	if embed == nil {
		return
	}
	threadID, found := d.cache.ThreadForTicket(ctx, ticketID)
	if !found {
		return
	}
	if _, err := d.gateway.SendMessage(ctx, platform.Message{ChannelID: threadID, Embed: embed}); err != nil {
		d.logger.Warn("ticket thread update failed",
			zap.Uint32("ticket_id", ticketID), zap.Error(err))
	}
}
