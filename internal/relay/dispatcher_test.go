package relay

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/gm-relay/internal/config"
	"github.com/spec-kit/gm-relay/internal/domain"
	"github.com/spec-kit/gm-relay/internal/observability"
	"github.com/spec-kit/gm-relay/internal/payload"
)

const announceChannel = "chan-announce"

type dispatcherFixture struct {
	outbox     *fakeOutbox
	gateway    *fakeGateway
	rooms      *fakeRooms
	cache      *ThreadCache
	dispatcher *Dispatcher
}

func newDispatcherFixture(t *testing.T, roomCfg config.TicketRoomsConfig) *dispatcherFixture {
	t.Helper()
	outbox := &fakeOutbox{}
	gateway := newFakeGateway()
	rooms := newFakeRooms()
	cache := NewThreadCache(nil)
	manager := NewRoomManager(roomCfg, "guild-1", gateway, rooms, nil, zap.NewNop())
	dispatcher := NewDispatcher(outbox, gateway, manager, cache,
		observability.NewMetrics(), zap.NewNop(), announceChannel, 25)
	return &dispatcherFixture{
		outbox:     outbox,
		gateway:    gateway,
		rooms:      rooms,
		cache:      cache,
		dispatcher: dispatcher,
	}
}

func enqueueTicketEvent(t *testing.T, outbox *fakeOutbox, event domain.OutboxEventType, id uint32, player string) {
	t.Helper()
	body := payload.NewObject().Uint("id", uint64(id)).Str("player", player).Str("message", "help")
	_, err := outbox.Append(context.Background(), event, ticketEnvelope(event, body))
	require.NoError(t, err)
}

func TestDispatcherTicketCreateFlow(t *testing.T) {
	fx := newDispatcherFixture(t, config.TicketRoomsConfig{
		Enabled:        true,
		NameFormat:     "ticket-{id}-{player}",
		PostUpdates:    true,
		ArchiveOnClose: true,
	})
	ctx := context.Background()
	enqueueTicketEvent(t, fx.outbox, domain.EventTicketCreate, 42, "Playerone")

	handled, err := fx.dispatcher.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, handled)

	// Announce message carries the embed.
	announce := fx.gateway.messagesTo(announceChannel)
	require.Len(t, announce, 1)
	require.NotNil(t, announce[0].Embed)
	assert.Equal(t, "Ticket #42 opened", announce[0].Embed.Title)

	// The thread is created off the announce message and cached.
	require.Len(t, fx.gateway.threads, 1)
	assert.Equal(t, "ticket-42-playerone", fx.gateway.threads[0].name)
	cachedID, found := fx.cache.ThreadForTicket(ctx, 42)
	require.True(t, found)
	assert.Equal(t, fx.gateway.threads[0].id, cachedID)

	// The room exists and the event is gone from the queue.
	room, err := fx.rooms.GetByTicket(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, room)
	pending, _ := fx.outbox.CountPending(ctx)
	assert.Zero(t, pending)
}

func TestDispatcherCreateIsIdempotentPerTicket(t *testing.T) {
	fx := newDispatcherFixture(t, config.TicketRoomsConfig{
		Enabled:    true,
		NameFormat: "ticket-{id}-{player}",
	})
	ctx := context.Background()
	enqueueTicketEvent(t, fx.outbox, domain.EventTicketCreate, 42, "Playerone")
	enqueueTicketEvent(t, fx.outbox, domain.EventTicketCreate, 42, "Playerone")

	_, err := fx.dispatcher.RunCycle(ctx)
	require.NoError(t, err)

	require.Len(t, fx.gateway.channels, 1, "replayed create must not spawn a second room")
}

func TestDispatcherCloseArchivesThreadAndRoom(t *testing.T) {
	fx := newDispatcherFixture(t, config.TicketRoomsConfig{
		Enabled:           true,
		NameFormat:        "ticket-{id}-{player}",
		PostUpdates:       true,
		ArchiveOnClose:    true,
		ArchiveCategoryID: "cat-archive",
	})
	ctx := context.Background()
	enqueueTicketEvent(t, fx.outbox, domain.EventTicketCreate, 42, "Playerone")
	_, err := fx.dispatcher.RunCycle(ctx)
	require.NoError(t, err)
	threadID, _ := fx.cache.ThreadForTicket(ctx, 42)
	room, _ := fx.rooms.GetByTicket(ctx, 42)

	enqueueTicketEvent(t, fx.outbox, domain.EventTicketClose, 42, "Playerone")
	_, err = fx.dispatcher.RunCycle(ctx)
	require.NoError(t, err)

	edit, ok := fx.gateway.edits[threadID]
	require.True(t, ok)
	assert.True(t, edit[0], "thread archived")
	assert.True(t, edit[1], "thread locked")

	closed, _ := fx.rooms.GetByTicket(ctx, 42)
	require.NotNil(t, closed)
	assert.True(t, closed.Archived())
	assert.Equal(t, "cat-archive", fx.gateway.moves[room.ChannelID])

	// Closing notice lands in the room.
	roomMessages := fx.gateway.messagesTo(room.ChannelID)
	require.NotEmpty(t, roomMessages)
	assert.Equal(t, "Ticket closed.", roomMessages[len(roomMessages)-1].Content)

	// The binding is gone.
	_, found := fx.cache.ThreadForTicket(ctx, 42)
	assert.False(t, found)

	// A second close is a no-op for the room.
	moves := len(fx.gateway.moves)
	enqueueTicketEvent(t, fx.outbox, domain.EventTicketClose, 42, "Playerone")
	_, err = fx.dispatcher.RunCycle(ctx)
	require.NoError(t, err)
	assert.Len(t, fx.gateway.moves, moves)
}

func TestDispatcherMalformedPayloadFallsBack(t *testing.T) {
	fx := newDispatcherFixture(t, config.TicketRoomsConfig{})
	ctx := context.Background()
	_, err := fx.outbox.Append(ctx, domain.EventTicketUpdate, `{"broken"`)
	require.NoError(t, err)

	handled, err := fx.dispatcher.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, handled)

	announce := fx.gateway.messagesTo(announceChannel)
	require.Len(t, announce, 1)
	assert.Nil(t, announce[0].Embed)
	assert.Equal(t, `[ticket_update] {"broken"`, announce[0].Content)

	pending, _ := fx.outbox.CountPending(ctx)
	assert.Zero(t, pending, "malformed events must not wedge the queue")
}

func TestDispatcherDeliveryFailureStillAdvances(t *testing.T) {
	fx := newDispatcherFixture(t, config.TicketRoomsConfig{})
	ctx := context.Background()
	fx.gateway.sendErr = errors.New("platform down")
	enqueueTicketEvent(t, fx.outbox, domain.EventTicketUpdate, 5, "Someone")

	handled, err := fx.dispatcher.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, handled)

	pending, _ := fx.outbox.CountPending(ctx)
	assert.Zero(t, pending)
}

func TestDispatcherPreservesIDOrder(t *testing.T) {
	fx := newDispatcherFixture(t, config.TicketRoomsConfig{})
	ctx := context.Background()
	for i := uint32(1); i <= 5; i++ {
		enqueueTicketEvent(t, fx.outbox, domain.EventTicketUpdate, i, "Playerone")
	}

	_, err := fx.dispatcher.RunCycle(ctx)
	require.NoError(t, err)

	announce := fx.gateway.messagesTo(announceChannel)
	require.Len(t, announce, 5)
	for i, msg := range announce {
		require.NotNil(t, msg.Embed)
		assert.Equal(t, fmt.Sprintf("Ticket #%d updated", i+1), msg.Embed.Title)
	}
}
