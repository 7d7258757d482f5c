package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/gm-relay/internal/authz"
	"github.com/spec-kit/gm-relay/internal/domain"
	"github.com/spec-kit/gm-relay/internal/game"
	"github.com/spec-kit/gm-relay/internal/platform"
)

type listenerFixture struct {
	inbox    *fakeInbox
	links    *fakeLinks
	gateway  *fakeGateway
	server   *fakeServer
	cache    *ThreadCache
	listener *Listener
}

func newListenerFixture(t *testing.T, roleMappings string) *listenerFixture {
	t.Helper()
	fx := &listenerFixture{
		inbox:   &fakeInbox{},
		links:   newFakeLinks(),
		gateway: newFakeGateway(),
		server:  newFakeServer(),
		cache:   NewThreadCache(nil),
	}
	resolver := authz.NewResolver(authz.Config{
		GlobalMin: domain.PrivilegeGameMaster,
		AllowList: []string{".ticket", ".gm"},
	})
	fx.listener = NewListener("guild-1", fx.inbox, fx.links, resolver,
		authz.ParseRoleMap(roleMappings), fx.cache, fx.gateway, fx.server, zap.NewNop())
	return fx
}

func (fx *listenerFixture) verifiedLink(t *testing.T, accountID uint32, gmName, actorID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, fx.links.UpsertSecret(ctx, accountID, gmName, "hash", time.Now().Add(time.Hour)))
	require.NoError(t, fx.links.BindActor(ctx, accountID, actorID))
}

func TestListenerAuthQueuesSecret(t *testing.T) {
	fx := newListenerFixture(t, "")
	reply, err := fx.listener.OnInteraction(context.Background(), platform.Interaction{
		ActorID: "actor-1",
		GuildID: "guild-1",
		Command: CommandAuth,
		Options: map[string]string{"secret": " s3cret "},
	})
	require.NoError(t, err)
	assert.Contains(t, reply, "queued")

	require.Len(t, fx.inbox.rows, 1)
	assert.Equal(t, domain.ActionAuth, fx.inbox.rows[0].Action)
	assert.Equal(t, "s3cret", fx.inbox.rows[0].Payload)
}

func TestListenerRejectsForeignGuild(t *testing.T) {
	fx := newListenerFixture(t, "")
	reply, err := fx.listener.OnInteraction(context.Background(), platform.Interaction{
		ActorID: "actor-1",
		GuildID: "guild-other",
		Command: CommandAuth,
		Options: map[string]string{"secret": "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, "This bot is not available here.", reply)
	assert.Empty(t, fx.inbox.rows)
}

func TestListenerCommandAllowListEarlyReject(t *testing.T) {
	fx := newListenerFixture(t, "")
	reply, err := fx.listener.OnInteraction(context.Background(), platform.Interaction{
		ActorID: "actor-1",
		GuildID: "guild-1",
		Command: CommandRun,
		Options: map[string]string{"command": ".server shutdown 0"},
	})
	require.NoError(t, err)
	assert.Equal(t, "That command cannot be relayed.", reply)
	assert.Empty(t, fx.inbox.rows)
}

func TestListenerCommandRoleGate(t *testing.T) {
	fx := newListenerFixture(t, "role-mod:lookup")
	reply, err := fx.listener.OnInteraction(context.Background(), platform.Interaction{
		ActorID: "actor-1",
		GuildID: "guild-1",
		Command: CommandRun,
		Options: map[string]string{"command": ".ticket list"},
		RoleIDs: []string{"role-mod"},
	})
	require.NoError(t, err)
	assert.Contains(t, reply, "lack the role")
	assert.Empty(t, fx.inbox.rows)

	reply, err = fx.listener.OnInteraction(context.Background(), platform.Interaction{
		ActorID: "actor-1",
		GuildID: "guild-1",
		Command: CommandRun,
		Options: map[string]string{"command": ".ticket list"},
		RoleIDs: []string{"role-gm"},
	})
	require.NoError(t, err)
	assert.Contains(t, reply, "lack the role")

	fx = newListenerFixture(t, "role-gm:ticket,gm")
	reply, err = fx.listener.OnInteraction(context.Background(), platform.Interaction{
		ActorID: "actor-1",
		GuildID: "guild-1",
		Command: CommandRun,
		Options: map[string]string{"command": ".ticket list"},
		RoleIDs: []string{"role-gm"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Command queued.", reply)
	require.Len(t, fx.inbox.rows, 1)
	assert.Equal(t, domain.ActionCommand, fx.inbox.rows[0].Action)
}

func TestListenerEmptyRoleMapAllowsAll(t *testing.T) {
	fx := newListenerFixture(t, "")
	reply, err := fx.listener.OnInteraction(context.Background(), platform.Interaction{
		ActorID: "actor-1",
		GuildID: "guild-1",
		Command: CommandRun,
		Options: map[string]string{"command": ".gm on"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Command queued.", reply)
}

func TestListenerTicketAssignValidation(t *testing.T) {
	fx := newListenerFixture(t, "")
	reply, err := fx.listener.OnInteraction(context.Background(), platform.Interaction{
		ActorID: "actor-1",
		GuildID: "guild-1",
		Command: CommandTicketAssign,
		Options: map[string]string{"ticket": "abc", "gm": "GMBob"},
	})
	require.NoError(t, err)
	assert.Contains(t, reply, "numeric ticket id")
	assert.Empty(t, fx.inbox.rows)

	reply, err = fx.listener.OnInteraction(context.Background(), platform.Interaction{
		ActorID: "actor-1",
		GuildID: "guild-1",
		Command: CommandTicketAssign,
		Options: map[string]string{"ticket": "42", "gm": "GMBob"},
	})
	require.NoError(t, err)
	assert.Contains(t, reply, "queued")
	require.Len(t, fx.inbox.rows, 1)
	assert.Equal(t, domain.ActionTicketAssign, fx.inbox.rows[0].Action)
	assert.Equal(t, "42|GMBob", fx.inbox.rows[0].Payload)
}

func TestListenerThreadMessageBecomesWhisper(t *testing.T) {
	fx := newListenerFixture(t, "")
	ctx := context.Background()
	fx.verifiedLink(t, 1001, "GMBob", "actor-1")
	fx.server.tickets[42] = &game.Ticket{ID: 42, PlayerName: "Playerone"}
	fx.cache.PutThread(ctx, "thread-42", 42)

	err := fx.listener.OnThreadMessage(ctx, platform.ThreadMessage{
		ThreadID: "thread-42",
		ActorID:  "actor-1",
		Content:  "how can I help?",
	})
	require.NoError(t, err)

	require.Len(t, fx.inbox.rows, 1)
	assert.Equal(t, domain.ActionWhisper, fx.inbox.rows[0].Action)
	assert.Equal(t, "Playerone|GMBob|how can I help?", fx.inbox.rows[0].Payload)
}

func TestListenerThreadMessageFallsBackToName(t *testing.T) {
	fx := newListenerFixture(t, "")
	ctx := context.Background()
	fx.verifiedLink(t, 1001, "GMBob", "actor-1")
	fx.server.tickets[42] = &game.Ticket{ID: 42, PlayerName: "Playerone"}

	// Not cached; the thread's name convention resolves it.
	threadID, err := fx.gateway.CreateThreadFromMessage(ctx, "chan", "msg", "ticket-42-playerone", 1440)
	require.NoError(t, err)

	err = fx.listener.OnThreadMessage(ctx, platform.ThreadMessage{
		ThreadID: threadID,
		ActorID:  "actor-1",
		Content:  "hello",
	})
	require.NoError(t, err)
	require.Len(t, fx.inbox.rows, 1)
}

func TestListenerThreadMessageUnlinkedActorNotice(t *testing.T) {
	fx := newListenerFixture(t, "")
	ctx := context.Background()
	fx.server.tickets[42] = &game.Ticket{ID: 42, PlayerName: "Playerone"}
	fx.cache.PutThread(ctx, "thread-42", 42)

	err := fx.listener.OnThreadMessage(ctx, platform.ThreadMessage{
		ThreadID: "thread-42",
		ActorID:  "stranger",
		Content:  "hi",
	})
	require.NoError(t, err)

	assert.Empty(t, fx.inbox.rows)
	notices := fx.gateway.messagesTo("thread-42")
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0].Content, "Link your game account")
}

func TestListenerThreadMessageClosedTicketNotice(t *testing.T) {
	fx := newListenerFixture(t, "")
	ctx := context.Background()
	fx.verifiedLink(t, 1001, "GMBob", "actor-1")
	fx.server.tickets[42] = &game.Ticket{ID: 42, PlayerName: "Playerone", Closed: true}
	fx.cache.PutThread(ctx, "thread-42", 42)

	err := fx.listener.OnThreadMessage(ctx, platform.ThreadMessage{
		ThreadID: "thread-42",
		ActorID:  "actor-1",
		Content:  "too late",
	})
	require.NoError(t, err)

	assert.Empty(t, fx.inbox.rows)
	notices := fx.gateway.messagesTo("thread-42")
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0].Content, "closed")
}

func TestListenerIgnoresUnrelatedThreads(t *testing.T) {
	fx := newListenerFixture(t, "")
	err := fx.listener.OnThreadMessage(context.Background(), platform.ThreadMessage{
		ThreadID: "thread-unknown",
		ActorID:  "actor-1",
		Content:  "random chatter",
	})
	require.NoError(t, err)
	assert.Empty(t, fx.inbox.rows)
}
