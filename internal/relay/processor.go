package relay

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/gm-relay/internal/auth"
	"github.com/spec-kit/gm-relay/internal/authz"
	"github.com/spec-kit/gm-relay/internal/config"
	"github.com/spec-kit/gm-relay/internal/domain"
	"github.com/spec-kit/gm-relay/internal/game"
	"github.com/spec-kit/gm-relay/internal/observability"
	"github.com/spec-kit/gm-relay/internal/payload"
	"github.com/spec-kit/gm-relay/internal/ratelimit"
	"github.com/spec-kit/gm-relay/internal/repository"
)

// Processor drains the inbox toward the game world. Its RunCycle is
// never invoked reentrantly; the limiter relies on that.
type Processor struct {
	cfg      config.RelayConfig
	inbox    repository.InboxRepository
	outbox   repository.OutboxRepository
	links    repository.LinkRepository
	sessions repository.WhisperSessionRepository
	audit    repository.AuditRepository
	limiter  *ratelimit.Limiter
	resolver *authz.Resolver
	server   game.Server
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewProcessor instantiates a processor.
func NewProcessor(
	cfg config.RelayConfig,
	inbox repository.InboxRepository,
	outbox repository.OutboxRepository,
	links repository.LinkRepository,
	sessions repository.WhisperSessionRepository,
	audit repository.AuditRepository,
	limiter *ratelimit.Limiter,
	resolver *authz.Resolver,
	server game.Server,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		cfg:      cfg,
		inbox:    inbox,
		outbox:   outbox,
		links:    links,
		sessions: sessions,
		audit:    audit,
		limiter:  limiter,
		resolver: resolver,
		server:   server,
		metrics:  metrics,
		logger:   logger,
	}
}

// outcome is the terminal result of one inbox action.
type outcome struct {
	status   string
	result   string
	category string
	account  uint32
	// deferred means the command engine owns completion; the row stays
	// processing until the done callback fires.
	deferred bool
	// skip means another claimant owns the row; write nothing.
	skip bool
}

// RunCycle performs one poll of the inbox. It returns the number of
// actions handled. Rejections resolve pending to done directly; only
// approved commands pass through the processing state, which is the
// marker the requeue scan looks for after a crash.
func (p *Processor) RunCycle(ctx context.Context) (int, error) {
	actions, err := p.inbox.FetchPending(ctx, p.cfg.MaxBatchSize, p.cfg.ProcessingTimeout())
	if err != nil {
		p.metrics.RecordError("processor")
		return 0, err
	}

	handled := 0
	for _, action := range actions {
		out := p.handle(ctx, action)
		if out.skip {
			continue
		}
		handled++
		if !out.deferred {
			p.finish(ctx, action, out)
		}
	}
	return handled, nil
}

func (p *Processor) handle(ctx context.Context, action domain.InboxAction) outcome {
	if decision := p.limiter.Admit(action.ActorID, time.Now()); !decision.Allowed {
		return outcome{status: domain.StatusRateLimited, result: decision.Reason}
	}

	switch action.Action {
	case domain.ActionAuth:
		return p.handleAuth(ctx, action)
	case domain.ActionCommand:
		return p.handleCommand(ctx, action, action.Payload)
	case domain.ActionWhisper:
		return p.handleWhisper(ctx, action)
	case domain.ActionTicketAssign:
		return p.handleTicketAssign(ctx, action)
	}
	return outcome{status: domain.StatusInvalid, result: "unknown action"}
}

// finish writes the terminal state, the audit row and the counters.
func (p *Processor) finish(ctx context.Context, action domain.InboxAction, out outcome) {
	if err := p.inbox.MarkResult(ctx, action.ID, out.status, out.result); err != nil {
		p.metrics.RecordError("processor")
		p.logger.Error("inbox result write failed",
			zap.Int64("action_id", action.ID), zap.Error(err))
	}
	p.recordAudit(ctx, action, out)
	p.metrics.RecordProcessed(string(action.Action), out.status)
}

func (p *Processor) recordAudit(ctx context.Context, action domain.InboxAction, out outcome) {
	record := domain.AuditRecord{
		ActorID:   action.ActorID,
		AccountID: out.account,
		Action:    string(action.Action),
		Category:  out.category,
		Status:    out.status,
		Detail:    out.result,
		Payload:   truncate(action.Payload, p.cfg.AuditPayloadMax),
	}
	// Secrets never reach the audit trail.
	if action.Action == domain.ActionAuth {
		record.Payload = ""
	}
	if err := p.audit.Append(ctx, record); err != nil {
		p.logger.Warn("audit write failed",
			zap.Int64("action_id", action.ID), zap.Error(err))
	}
}

// handleAuth consumes a one-time link secret. Pending secrets are few,
// so a linear scan with a constant-time compare per row is fine.
func (p *Processor) handleAuth(ctx context.Context, action domain.InboxAction) outcome {
	secret := strings.TrimSpace(action.Payload)
	if secret == "" {
		return outcome{status: domain.StatusInvalid, result: "empty secret"}
	}

	pending, err := p.links.ListPendingSecrets(ctx, time.Now())
	if err != nil {
		p.metrics.RecordError("processor")
		return outcome{status: domain.StatusError, result: "link lookup failed"}
	}
	for _, link := range pending {
		if link.SecretHash == nil || !auth.CheckSecret(*link.SecretHash, secret) {
			continue
		}
		if err := p.links.BindActor(ctx, link.AccountID, action.ActorID); err != nil {
			p.metrics.RecordError("processor")
			return outcome{status: domain.StatusError, result: "link write failed", account: link.AccountID}
		}
		p.logger.Info("account linked",
			zap.Uint32("account_id", link.AccountID),
			zap.String("gm_name", link.GMName),
		)
		return outcome{
			status:  domain.StatusOK,
			result:  fmt.Sprintf("linked as %s", link.GMName),
			account: link.AccountID,
		}
	}
	return outcome{status: domain.StatusInvalid, result: "unknown or expired secret"}
}

// requireLink resolves and gates the actor's account link.
func (p *Processor) requireLink(ctx context.Context, actorID string) (*domain.AccountLink, *outcome) {
	link, err := p.links.GetByActor(ctx, actorID)
	if err != nil {
		p.metrics.RecordError("processor")
		return nil, &outcome{status: domain.StatusError, result: "link lookup failed"}
	}
	if link == nil {
		return nil, &outcome{status: domain.StatusNotLinked, result: "no linked account"}
	}
	if !link.Verified {
		return nil, &outcome{status: domain.StatusNotVerified, result: "account link not verified", account: link.AccountID}
	}
	return link, nil
}

func (p *Processor) handleCommand(ctx context.Context, action domain.InboxAction, command string) outcome {
	command = strings.TrimSpace(command)
	if command == "" {
		return outcome{status: domain.StatusInvalid, result: "empty command"}
	}

	link, denied := p.requireLink(ctx, action.ActorID)
	if denied != nil {
		return *denied
	}

	privilege, err := p.server.Privilege(ctx, link.AccountID)
	if err != nil {
		p.metrics.RecordError("processor")
		return outcome{status: domain.StatusError, result: "privilege lookup failed", account: link.AccountID}
	}
	category, reason, ok := p.resolver.Check(command, privilege)
	if !ok {
		return outcome{status: domain.StatusForbidden, result: reason, category: category, account: link.AccountID}
	}

	// Claim on approval. The claim refreshes the requeue clock, so a
	// stale row being retried is stamped again here.
	won, err := p.inbox.MarkProcessing(ctx, action.ID, p.cfg.ProcessingTimeout())
	if err != nil {
		p.metrics.RecordError("processor")
		return outcome{status: domain.StatusError, result: "claim failed", category: category, account: link.AccountID}
	}
	if !won {
		return outcome{skip: true}
	}

	collector := newOutputCollector(p.cfg.MaxResultLength)
	done := p.commandCompletion(action, outcome{category: category, account: link.AccountID}, command, collector)
	if err := p.server.QueueCommand(ctx, command, collector.sink, done); err != nil {
		p.metrics.RecordError("processor")
		return outcome{status: domain.StatusError, result: "command queue failed", category: category, account: link.AccountID}
	}
	return outcome{deferred: true}
}

// commandCompletion builds the done callback for a queued command. It
// fires from the command engine, after RunCycle has moved on, so it uses
// a background context for its writes.
func (p *Processor) commandCompletion(action domain.InboxAction, base outcome, command string, collector *outputCollector) game.CommandDone {
	var once sync.Once
	return func(success bool) {
		once.Do(func() {
			ctx := context.Background()
			out := base
			out.result = collector.String()
			if success {
				out.status = domain.StatusOK
			} else {
				out.status = domain.StatusError
				if out.result == "" {
					out.result = "command failed"
				}
			}
			p.finish(ctx, action, out)

			body := payload.NewObject().
				Str("actor", action.ActorID).
				Str("command", command).
				Str("status", out.status).
				Str("output", out.result)
			envelope := payload.Envelope(string(domain.EventCommandResult), "result", body, time.Now().Unix())
			if _, err := p.outbox.Append(ctx, domain.EventCommandResult, envelope); err != nil {
				p.metrics.RecordError("processor")
				p.logger.Warn("command result enqueue failed",
					zap.Int64("action_id", action.ID), zap.Error(err))
			}
		})
	}
}

// handleWhisper routes a GM message to an online player. Payload is
// "player|gmName|message".
func (p *Processor) handleWhisper(ctx context.Context, action domain.InboxAction) outcome {
	if !p.cfg.WhisperEnabled {
		return outcome{status: domain.StatusDisabled, result: "whisper relay disabled", category: authz.CategoryWhisper}
	}

	parts := strings.SplitN(action.Payload, "|", 3)
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return outcome{status: domain.StatusInvalid, result: "malformed whisper payload", category: authz.CategoryWhisper}
	}
	playerName, gmName, message := parts[0], parts[1], parts[2]

	link, denied := p.requireLink(ctx, action.ActorID)
	if denied != nil {
		denied.category = authz.CategoryWhisper
		return *denied
	}
	if gmName == "" {
		gmName = link.GMName
	}

	privilege, err := p.server.Privilege(ctx, link.AccountID)
	if err != nil {
		p.metrics.RecordError("processor")
		return outcome{status: domain.StatusError, result: "privilege lookup failed", category: authz.CategoryWhisper, account: link.AccountID}
	}
	if privilege < p.resolver.Required(authz.CategoryWhisper) {
		return outcome{
			status:   domain.StatusForbidden,
			result:   "account privilege too low for category 'whisper'",
			category: authz.CategoryWhisper,
			account:  link.AccountID,
		}
	}

	player, err := p.server.FindPlayer(ctx, playerName)
	if err != nil {
		p.metrics.RecordError("processor")
		return outcome{status: domain.StatusError, result: "player lookup failed", category: authz.CategoryWhisper, account: link.AccountID}
	}
	if player == nil {
		return outcome{status: domain.StatusPlayerOffline, result: "player is offline", category: authz.CategoryWhisper, account: link.AccountID}
	}

	if err := p.server.SendWhisper(ctx, player.Name, gmName, message); err != nil {
		p.metrics.RecordError("processor")
		return outcome{status: domain.StatusError, result: "whisper delivery failed", category: authz.CategoryWhisper, account: link.AccountID}
	}
	// Remember the route so the player's reply can find this actor.
	if err := p.sessions.Upsert(ctx, player.Name, action.ActorID, gmName); err != nil {
		p.logger.Warn("whisper session write failed",
			zap.String("player", player.Name), zap.Error(err))
	}
	p.mirrorWhisper(ctx, action, player.Name, gmName, message)
	return outcome{
		status:   domain.StatusOK,
		result:   fmt.Sprintf("whisper sent to %s", player.Name),
		category: authz.CategoryWhisper,
		account:  link.AccountID,
	}
}

// mirrorWhisper queues the gm_whisper echo so the platform side sees the
// exchange, tagged with the recipient's open ticket when there is one.
// The whisper itself already landed, so a failed append is only logged.
func (p *Processor) mirrorWhisper(ctx context.Context, action domain.InboxAction, playerName, gmName, message string) {
	body := payload.NewObject().
		Str("player", playerName).
		Str("gmName", gmName).
		Str("message", message)
	if ticket, err := p.server.TicketByPlayer(ctx, playerName); err == nil && ticket != nil && !ticket.Closed {
		body.Uint("ticketId", uint64(ticket.ID))
	}
	envelope := payload.Envelope(string(domain.EventGMWhisper), "whisper", body, time.Now().Unix())
	if _, err := p.outbox.Append(ctx, domain.EventGMWhisper, envelope); err != nil {
		p.metrics.RecordError("processor")
		p.logger.Warn("gm whisper enqueue failed",
			zap.Int64("action_id", action.ID), zap.Error(err))
	}
}

// handleTicketAssign turns an assignment request into a ticket command.
// Payload is "ticketId|gmName".
func (p *Processor) handleTicketAssign(ctx context.Context, action domain.InboxAction) outcome {
	parts := strings.SplitN(action.Payload, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return outcome{status: domain.StatusInvalid, result: "malformed assignment payload", category: authz.CategoryTicket}
	}
	ticketID, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return outcome{status: domain.StatusInvalid, result: "malformed ticket id", category: authz.CategoryTicket}
	}
	gmName := parts[1]

	ticket, err := p.server.TicketByID(ctx, uint32(ticketID))
	if err != nil {
		p.metrics.RecordError("processor")
		return outcome{status: domain.StatusError, result: "ticket lookup failed", category: authz.CategoryTicket}
	}
	if ticket == nil {
		return outcome{status: domain.StatusInvalid, result: "ticket not found", category: authz.CategoryTicket}
	}

	command := fmt.Sprintf(".ticket assign %d %s", ticket.ID, gmName)
	return p.handleCommand(ctx, action, command)
}

// outputCollector accumulates command output up to a cap. The command
// engine delivers lines sequentially, but possibly from its own thread.
type outputCollector struct {
	mu  sync.Mutex
	buf strings.Builder
	cap int
}

func newOutputCollector(limit int) *outputCollector {
	if limit <= 0 {
		limit = 4000
	}
	return &outputCollector{cap: limit}
}

func (c *outputCollector) sink(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf.Len() >= c.cap {
		return
	}
	if c.buf.Len() > 0 {
		c.buf.WriteByte('\n')
	}
	remaining := c.cap - c.buf.Len()
	if len(text) > remaining {
		text = text[:remaining]
	}
	c.buf.WriteString(text)
}

func (c *outputCollector) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit]
}
