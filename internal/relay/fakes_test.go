package relay

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/gm-relay/internal/domain"
	"github.com/spec-kit/gm-relay/internal/game"
	"github.com/spec-kit/gm-relay/internal/platform"
)

type fakeOutbox struct {
	mu     sync.Mutex
	nextID int64
	rows   []domain.OutboxEvent
}

func (f *fakeOutbox) Append(_ context.Context, eventType domain.OutboxEventType, payload string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.rows = append(f.rows, domain.OutboxEvent{
		ID:        f.nextID,
		EventType: eventType,
		Payload:   payload,
		CreatedAt: time.Now(),
	})
	return f.nextID, nil
}

func (f *fakeOutbox) FetchPending(_ context.Context, limit int) ([]domain.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.OutboxEvent
	for _, row := range f.rows {
		if !row.Dispatched {
			out = append(out, row)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeOutbox) MarkDispatched(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows[i].Dispatched = true
			return nil
		}
	}
	return errors.New("no such row")
}

func (f *fakeOutbox) CountPending(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, row := range f.rows {
		if !row.Dispatched {
			n++
		}
	}
	return n, nil
}

type fakeInbox struct {
	mu     sync.Mutex
	nextID int64
	claims int
	rows   []domain.InboxAction
}

func (f *fakeInbox) Append(_ context.Context, actorID string, action domain.InboxActionKind, payload string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.rows = append(f.rows, domain.InboxAction{
		ID:        f.nextID,
		ActorID:   actorID,
		Action:    action,
		Payload:   payload,
		State:     domain.InboxPending,
		CreatedAt: time.Now(),
	})
	return f.nextID, nil
}

func (f *fakeInbox) FetchPending(_ context.Context, limit int, timeout time.Duration) ([]domain.InboxAction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.InboxAction
	for _, row := range f.rows {
		if row.State == domain.InboxPending || staleClaim(row, timeout) {
			out = append(out, row)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeInbox) MarkProcessing(_ context.Context, id int64, requeueAfter time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims++
	for i := range f.rows {
		if f.rows[i].ID != id {
			continue
		}
		if f.rows[i].State != domain.InboxPending && !staleClaim(f.rows[i], requeueAfter) {
			return false, nil
		}
		now := time.Now()
		f.rows[i].State = domain.InboxProcessing
		f.rows[i].ProcessingStartedAt = &now
		return true, nil
	}
	return false, errors.New("no such row")
}

func staleClaim(row domain.InboxAction, timeout time.Duration) bool {
	return timeout > 0 && row.State == domain.InboxProcessing &&
		row.ProcessingStartedAt != nil && time.Since(*row.ProcessingStartedAt) > timeout
}

func (f *fakeInbox) MarkResult(_ context.Context, id int64, status, result string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id {
			now := time.Now()
			f.rows[i].State = domain.InboxDone
			f.rows[i].Status = status
			f.rows[i].Result = result
			f.rows[i].ProcessedAt = &now
			return nil
		}
	}
	return errors.New("no such row")
}

func (f *fakeInbox) CountPending(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, row := range f.rows {
		if row.State != domain.InboxDone {
			n++
		}
	}
	return n, nil
}

func (f *fakeInbox) row(id int64) domain.InboxAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ID == id {
			return row
		}
	}
	return domain.InboxAction{}
}

func (f *fakeInbox) backdateCreated(id int64, created time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows[i].CreatedAt = created
		}
	}
}

func (f *fakeInbox) backdateClaim(id int64, started time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows[i].ProcessingStartedAt = &started
		}
	}
}

func (f *fakeInbox) claimCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claims
}

type fakeLinks struct {
	mu    sync.Mutex
	links map[uint32]*domain.AccountLink
}

func newFakeLinks() *fakeLinks {
	return &fakeLinks{links: make(map[uint32]*domain.AccountLink)}
}

func (f *fakeLinks) UpsertSecret(_ context.Context, accountID uint32, gmName, secretHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[accountID] = &domain.AccountLink{
		AccountID:       accountID,
		GMName:          gmName,
		SecretHash:      &secretHash,
		SecretExpiresAt: &expiresAt,
		UpdatedAt:       time.Now(),
	}
	return nil
}

func (f *fakeLinks) GetByAccount(_ context.Context, accountID uint32) (*domain.AccountLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if link, ok := f.links[accountID]; ok {
		copied := *link
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeLinks) GetByActor(_ context.Context, actorID string) (*domain.AccountLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, link := range f.links {
		if link.ActorID != nil && *link.ActorID == actorID {
			copied := *link
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeLinks) ListPendingSecrets(_ context.Context, now time.Time) ([]domain.AccountLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AccountLink
	for _, link := range f.links {
		if link.SecretHash != nil && link.SecretExpiresAt != nil && now.Before(*link.SecretExpiresAt) {
			out = append(out, *link)
		}
	}
	return out, nil
}

func (f *fakeLinks) BindActor(_ context.Context, accountID uint32, actorID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.links[accountID]
	if !ok {
		return errors.New("no such link")
	}
	link.ActorID = &actorID
	link.Verified = true
	link.SecretHash = nil
	link.SecretExpiresAt = nil
	return nil
}

func (f *fakeLinks) Delete(_ context.Context, accountID uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.links, accountID)
	return nil
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]*domain.WhisperSession
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]*domain.WhisperSession)}
}

func (f *fakeSessions) Upsert(_ context.Context, targetName, actorID, gmName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[strings.ToLower(targetName)] = &domain.WhisperSession{
		TargetName: strings.ToLower(targetName),
		ActorID:    actorID,
		GMName:     gmName,
		UpdatedAt:  time.Now(),
	}
	return nil
}

func (f *fakeSessions) GetByTargetName(_ context.Context, targetName string) (*domain.WhisperSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if session, ok := f.sessions[strings.ToLower(targetName)]; ok {
		copied := *session
		return &copied, nil
	}
	return nil, nil
}

type fakeRooms struct {
	mu    sync.Mutex
	rooms map[uint32]*domain.TicketRoom
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{rooms: make(map[uint32]*domain.TicketRoom)}
}

func (f *fakeRooms) Upsert(_ context.Context, ticketID uint32, channelID, guildID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[ticketID] = &domain.TicketRoom{
		TicketID:  ticketID,
		ChannelID: channelID,
		GuildID:   guildID,
		CreatedAt: time.Now(),
	}
	return nil
}

func (f *fakeRooms) GetByTicket(_ context.Context, ticketID uint32) (*domain.TicketRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok := f.rooms[ticketID]; ok {
		copied := *room
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeRooms) GetByChannel(_ context.Context, channelID string) (*domain.TicketRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, room := range f.rooms {
		if room.ChannelID == channelID {
			copied := *room
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeRooms) MarkArchived(_ context.Context, ticketID uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok := f.rooms[ticketID]; ok && room.ArchivedAt == nil {
		now := time.Now()
		room.ArchivedAt = &now
	}
	return nil
}

type fakeAudit struct {
	mu      sync.Mutex
	records []domain.AuditRecord
}

func (f *fakeAudit) Append(_ context.Context, record domain.AuditRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record.ID = int64(len(f.records) + 1)
	f.records = append(f.records, record)
	return nil
}

func (f *fakeAudit) ListRecent(_ context.Context, limit int) ([]domain.AuditRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AuditRecord, 0, limit)
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.records[i])
	}
	return out, nil
}

type sentMessage struct {
	id  string
	msg platform.Message
}

type createdThread struct {
	id        string
	channelID string
	messageID string
	name      string
}

type fakeGateway struct {
	mu       sync.Mutex
	nextID   int
	sent     []sentMessage
	channels []platform.ChannelCreate
	threads  []createdThread
	edits    map[string][2]bool
	moves    map[string]string
	commands []platform.SlashCommand
	sendErr  error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		edits: make(map[string][2]bool),
		moves: make(map[string]string),
	}
}

func (g *fakeGateway) id() string {
	g.nextID++
	return "id-" + strconv.Itoa(g.nextID)
}

func (g *fakeGateway) SendMessage(_ context.Context, msg platform.Message) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return "", g.sendErr
	}
	id := g.id()
	g.sent = append(g.sent, sentMessage{id: id, msg: msg})
	return id, nil
}

func (g *fakeGateway) CreateChannel(_ context.Context, create platform.ChannelCreate) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels = append(g.channels, create)
	return g.id(), nil
}

func (g *fakeGateway) CreateThreadFromMessage(_ context.Context, channelID, messageID, name string, _ int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.id()
	g.threads = append(g.threads, createdThread{id: id, channelID: channelID, messageID: messageID, name: name})
	return id, nil
}

func (g *fakeGateway) GetThread(_ context.Context, threadID string) (*platform.Thread, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, thread := range g.threads {
		if thread.id == threadID {
			return &platform.Thread{ID: thread.id, Name: thread.name}, nil
		}
	}
	return nil, errors.New("no such thread")
}

func (g *fakeGateway) EditThread(_ context.Context, threadID string, archived, locked bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edits[threadID] = [2]bool{archived, locked}
	return nil
}

func (g *fakeGateway) MoveChannel(_ context.Context, channelID, parentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.moves[channelID] = parentID
	return nil
}

func (g *fakeGateway) RegisterCommands(_ context.Context, _ string, commands []platform.SlashCommand) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.commands = commands
	return nil
}

func (g *fakeGateway) messagesTo(channelID string) []platform.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []platform.Message
	for _, sent := range g.sent {
		if sent.msg.ChannelID == channelID {
			out = append(out, sent.msg)
		}
	}
	return out
}

type fakeServer struct {
	privilege  domain.PrivilegeLevel
	privErr    error
	players    map[string]*game.Player
	tickets    map[uint32]*game.Ticket
	whispers   []string
	commands   []string
	cmdOutput  []string
	cmdSuccess bool
	cmdHang    bool
	queueErr   error
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		players:    make(map[string]*game.Player),
		tickets:    make(map[uint32]*game.Ticket),
		cmdSuccess: true,
	}
}

func (s *fakeServer) Privilege(_ context.Context, _ uint32) (domain.PrivilegeLevel, error) {
	return s.privilege, s.privErr
}

func (s *fakeServer) QueueCommand(_ context.Context, command string, sink game.CommandSink, done game.CommandDone) error {
	if s.queueErr != nil {
		return s.queueErr
	}
	s.commands = append(s.commands, command)
	if s.cmdHang {
		return nil
	}
	for _, line := range s.cmdOutput {
		sink(line)
	}
	done(s.cmdSuccess)
	return nil
}

func (s *fakeServer) FindPlayer(_ context.Context, name string) (*game.Player, error) {
	return s.players[strings.ToLower(name)], nil
}

func (s *fakeServer) SendWhisper(_ context.Context, playerName, gmName, message string) error {
	s.whispers = append(s.whispers, playerName+"|"+gmName+"|"+message)
	return nil
}

func (s *fakeServer) TicketByID(_ context.Context, ticketID uint32) (*game.Ticket, error) {
	return s.tickets[ticketID], nil
}

func (s *fakeServer) TicketByPlayer(_ context.Context, playerName string) (*game.Ticket, error) {
	for _, ticket := range s.tickets {
		if strings.EqualFold(ticket.PlayerName, playerName) {
			return ticket, nil
		}
	}
	return nil, nil
}
