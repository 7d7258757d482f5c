package game

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/gm-relay/internal/domain"
)

// Player is an online character.
type Player struct {
	Name string
	GUID uint64
}

// Ticket is the game's view of a support ticket.
type Ticket struct {
	ID             uint32
	PlayerName     string
	Message        string
	Comment        string
	Response       string
	AssignedTo     string
	AssignedToGUID uint64
	Status         string
	Closed         bool
	Escalation     uint32
	Viewed         bool
	NeedResponse   bool
	NeedMoreHelp   bool
	CreateTime     int64
	LastModified   int64
	ClosedByGUID   uint64
	ResolvedByGUID uint64
	MapID          uint32
	X              float64
	Y              float64
	Z              float64
}

// CommandSink receives lines of command output as they are produced.
type CommandSink func(text string)

// CommandDone signals command completion with its success flag.
type CommandDone func(success bool)

// Server is the inbound surface of the game world. Implementations hand
// work to the game's main thread; callbacks may fire from there.
type Server interface {
	Privilege(ctx context.Context, accountID uint32) (domain.PrivilegeLevel, error)
	// QueueCommand schedules a console command. Output and completion
	// arrive through the callbacks, possibly after QueueCommand returns.
	QueueCommand(ctx context.Context, command string, sink CommandSink, done CommandDone) error
	FindPlayer(ctx context.Context, name string) (*Player, error)
	SendWhisper(ctx context.Context, playerName, gmName, message string) error
	TicketByID(ctx context.Context, ticketID uint32) (*Ticket, error)
	TicketByPlayer(ctx context.Context, playerName string) (*Ticket, error)
}

// ErrNotConnected is returned by the unconnected server stub.
var ErrNotConnected = errors.New("game server not connected")

// LoggingServer is a no-op Server used when the relay runs without a
// live game world attached. Commands complete immediately as failures.
type LoggingServer struct {
	logger *zap.Logger
}

// NewLoggingServer instantiates a logging server stub.
func NewLoggingServer(logger *zap.Logger) *LoggingServer {
	return &LoggingServer{logger: logger}
}

func (s *LoggingServer) Privilege(_ context.Context, accountID uint32) (domain.PrivilegeLevel, error) {
	s.logger.Debug("game privilege lookup", zap.Uint32("account_id", accountID))
	return domain.PrivilegePlayer, nil
}

func (s *LoggingServer) QueueCommand(_ context.Context, command string, sink CommandSink, done CommandDone) error {
	s.logger.Info("game queue command", zap.String("command", command))
	if sink != nil {
		sink("game server not connected")
	}
	if done != nil {
		done(false)
	}
	return nil
}

func (s *LoggingServer) FindPlayer(_ context.Context, name string) (*Player, error) {
	s.logger.Debug("game find player", zap.String("name", name))
	return nil, nil
}

func (s *LoggingServer) SendWhisper(_ context.Context, playerName, gmName, message string) error {
	s.logger.Info("game send whisper",
		zap.String("player", playerName),
		zap.String("gm", gmName),
		zap.Int("length", len(message)),
	)
	return ErrNotConnected
}

func (s *LoggingServer) TicketByID(_ context.Context, ticketID uint32) (*Ticket, error) {
	s.logger.Debug("game ticket lookup", zap.Uint32("ticket_id", ticketID))
	return nil, nil
}

func (s *LoggingServer) TicketByPlayer(_ context.Context, playerName string) (*Ticket, error) {
	s.logger.Debug("game ticket lookup by player", zap.String("player", playerName))
	return nil, nil
}
