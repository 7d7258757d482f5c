package platform

import (
	"context"
	"strconv"

	"go.uber.org/zap"
)

// Channel permission bits, matching the chat platform's wire values.
const (
	PermissionViewChannel    uint64 = 1 << 10
	PermissionSendMessages   uint64 = 1 << 11
	PermissionReadHistory    uint64 = 1 << 16
	PermissionCreateMessages        = PermissionSendMessages | PermissionReadHistory
)

// OverwriteTypeRole and OverwriteTypeMember select the target kind of a
// permission overwrite.
const (
	OverwriteTypeRole   = 0
	OverwriteTypeMember = 1
)

// EmbedField is one name/value pair inside an embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is a rich message card.
type Embed struct {
	Title       string
	Description string
	Color       uint32
	Fields      []EmbedField
}

// Message is an outbound channel message.
type Message struct {
	ChannelID string
	Content   string
	Embed     *Embed
}

// PermissionOverwrite grants or denies permission bits for a role or
// member on a channel.
type PermissionOverwrite struct {
	TargetID string
	Type     int
	Allow    uint64
	Deny     uint64
}

// ChannelCreate describes a channel to create under a guild.
type ChannelCreate struct {
	GuildID    string
	Name       string
	ParentID   string
	Topic      string
	Overwrites []PermissionOverwrite
}

// Thread is a message thread attached to a channel.
type Thread struct {
	ID                 string
	Name               string
	Archived           bool
	Locked             bool
	AutoArchiveMinutes int
}

// CommandOption is one option of a slash command.
type CommandOption struct {
	Name        string
	Description string
	Required    bool
}

// SlashCommand is an application command to register on a guild.
type SlashCommand struct {
	Name        string
	Description string
	Options     []CommandOption
}

// Gateway is the outbound surface of the chat platform. Implementations
// wrap the platform's REST API; errors are returned, never retried here.
type Gateway interface {
	SendMessage(ctx context.Context, msg Message) (messageID string, err error)
	CreateChannel(ctx context.Context, create ChannelCreate) (channelID string, err error)
	CreateThreadFromMessage(ctx context.Context, channelID, messageID, name string, autoArchiveMinutes int) (threadID string, err error)
	GetThread(ctx context.Context, threadID string) (*Thread, error)
	EditThread(ctx context.Context, threadID string, archived, locked bool) error
	MoveChannel(ctx context.Context, channelID, parentID string) error
	RegisterCommands(ctx context.Context, guildID string, commands []SlashCommand) error
}

// LoggingGateway is a no-transport Gateway that records what it would
// send. It keeps the relay runnable without platform credentials and
// serves as the seam for a real client.
type LoggingGateway struct {
	logger *zap.Logger
	nextID int64
}

// NewLoggingGateway instantiates a logging gateway.
func NewLoggingGateway(logger *zap.Logger) *LoggingGateway {
	return &LoggingGateway{logger: logger}
}

func (g *LoggingGateway) id() string {
	g.nextID++
	return "local-" + strconv.FormatInt(g.nextID, 10)
}

func (g *LoggingGateway) SendMessage(_ context.Context, msg Message) (string, error) {
	fields := []zap.Field{zap.String("channel_id", msg.ChannelID)}
	if msg.Content != "" {
		fields = append(fields, zap.String("content", msg.Content))
	}
	if msg.Embed != nil {
		fields = append(fields, zap.String("embed_title", msg.Embed.Title))
	}
	g.logger.Info("platform send message", fields...)
	return g.id(), nil
}

func (g *LoggingGateway) CreateChannel(_ context.Context, create ChannelCreate) (string, error) {
	g.logger.Info("platform create channel",
		zap.String("guild_id", create.GuildID),
		zap.String("name", create.Name),
		zap.String("parent_id", create.ParentID),
	)
	return g.id(), nil
}

func (g *LoggingGateway) CreateThreadFromMessage(_ context.Context, channelID, messageID, name string, autoArchiveMinutes int) (string, error) {
	g.logger.Info("platform create thread",
		zap.String("channel_id", channelID),
		zap.String("message_id", messageID),
		zap.String("name", name),
		zap.Int("auto_archive_minutes", autoArchiveMinutes),
	)
	return g.id(), nil
}

func (g *LoggingGateway) GetThread(_ context.Context, threadID string) (*Thread, error) {
	return &Thread{ID: threadID}, nil
}

func (g *LoggingGateway) EditThread(_ context.Context, threadID string, archived, locked bool) error {
	g.logger.Info("platform edit thread",
		zap.String("thread_id", threadID),
		zap.Bool("archived", archived),
		zap.Bool("locked", locked),
	)
	return nil
}

func (g *LoggingGateway) MoveChannel(_ context.Context, channelID, parentID string) error {
	g.logger.Info("platform move channel",
		zap.String("channel_id", channelID),
		zap.String("parent_id", parentID),
	)
	return nil
}

func (g *LoggingGateway) RegisterCommands(_ context.Context, guildID string, commands []SlashCommand) error {
	g.logger.Info("platform register commands",
		zap.String("guild_id", guildID),
		zap.Int("count", len(commands)),
	)
	return nil
}
