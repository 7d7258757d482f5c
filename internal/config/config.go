package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/spec-kit/gm-relay/internal/domain"
)

// Config aggregates runtime configuration for the relay.
type Config struct {
	App         AppConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Logger      LoggerConfig
	Admin       AdminConfig
	Relay       RelayConfig
	RateLimit   RateLimitConfig
	Authz       AuthzConfig
	Platform    PlatformConfig
	TicketRooms TicketRoomsConfig
}

// AppConfig controls the ops HTTP surface.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AdminConfig guards the ops API endpoints.
type AdminConfig struct {
	APIKey          string
	JWTSecret       string
	TokenTTLMinutes int
}

// RelayConfig tunes the relay engine itself.
type RelayConfig struct {
	Enabled                  bool
	OutboxEnabled            bool
	WhisperEnabled           bool
	PollIntervalMs           int
	MaxBatchSize             int
	SecretTTLSeconds         int
	MaxResultLength          int
	AuditPayloadMax          int
	ProcessingTimeoutSeconds int
}

// RateLimitConfig tunes the per-actor sliding window.
type RateLimitConfig struct {
	Enabled       bool
	WindowSeconds int
	MaxActions    int
	MinIntervalMs int
}

// AuthzConfig holds command gating settings.
type AuthzConfig struct {
	MinPrivilege domain.PrivilegeLevel
	CategoryMin  map[string]domain.PrivilegeLevel
	AllowList    []string
	AllowAll     bool
	RoleMappings string
}

// PlatformConfig identifies the chat platform bot.
type PlatformConfig struct {
	BotID             string
	BotToken          string
	GuildID           string
	AnnounceChannelID string
}

// TicketRoomsConfig controls per-ticket channel mirroring.
type TicketRoomsConfig struct {
	Enabled           bool
	CategoryID        string
	ArchiveCategoryID string
	NameFormat        string
	PostUpdates       bool
	ArchiveOnClose    bool
	AllowedRoles      []string
}

// Categories that accept a per-category privilege override.
var categoryNames = []string{
	"ticket", "tele", "gm", "ban", "account", "character",
	"lookup", "server", "debug", "whisper", "misc",
}

// Load reads configuration from environment variables, applying defaults
// where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	minPrivilege := domain.ParsePrivilege(getEnv("GM_RELAY_MIN_PRIVILEGE", ""), domain.PrivilegeGameMaster)

	categoryMin := make(map[string]domain.PrivilegeLevel, len(categoryNames))
	for _, name := range categoryNames {
		key := fmt.Sprintf("GM_RELAY_CATEGORY_%s_MIN_PRIVILEGE", strings.ToUpper(name))
		categoryMin[name] = domain.ParsePrivilege(os.Getenv(key), defaultCategoryPrivilege(name))
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "gm-relay"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Admin: AdminConfig{
			APIKey:          os.Getenv("ADMIN_API_KEY"),
			JWTSecret:       getEnv("ADMIN_JWT_SECRET", "dev-secret"),
			TokenTTLMinutes: getEnvAsInt("ADMIN_TOKEN_TTL_MINUTES", 60),
		},
		Relay: RelayConfig{
			Enabled:                  getEnvAsBool("GM_RELAY_ENABLE", true),
			OutboxEnabled:            getEnvAsBool("GM_RELAY_OUTBOX_ENABLE", true),
			WhisperEnabled:           getEnvAsBool("GM_RELAY_WHISPER_ENABLE", true),
			PollIntervalMs:           getEnvAsInt("GM_RELAY_POLL_INTERVAL_MS", 1000),
			MaxBatchSize:             getEnvAsInt("GM_RELAY_MAX_BATCH_SIZE", 25),
			SecretTTLSeconds:         getEnvAsInt("GM_RELAY_SECRET_TTL_SECONDS", 900),
			MaxResultLength:          getEnvAsInt("GM_RELAY_MAX_RESULT_LENGTH", 4000),
			AuditPayloadMax:          getEnvAsInt("GM_RELAY_AUDIT_PAYLOAD_MAX", 1024),
			ProcessingTimeoutSeconds: getEnvAsInt("GM_RELAY_PROCESSING_TIMEOUT_SECONDS", 300),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvAsBool("GM_RELAY_RATELIMIT_ENABLE", true),
			WindowSeconds: getEnvAsInt("GM_RELAY_RATELIMIT_WINDOW_SECONDS", 10),
			MaxActions:    getEnvAsInt("GM_RELAY_RATELIMIT_MAX_ACTIONS", 5),
			MinIntervalMs: getEnvAsInt("GM_RELAY_RATELIMIT_MIN_INTERVAL_MS", 500),
		},
		Authz: AuthzConfig{
			MinPrivilege: minPrivilege,
			CategoryMin:  categoryMin,
			AllowList:    splitList(getEnv("GM_RELAY_COMMAND_ALLOW_LIST", ".ticket;.gm")),
			AllowAll:     getEnvAsBool("GM_RELAY_COMMAND_ALLOW_ALL", false),
			RoleMappings: os.Getenv("PLATFORM_ROLE_MAPPINGS"),
		},
		Platform: PlatformConfig{
			BotID:             os.Getenv("PLATFORM_BOT_ID"),
			BotToken:          os.Getenv("PLATFORM_BOT_TOKEN"),
			GuildID:           os.Getenv("PLATFORM_GUILD_ID"),
			AnnounceChannelID: os.Getenv("PLATFORM_ANNOUNCE_CHANNEL_ID"),
		},
		TicketRooms: TicketRoomsConfig{
			Enabled:           getEnvAsBool("GM_RELAY_TICKET_ROOMS_ENABLE", false),
			CategoryID:        os.Getenv("GM_RELAY_TICKET_ROOMS_CATEGORY_ID"),
			ArchiveCategoryID: os.Getenv("GM_RELAY_TICKET_ROOMS_ARCHIVE_CATEGORY_ID"),
			NameFormat:        getEnv("GM_RELAY_TICKET_ROOMS_NAME_FORMAT", "ticket-{id}-{player}"),
			PostUpdates:       getEnvAsBool("GM_RELAY_TICKET_ROOMS_POST_UPDATES", true),
			ArchiveOnClose:    getEnvAsBool("GM_RELAY_TICKET_ROOMS_ARCHIVE_ON_CLOSE", true),
			AllowedRoles:      splitList(os.Getenv("GM_RELAY_TICKET_ROOMS_ALLOWED_ROLES")),
		},
	}

	return cfg, nil
}

func defaultCategoryPrivilege(name string) domain.PrivilegeLevel {
	switch name {
	case "ban", "account", "server", "debug":
		return domain.PrivilegeAdministrator
	case "lookup":
		return domain.PrivilegeModerator
	}
	return domain.PrivilegeGameMaster
}

// Addr returns the ops HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// PollInterval returns the poll cadence for both queue directions.
func (r RelayConfig) PollInterval() time.Duration {
	if r.PollIntervalMs <= 0 {
		return time.Second
	}
	return time.Duration(r.PollIntervalMs) * time.Millisecond
}

// SecretTTL returns the account-link secret lifetime.
func (r RelayConfig) SecretTTL() time.Duration {
	return time.Duration(r.SecretTTLSeconds) * time.Second
}

// ProcessingTimeout returns how long a processing row stays ineligible
// for requeue; zero disables requeue.
func (r RelayConfig) ProcessingTimeout() time.Duration {
	return time.Duration(r.ProcessingTimeoutSeconds) * time.Second
}

// Window returns the sliding window span.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// MinInterval returns the minimum gap between two actions.
func (r RateLimitConfig) MinInterval() time.Duration {
	return time.Duration(r.MinIntervalMs) * time.Millisecond
}

// HasCredentials reports whether the platform bot can be started.
func (p PlatformConfig) HasCredentials() bool {
	return p.BotID != "" && p.BotToken != ""
}

// splitList splits a semicolon/comma-separated option into trimmed,
// non-empty entries.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(value, func(r rune) bool {
		return r == ';' || r == ','
	}) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
