package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/gm-relay/internal/api/http"
	"github.com/spec-kit/gm-relay/internal/api/http/handlers"
	"github.com/spec-kit/gm-relay/internal/auth"
	"github.com/spec-kit/gm-relay/internal/authz"
	"github.com/spec-kit/gm-relay/internal/config"
	"github.com/spec-kit/gm-relay/internal/game"
	"github.com/spec-kit/gm-relay/internal/observability"
	"github.com/spec-kit/gm-relay/internal/persistence"
	"github.com/spec-kit/gm-relay/internal/platform"
	"github.com/spec-kit/gm-relay/internal/ratelimit"
	"github.com/spec-kit/gm-relay/internal/relay"
	"github.com/spec-kit/gm-relay/internal/repository"
	"github.com/spec-kit/gm-relay/internal/service"
	"github.com/spec-kit/gm-relay/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	outboxRepo := repository.NewOutboxRepository(pool)
	inboxRepo := repository.NewInboxRepository(pool)
	linkRepo := repository.NewLinkRepository(pool)
	sessionRepo := repository.NewWhisperSessionRepository(pool)
	roomRepo := repository.NewTicketRoomRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	metrics := observability.NewMetrics()
	limiter := ratelimit.NewLimiter(ratelimit.Config{
		Enabled:     cfg.RateLimit.Enabled,
		Window:      cfg.RateLimit.Window(),
		MaxActions:  cfg.RateLimit.MaxActions,
		MinInterval: cfg.RateLimit.MinInterval(),
	})
	resolver := authz.NewResolver(authz.Config{
		GlobalMin:   cfg.Authz.MinPrivilege,
		CategoryMin: cfg.Authz.CategoryMin,
		AllowList:   cfg.Authz.AllowList,
		AllowAll:    cfg.Authz.AllowAll,
	})
	roleMap := authz.ParseRoleMap(cfg.Authz.RoleMappings)

	// Integration seams: the logging implementations stand in until a
	// real platform client and game core are attached.
	gateway := platform.NewLoggingGateway(logger.Named("platform"))
	server := game.NewLoggingServer(logger.Named("game"))

	cache := relay.NewThreadCache(redis.Handle())
	rooms := relay.NewRoomManager(cfg.TicketRooms, cfg.Platform.GuildID, gateway, roomRepo, roleMap, logger)
	dispatcher := relay.NewDispatcher(outboxRepo, gateway, rooms, cache, metrics, logger,
		cfg.Platform.AnnounceChannelID, cfg.Relay.MaxBatchSize)
	processor := relay.NewProcessor(cfg.Relay, inboxRepo, outboxRepo, linkRepo, sessionRepo,
		auditRepo, limiter, resolver, server, metrics, logger)

	listener := relay.NewListener(cfg.Platform.GuildID, inboxRepo, linkRepo, resolver,
		roleMap, cache, gateway, server, logger)
	bot := platform.NewBot(gateway, listener, logger.Named("bot"))

	relayWorker := worker.NewRelayWorker(dispatcher, processor, cfg.Relay.PollInterval(), logger)
	switch {
	case pool == nil:
		logger.Warn("no database; relay loops not started")
	case cfg.Relay.Enabled:
		if cfg.Platform.HasCredentials() {
			if err := gateway.RegisterCommands(ctx, cfg.Platform.GuildID, relay.SlashCommands()); err != nil {
				logger.Warn("slash command registration failed", zap.Error(err))
			}
		} else {
			logger.Warn("platform credentials missing; relaying to log only")
		}
		relayWorker.Start(ctx)
		defer relayWorker.Stop()
		go func() {
			if err := bot.Run(ctx); err != nil && err != context.Canceled {
				logger.Warn("platform bot stopped", zap.Error(err))
			}
		}()
	default:
		logger.Info("relay disabled; serving ops API only")
	}

	hooks := service.NewHooks(cfg.Relay, outboxRepo, sessionRepo, server, logger)
	linkService := service.NewLinkService(linkRepo, cfg.Relay.SecretTTL(), logger)

	tokens := auth.NewTokenManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTLMinutes)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:          handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Relay:           handlers.NewRelayHandler(outboxRepo, inboxRepo, auditRepo, metrics),
		Links:           handlers.NewLinkHandler(linkService),
		Simulate:        handlers.NewSimulateHandler(hooks),
		Admin:           handlers.NewAdminHandler(cfg.Admin.APIKey, tokens),
		AdminMiddleware: auth.NewAdminMiddleware(tokens),
		Degraded:        pool == nil,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
