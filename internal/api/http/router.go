package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/gm-relay/internal/api/http/handlers"
	"github.com/spec-kit/gm-relay/internal/auth"
	apperrors "github.com/spec-kit/gm-relay/pkg/util"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Relay           *handlers.RelayHandler
	Links           *handlers.LinkHandler
	Simulate        *handlers.SimulateHandler
	Admin           *handlers.AdminHandler
	AdminMiddleware *auth.AdminMiddleware
	// Degraded short-circuits the queue-backed routes when no database
	// is configured; health and token exchange keep working.
	Degraded bool
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/admin/token", cfg.Admin.Token)

	protected := app.Group("/relay", cfg.AdminMiddleware.Handle)
	if cfg.Degraded {
		protected.Use(func(c *fiber.Ctx) error {
			return apperrors.NewUnavailable("no database configured")
		})
	}
	protected.Get("/status", cfg.Relay.Status)
	protected.Get("/audit", cfg.Relay.Audit)

	protected.Post("/links/:account/secret", cfg.Links.IssueSecret)
	protected.Get("/links/:account", cfg.Links.Status)
	protected.Delete("/links/:account", cfg.Links.Unlink)

	protected.Post("/simulate/ticket", cfg.Simulate.Ticket)
}
