package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/gm-relay/internal/observability"
	"github.com/spec-kit/gm-relay/internal/repository"
	apperrors "github.com/spec-kit/gm-relay/pkg/util"
)

// RelayHandler exposes queue depths and the audit trail to operators.
type RelayHandler struct {
	outbox  repository.OutboxRepository
	inbox   repository.InboxRepository
	audit   repository.AuditRepository
	metrics *observability.Metrics
}

// NewRelayHandler returns a new handler instance.
func NewRelayHandler(
	outbox repository.OutboxRepository,
	inbox repository.InboxRepository,
	audit repository.AuditRepository,
	metrics *observability.Metrics,
) *RelayHandler {
	return &RelayHandler{outbox: outbox, inbox: inbox, audit: audit, metrics: metrics}
}

// Status reports queue depths and relay counters.
func (h *RelayHandler) Status(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	outboxDepth, err := h.outbox.CountPending(ctx)
	if err != nil {
		return apperrors.MapError(err)
	}
	inboxDepth, err := h.inbox.CountPending(ctx)
	if err != nil {
		return apperrors.MapError(err)
	}
	dispatched, processed, errCounts := h.metrics.Snapshot()

	return c.JSON(fiber.Map{
		"queues": fiber.Map{
			"outbox_pending": outboxDepth,
			"inbox_pending":  inboxDepth,
		},
		"counters": fiber.Map{
			"dispatched": dispatched,
			"processed":  processed,
			"errors":     errCounts,
		},
	})
}

// Audit returns the most recent audit rows.
func (h *RelayHandler) Audit(c *fiber.Ctx) error {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			return apperrors.NewValidationError("limit must be between 1 and 500", nil)
		}
		limit = parsed
	}

	records, err := h.audit.ListRecent(c.UserContext(), limit)
	if err != nil {
		return apperrors.MapError(err)
	}

	items := make([]fiber.Map, 0, len(records))
	for _, record := range records {
		items = append(items, fiber.Map{
			"id":         record.ID,
			"actor_id":   record.ActorID,
			"account_id": record.AccountID,
			"action":     record.Action,
			"category":   record.Category,
			"status":     record.Status,
			"detail":     record.Detail,
			"created_at": record.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"items": items})
}
