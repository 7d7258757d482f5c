package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/gm-relay/internal/game"
	"github.com/spec-kit/gm-relay/internal/service"
	apperrors "github.com/spec-kit/gm-relay/pkg/util"
)

// SimulateHandler injects synthetic ticket events through the same path
// the game uses, for smoke-testing a deployment end to end.
type SimulateHandler struct {
	hooks *service.Hooks
}

// NewSimulateHandler returns a new handler instance.
func NewSimulateHandler(hooks *service.Hooks) *SimulateHandler {
	return &SimulateHandler{hooks: hooks}
}

type simulateTicketRequest struct {
	Event      string `json:"event"`
	ID         uint32 `json:"id"`
	PlayerName string `json:"player_name"`
	Message    string `json:"message"`
	AssignedTo string `json:"assigned_to"`
	Status     string `json:"status"`
	Closed     bool   `json:"closed"`
}

// Ticket enqueues one synthetic ticket event.
func (h *SimulateHandler) Ticket(c *fiber.Ctx) error {
	var req simulateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.ID == 0 {
		return apperrors.NewValidationError("id is required", nil)
	}

	ticket := &game.Ticket{
		ID:         req.ID,
		PlayerName: req.PlayerName,
		Message:    req.Message,
		AssignedTo: req.AssignedTo,
		Status:     req.Status,
		Closed:     req.Closed,
	}

	ctx := c.UserContext()
	var err error
	switch req.Event {
	case "create":
		err = h.hooks.TicketCreated(ctx, ticket)
	case "update":
		err = h.hooks.TicketUpdated(ctx, ticket)
	case "status":
		err = h.hooks.TicketStatusChanged(ctx, ticket)
	case "close":
		err = h.hooks.TicketClosed(ctx, ticket)
	case "resolve":
		err = h.hooks.TicketResolved(ctx, ticket)
	default:
		return apperrors.NewValidationError("event must be one of create, update, status, close, resolve", nil)
	}
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"queued": true})
}
