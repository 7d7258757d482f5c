package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/gm-relay/internal/service"
	apperrors "github.com/spec-kit/gm-relay/pkg/util"
)

// LinkHandler lets operators manage account links when a player cannot
// complete the in-game flow themselves.
type LinkHandler struct {
	links *service.LinkService
}

// NewLinkHandler returns a new handler instance.
func NewLinkHandler(links *service.LinkService) *LinkHandler {
	return &LinkHandler{links: links}
}

func accountIDParam(c *fiber.Ctx) (uint32, error) {
	id, err := strconv.ParseUint(c.Params("account"), 10, 32)
	if err != nil {
		return 0, apperrors.NewValidationError("account must be a numeric id", nil)
	}
	return uint32(id), nil
}

type issueSecretRequest struct {
	GMName string `json:"gm_name"`
}

// IssueSecret mints a one-time link secret for an account. The secret
// appears in this response only; it is stored hashed.
func (h *LinkHandler) IssueSecret(c *fiber.Ctx) error {
	accountID, err := accountIDParam(c)
	if err != nil {
		return err
	}
	var req issueSecretRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.GMName == "" {
		return apperrors.NewValidationError("gm_name is required", nil)
	}

	secret, err := h.links.IssueSecret(c.UserContext(), accountID, req.GMName)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"secret": secret})
}

// Status returns the link state for an account.
func (h *LinkHandler) Status(c *fiber.Ctx) error {
	accountID, err := accountIDParam(c)
	if err != nil {
		return err
	}

	link, err := h.links.Status(c.UserContext(), accountID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if link == nil {
		return apperrors.NewNotFound("link", fiber.Map{"account_id": accountID})
	}

	resp := fiber.Map{
		"account_id": link.AccountID,
		"gm_name":    link.GMName,
		"verified":   link.Verified,
		"updated_at": link.UpdatedAt,
	}
	if link.ActorID != nil {
		resp["actor_id"] = *link.ActorID
	}
	if link.SecretExpiresAt != nil {
		resp["secret_expires_at"] = *link.SecretExpiresAt
	}
	return c.JSON(resp)
}

// Unlink removes an account's link.
func (h *LinkHandler) Unlink(c *fiber.Ctx) error {
	accountID, err := accountIDParam(c)
	if err != nil {
		return err
	}
	if err := h.links.Unlink(c.UserContext(), accountID); err != nil {
		return apperrors.MapError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
