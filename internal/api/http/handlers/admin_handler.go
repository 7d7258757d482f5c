package handlers

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/gm-relay/internal/auth"
	apperrors "github.com/spec-kit/gm-relay/pkg/util"
)

// AdminHandler exchanges the shared operator key for a short-lived
// token.
type AdminHandler struct {
	apiKey string
	tokens *auth.TokenManager
}

// NewAdminHandler returns a new handler instance.
func NewAdminHandler(apiKey string, tokens *auth.TokenManager) *AdminHandler {
	return &AdminHandler{apiKey: apiKey, tokens: tokens}
}

type tokenRequest struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// Token issues an admin JWT when the shared key matches.
func (h *AdminHandler) Token(c *fiber.Ctx) error {
	if h.apiKey == "" {
		return apperrors.NewForbidden("admin token issuance disabled")
	}

	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if subtle.ConstantTimeCompare([]byte(req.Key), []byte(h.apiKey)) != 1 {
		return apperrors.NewUnauthorized("invalid admin key")
	}
	if req.Name == "" {
		req.Name = "operator"
	}

	token, expiresAt, err := h.tokens.GenerateToken(req.Name)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{
		"token":      token,
		"expires_at": expiresAt,
	})
}
