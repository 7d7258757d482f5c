package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/gm-relay/pkg/util"
)

const claimsKey = "auth_claims"

// AdminMiddleware validates bearer tokens on the ops API.
type AdminMiddleware struct {
	tokens *TokenManager
}

// NewAdminMiddleware constructs middleware.
func NewAdminMiddleware(tokens *TokenManager) *AdminMiddleware {
	return &AdminMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AdminMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	if claims.Role != RoleAdmin {
		return apperrors.NewForbidden("admin role required")
	}

	c.Locals(claimsKey, claims)
	return c.Next()
}

// ClaimsFromContext retrieves the authenticated claims.
func ClaimsFromContext(c *fiber.Ctx) (*Claims, bool) {
	val := c.Locals(claimsKey)
	if val == nil {
		return nil, false
	}
	claims, ok := val.(*Claims)
	return claims, ok
}
