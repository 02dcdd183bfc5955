// middleware/auth.go
package middleware

import (
	"context"
	"errors"
	"log"
	"strings"

	"prize-hub/models"
	"prize-hub/services"

	"github.com/gofiber/fiber/v2"
)

const (
	SessionCookie = "admin_session"
	adminLocalKey = "admin"
)

// SessionVerifier resolves a session token to an active admin.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (*models.AdminUser, error)
}

// SessionToken reads the token from "Authorization: Bearer" first, then the session cookie.
func SessionToken(c *fiber.Ctx) string {
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
		if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return c.Cookies(SessionCookie)
}

// AdminAuth rejects the request unless it carries a token for an active admin.
func AdminAuth(verifier SessionVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := SessionToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
		}

		admin, err := verifier.Verify(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, services.ErrUnauthorized) {
				log.Printf("🚫 [ADMIN_AUTH] rejected token on %s %s", c.Method(), c.Path())
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired session"})
			}
			log.Printf("❌ [ADMIN_AUTH] verify failed on %s: %v", c.Path(), err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
		}

		c.Locals(adminLocalKey, admin)
		return c.Next()
	}
}

// CurrentAdmin returns the admin attached by AdminAuth, or nil.
func CurrentAdmin(c *fiber.Ctx) *models.AdminUser {
	admin, _ := c.Locals(adminLocalKey).(*models.AdminUser)
	return admin
}
