// handlers/admin.go
package handlers

import (
	"time"

	"prize-hub/middleware"
	"prize-hub/services"

	"github.com/gofiber/fiber/v2"
)

func sessionCookie(token string, expires time.Time, secure bool) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	}
}

// SetupAdminRoutes registers login, session and maintenance endpoints.
func SetupAdminRoutes(app *fiber.App, d *Deps, requireAdmin fiber.Handler) {
	login := []fiber.Handler{}
	if d.LoginThrottle != nil {
		login = append(login, d.LoginThrottle)
	}
	login = append(login, func(c *fiber.Ctx) error {
		var req services.LoginRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		if err := d.Validator.Struct(&req); err != nil {
			return respondError(c, err)
		}

		result, err := d.Auth.Login(c.UserContext(), req.Username, req.Password)
		if err != nil {
			return respondError(c, err)
		}

		c.Cookie(sessionCookie(result.Token, result.ExpiresAt, d.CookieSecure))
		return c.JSON(result)
	})
	app.Post("/admin/login", login...)

	app.Post("/admin/logout", func(c *fiber.Ctx) error {
		c.Cookie(sessionCookie("", time.Unix(0, 0), d.CookieSecure))
		return c.JSON(fiber.Map{"success": true})
	})

	admin := app.Group("/admin")

	admin.Get("/me", requireAdmin, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"admin": middleware.CurrentAdmin(c)})
	})

	admin.Post("/change-password", requireAdmin, func(c *fiber.Ctx) error {
		var req services.ChangePasswordRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		if err := d.Validator.Struct(&req); err != nil {
			return respondError(c, err)
		}

		current := middleware.CurrentAdmin(c)
		if err := d.Auth.ChangePassword(c.UserContext(), current.ID, req.CurrentPassword, req.NewPassword); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"success": true})
	})

	admin.Post("/maintenance/dedup", requireAdmin, func(c *fiber.Ctx) error {
		report, err := d.Maintenance.Dedup(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(report)
	})
}
