// handlers/settings.go
package handlers

import (
	"prize-hub/services"

	"github.com/gofiber/fiber/v2"
)

// SetupSettingsRoutes registers the admin key/value configuration endpoints.
func SetupSettingsRoutes(app *fiber.App, d *Deps, requireAdmin fiber.Handler) {
	app.Get("/settings", requireAdmin, func(c *fiber.Ctx) error {
		settings, err := d.Settings.List(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(settings)
	})

	app.Put("/settings", requireAdmin, func(c *fiber.Ctx) error {
		var in services.SettingInput
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		setting, err := d.Settings.Put(c.UserContext(), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(setting)
	})
}
