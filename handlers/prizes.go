// handlers/prizes.go
package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// SetupPrizeRoutes registers the unauthenticated read API.
func SetupPrizeRoutes(app *fiber.App, d *Deps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := d.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": "database unreachable"})
		}
		return c.JSON(fiber.Map{"status": "ok", "time": d.now()})
	})

	app.Get("/prizes", func(c *fiber.Ctx) error {
		view, err := d.Prizes.View(c.UserContext(), d.now())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(view)
	})

	app.Get("/stats", func(c *fiber.Ctx) error {
		stats, err := d.Prizes.Stats(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(stats)
	})
}
