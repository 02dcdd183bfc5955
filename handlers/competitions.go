// handlers/competitions.go
package handlers

import (
	"prize-hub/middleware"
	"prize-hub/services"

	"github.com/gofiber/fiber/v2"
)

// SetupCompetitionRoutes registers competition CRUD, the participant ledger and the
// end-of-competition actions.
func SetupCompetitionRoutes(app *fiber.App, d *Deps, requireAdmin fiber.Handler) {
	// 🔓 Public
	app.Get("/competitions", func(c *fiber.Ctx) error {
		competitions, err := d.Competitions.List(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(competitions)
	})

	app.Get("/competitions/:id/participants", func(c *fiber.Ctx) error {
		competition, participants, err := d.Participants.List(c.UserContext(), c.Params("id"), c.Query("q"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"competition": competition, "participants": participants})
	})

	// 🔐 Admin
	app.Post("/competitions", requireAdmin, func(c *fiber.Ctx) error {
		var in services.CompetitionInput
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		competition, err := d.Competitions.Create(c.UserContext(), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(competition)
	})

	app.Put("/competitions/:id", requireAdmin, func(c *fiber.Ctx) error {
		var in services.CompetitionInput
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		competition, err := d.Competitions.Update(c.UserContext(), c.Params("id"), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(competition)
	})

	app.Delete("/competitions/:id", requireAdmin, func(c *fiber.Ctx) error {
		if err := d.Competitions.Delete(c.UserContext(), c.Params("id")); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"success": true})
	})

	ingest := func(c *fiber.Ctx) error {
		var req services.IngestRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		result, err := d.Participants.Ingest(c.UserContext(), c.Params("id"), req)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(result)
	}
	app.Post("/competitions/:id/participants", requireAdmin, ingest)
	if d.IngestToken != "" {
		// 🤖 Scoring feed push
		app.Post("/feed/competitions/:id/participants", middleware.ServiceTokenAuth(d.IngestToken), ingest)
	}

	app.Post("/competitions/:id/finalize", requireAdmin, func(c *fiber.Ctx) error {
		created, err := d.Winners.Finalize(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"created": len(created), "winners": created})
	})

	app.Post("/competitions/:id/archive", requireAdmin, func(c *fiber.Ctx) error {
		result, err := d.Archive.Archive(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(result)
	})
}
