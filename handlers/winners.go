// handlers/winners.go
package handlers

import (
	"context"

	"prize-hub/models"
	"prize-hub/services"

	"github.com/gofiber/fiber/v2"
)

// SetupWinnerRoutes registers winner CRUD and the payout state machine actions. All of it
// is admin only.
func SetupWinnerRoutes(app *fiber.App, d *Deps, requireAdmin fiber.Handler) {
	winners := app.Group("/winners")

	winners.Get("/", requireAdmin, func(c *fiber.Ctx) error {
		list, err := d.Winners.List(c.UserContext(), c.Query("competition_id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	})

	winners.Post("/", requireAdmin, func(c *fiber.Ctx) error {
		var in services.WinnerInput
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		w, err := d.Winners.Create(c.UserContext(), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(w)
	})

	slotAction := func(action func(ctx context.Context, ref services.SlotRef) (*models.Winner, error)) fiber.Handler {
		return func(c *fiber.Ctx) error {
			var ref services.SlotRef
			if err := parseBody(c, &ref); err != nil {
				return respondError(c, err)
			}
			w, err := action(c.UserContext(), ref)
			if err != nil {
				return respondError(c, err)
			}
			return c.JSON(w)
		}
	}
	winners.Post("/approve", requireAdmin, slotAction(d.Winners.Approve))
	winners.Post("/revoke", requireAdmin, slotAction(d.Winners.Revoke))
	winners.Post("/reinstate", requireAdmin, slotAction(d.Winners.Reinstate))

	winners.Post("/disqualify", requireAdmin, func(c *fiber.Ctx) error {
		var ref services.SlotRef
		if err := parseBody(c, &ref); err != nil {
			return respondError(c, err)
		}
		result, err := d.Winners.Disqualify(c.UserContext(), ref)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(result)
	})

	winners.Post("/paid", requireAdmin, func(c *fiber.Ctx) error {
		var req services.MarkPaidRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		w, err := d.Winners.MarkPaid(c.UserContext(), req)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(w)
	})

	winners.Put("/:id", requireAdmin, func(c *fiber.Ctx) error {
		var upd services.WinnerUpdate
		if err := parseBody(c, &upd); err != nil {
			return respondError(c, err)
		}
		w, err := d.Winners.Update(c.UserContext(), c.Params("id"), upd)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(w)
	})

	winners.Delete("/:id", requireAdmin, func(c *fiber.Ctx) error {
		if err := d.Winners.Delete(c.UserContext(), c.Params("id")); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"success": true})
	})
}
