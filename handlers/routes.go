// handlers/routes.go
package handlers

import (
	"time"

	"prize-hub/middleware"
	"prize-hub/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Deps is everything the HTTP layer needs. Services are built once in main and shared.
type Deps struct {
	DB           *gorm.DB
	Validator    *services.Validator
	Auth         *services.AuthService
	Competitions *services.CompetitionService
	Participants *services.ParticipantService
	Winners      *services.WinnerService
	Prizes       *services.PrizeService
	Settings     *services.SettingsService
	Maintenance  *services.MaintenanceService
	Archive      *services.ArchiveService

	CookieSecure  bool
	LoginThrottle fiber.Handler // optional
	IngestToken   string        // enables the scoring feed push route when set
	Now           func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now == nil {
		return time.Now().UTC()
	}
	return d.Now().UTC()
}

// SetupRoutes registers the public read API and the admin surface.
func SetupRoutes(app *fiber.App, d *Deps) {
	requireAdmin := middleware.AdminAuth(d.Auth)

	SetupPrizeRoutes(app, d)
	SetupAdminRoutes(app, d, requireAdmin)
	SetupCompetitionRoutes(app, d, requireAdmin)
	SetupWinnerRoutes(app, d, requireAdmin)
	SetupSettingsRoutes(app, d, requireAdmin)
}
