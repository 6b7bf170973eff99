package handlers

import (
	"token-vesting-service/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes mounts every route. The caller installs GatewayAuthMiddleware globally
// first, so all of these require the gateway token.
func SetupRoutes(app *fiber.App, grants *GrantHandler, campaigns *CampaignHandler) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	grants.registerStream(app)

	// 🔐 Beneficiary routes: the gateway forwards /api/v1/vesting/s/user/... -> /user/...
	user := app.Group("/user", middleware.UserContextMiddleware())

	// 🔒 Admin-only routes
	admin := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireRole("admin", "super_admin"))

	grants.register(user, admin)
	campaigns.register(admin)
}
