package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/ManuelReschke/NutriFox/app/controllers"
	apiv1 "github.com/ManuelReschke/NutriFox/internal/api/v1"
	"github.com/ManuelReschke/NutriFox/internal/pkg/middleware"
	"github.com/ManuelReschke/NutriFox/internal/pkg/ratelimit"
)

// ApiRouter guards /api with an address limiter before authentication and a
// per-user limiter after it.
type ApiRouter struct {
	billing       *controllers.BillingController
	Limiter       fiber.Handler
	Auth          fiber.Handler
	CallerLimiter fiber.Handler
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Authorization, Content-Type, X-API-Key",
		AllowMethods: "GET, OPTIONS",
	}), h.Limiter, h.Auth, h.CallerLimiter)
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	v1.Use("/admin", middleware.RequireAdmin)
	apiServer := apiv1.NewAPIServer(h.billing)
	apiv1.RegisterHandlers(v1, apiServer)
}

func NewApiRouter(billing *controllers.BillingController) *ApiRouter {
	limits := ratelimit.LoadConfig()
	return &ApiRouter{
		billing:       billing,
		Limiter:       ratelimit.NewAddressLimiter(limits),
		Auth:          middleware.APIKeyAuthMiddleware,
		CallerLimiter: ratelimit.NewCallerLimiter(limits),
	}
}
