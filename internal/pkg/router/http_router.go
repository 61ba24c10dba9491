package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"github.com/ManuelReschke/NutriFox/app/controllers"
	"github.com/ManuelReschke/NutriFox/internal/pkg/env"
)

type HttpRouter struct {
	billing *controllers.BillingController
	// MetricsUsers are the basic auth credentials of /metrics. Empty
	// disables the metrics routes.
	MetricsUsers map[string]string
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	h.registerWebhookRoutes(app)
	h.registerMetricsRoutes(app)
}

func (h HttpRouter) registerWebhookRoutes(app *fiber.App) {
	app.Options("/webhooks/payments", controllers.HandleWebhookPreflight)
	app.Post("/webhooks/payments", h.billing.HandlePaymentWebhook)
}

func (h HttpRouter) registerMetricsRoutes(app *fiber.App) {
	if len(h.MetricsUsers) == 0 {
		log.Warn("[Router] METRICS_PASSWORD not set, /metrics is disabled")
		return
	}
	metrics := app.Group("/metrics", basicauth.New(basicauth.Config{
		Users: h.MetricsUsers,
	}))
	metrics.Get("/billing", h.billing.HandleBillingMetrics)
	metrics.Get("/", monitor.New(monitor.Config{Title: "NutriFox Metrics"}))
}

func NewHttpRouter(billing *controllers.BillingController) *HttpRouter {
	return &HttpRouter{
		billing:      billing,
		MetricsUsers: metricsUsersFromEnv(),
	}
}

func metricsUsersFromEnv() map[string]string {
	user := env.GetEnv("METRICS_USER", "admin")
	password := env.GetEnv("METRICS_PASSWORD", "")
	if password == "" && env.IsDev() {
		password = "test"
	}
	if password == "" {
		return nil
	}
	return map[string]string{user: password}
}
