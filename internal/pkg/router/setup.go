package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/NutriFox/app/controllers"
)

// Router installs a set of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

func InstallRouter(app *fiber.App) {
	// The billing controller must be initialized before routes are bound.
	billing := controllers.GetBillingController()
	setup(app, NewHttpRouter(billing), NewApiRouter(billing))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
