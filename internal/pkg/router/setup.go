package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/carsalesplatform/carsales/internal/pkg/middleware"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter applies the identity middleware and installs every router.
func InstallRouter(app *fiber.App, routers ...Router) {
	app.Use(middleware.UserContextMiddleware)
	setup(app, routers...)
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
