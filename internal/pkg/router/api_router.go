package router

import (
	"github.com/gofiber/fiber/v2"

	apiv1 "github.com/carsalesplatform/carsales/internal/api/v1"
)

type ApiRouter struct {
	server  *apiv1.APIServer
	limiter LimiterConfig
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")
	apiv1.RegisterHandlers(v1, h.server, apiv1.Options{
		UploadLimiter: NewUploadLimiter(h.limiter),
	})
}

func NewApiRouter(server *apiv1.APIServer, limiter LimiterConfig) *ApiRouter {
	return &ApiRouter{server: server, limiter: limiter}
}
