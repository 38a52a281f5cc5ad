package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/carsalesplatform/carsales/internal/pkg/usercontext"
)

// RequireAPIAuth rejects anonymous API requests with a JSON 401.
func RequireAPIAuth(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	return c.Next()
}
