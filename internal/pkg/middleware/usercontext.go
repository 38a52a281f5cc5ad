package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/carsalesplatform/carsales/internal/pkg/usercontext"
)

// maxUserIDLength matches the owner_id column width.
const maxUserIDLength = 64

// UserContextMiddleware turns the identity header set by the auth proxy into
// a UserContext. Requests without a usable header are anonymous.
func UserContextMiddleware(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Get(usercontext.HeaderUserID))
	if len(userID) > maxUserIDLength {
		userID = ""
	}

	c.Locals(usercontext.KeyUserContext, usercontext.UserContext{
		UserID:     userID,
		IsLoggedIn: userID != "",
	})
	if userID != "" {
		c.Locals(usercontext.KeyUserID, userID)
	}
	return c.Next()
}
