package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"customfields/internal/engine"
	"customfields/internal/metadata"
)

// Middleware validates the bearer token and stores the user under
// c.Locals("user").
func Middleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return engine.UnauthorizedError("Missing auth token")
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return engine.UnauthorizedError("Invalid auth header format")
		}
		claims, err := ParseAccessToken(strings.TrimSpace(token), secret)
		if err != nil {
			return engine.UnauthorizedError("Invalid or expired token")
		}
		c.Locals("user", claims.User())
		return c.Next()
	}
}

// RequireAdmin rejects users without the administrator role.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := GetUser(c)
		if user == nil {
			return engine.UnauthorizedError("Missing auth token")
		}
		if !user.IsAdmin() {
			return engine.ForbiddenError("Admin access required")
		}
		return c.Next()
	}
}

func GetUser(c *fiber.Ctx) *metadata.UserContext {
	user, _ := c.Locals("user").(*metadata.UserContext)
	return user
}
