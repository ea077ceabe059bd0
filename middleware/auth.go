// middleware/auth.go
package middleware

import (
	"strings"

	"dance-battle-system/utils"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts user identity and roles set by the Gateway.
// Public routes carry identity when the caller is logged in; routes under /s/
// require it.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		handle := c.Get("X-User-ID")
		rolesStr := c.Get("X-User-Roles")

		path := c.Path()
		isSecured := strings.HasPrefix(path, "/s/")
		if isSecured && handle == "" {
			utils.Warn("X-User-ID required but missing on secured route", "path", path)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}

		var roles []string
		if rolesStr != "" {
			for _, r := range strings.Split(rolesStr, ",") {
				r = strings.TrimSpace(r)
				if r != "" {
					roles = append(roles, r)
				}
			}
		}

		// Attach to ctx for handlers
		c.Locals("user_handle", handle)
		c.Locals("user_roles", roles)

		return c.Next()
	}
}
