package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/midiconv/internal/auth"
	"github.com/makeasinger/midiconv/pkg/response"
)

// GatewayAuthMiddleware reads user identity from X-User-* headers
// set by Traefik ForwardAuth.
func GatewayAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-Id")
		if userID == "" {
			return response.Unauthorized(c, "Missing user identity headers")
		}

		tenant := c.Get("X-User-Tenant")
		if tenant == "" {
			tenant = userID
		}
		SetIdentity(c, &auth.Identity{
			UserID: userID,
			Email:  c.Get("X-User-Email"),
			Name:   c.Get("X-User-Name"),
			Tenant: tenant,
		})
		return c.Next()
	}
}
