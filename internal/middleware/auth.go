package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/midiconv/internal/auth"
	"github.com/makeasinger/midiconv/pkg/response"
)

const identityKey = "identity"

// AuthMiddleware authenticates bearer tokens
type AuthMiddleware struct {
	auth *auth.Authenticator
}

func NewAuthMiddleware(a *auth.Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: a}
}

// Authenticate validates the Authorization header and stores the caller's
// identity in the context
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := m.auth.FromHeader(c.Get("Authorization"))
		if err != nil {
			if errors.Is(err, auth.ErrMissingHeader) || errors.Is(err, auth.ErrBadHeader) || errors.Is(err, auth.ErrNotConfigured) {
				return response.Unauthorized(c, err.Error())
			}
			return response.Unauthorized(c, "Invalid or expired token")
		}
		SetIdentity(c, id)
		return c.Next()
	}
}

// SetIdentity stores the caller for downstream handlers
func SetIdentity(c *fiber.Ctx, id *auth.Identity) {
	c.Locals(identityKey, id)
}

// GetIdentity returns the authenticated caller, or nil
func GetIdentity(c *fiber.Ctx) *auth.Identity {
	id, _ := c.Locals(identityKey).(*auth.Identity)
	return id
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	if id := GetIdentity(c); id != nil {
		return id.UserID
	}
	return ""
}

// GetTenant returns the tenant jobs are scoped to
func GetTenant(c *fiber.Ctx) string {
	if id := GetIdentity(c); id != nil {
		return id.Tenant
	}
	return ""
}
