package middleware

import (
	"strings"

	"bes-loan/internal/core/domain"
	"bes-loan/internal/core/services"
	"bes-loan/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by AuthMiddleware
const (
	LocalCaller     = "caller"
	LocalUserID     = "userID"
	LocalCredential = "credential"
)

// AuthMiddleware resolves the caller through the Access Gate
func AuthMiddleware(auth services.Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var accessToken string

		// 1. Try Authorization header first (service-to-service calls only send this)
		authHeader := c.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			accessToken = strings.TrimPrefix(authHeader, "Bearer ")
		}

		// 2. Fall back to the login cookie
		if accessToken == "" {
			accessToken = c.Cookies("access_token")
		}

		// 3. No token found
		if accessToken == "" {
			return response.ErrorWithKind(c, fiber.StatusUnauthorized,
				string(domain.KindUnauthenticated), "Access token required")
		}

		// 4. Authenticate
		identity, err := auth.Authenticate(c.UserContext(), accessToken)
		if err != nil {
			return response.FromError(c, err)
		}

		// 5. Set caller in context
		c.Locals(LocalCaller, *identity)
		c.Locals(LocalUserID, identity.UserID)
		c.Locals(LocalCredential, accessToken)

		return c.Next()
	}
}

// Caller returns the identity AuthMiddleware stored on c
func Caller(c *fiber.Ctx) (domain.CallerIdentity, bool) {
	identity, ok := c.Locals(LocalCaller).(domain.CallerIdentity)
	return identity, ok
}

// RequireRole lets the request through only when AuthMiddleware resolved one of roles
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := Caller(c)
		if !ok {
			return response.FromError(c, domain.ErrUnauthenticated)
		}

		for _, role := range roles {
			if identity.Role == role {
				return c.Next()
			}
		}
		return response.FromError(c, domain.ErrServiceOnly)
	}
}

// ServiceOnly allows only credentials minted for service-to-service calls
func ServiceOnly() fiber.Handler {
	return RequireRole(domain.RoleService)
}
