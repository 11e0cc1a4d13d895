package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/verso-labs/companion/pkg/iam"
	"github.com/verso-labs/companion/pkg/kernel"
)

// TokenMiddleware authenticates requests with a bearer token or the
// access_token cookie and stores the AuthContext in fiber locals.
type TokenMiddleware struct {
	tokenService TokenService
}

// NewTokenMiddleware creates the auth middleware
func NewTokenMiddleware(tokenService TokenService) *TokenMiddleware {
	return &TokenMiddleware{
		tokenService: tokenService,
	}
}

// Authenticate requires a valid identity on every request it guards
func (m *TokenMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		var token string

		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" && parts[1] != "" {
				token = parts[1]
			}
		}

		if token == "" {
			token = c.Cookies("access_token")
		}

		if token == "" {
			return iam.ErrUnauthorized()
		}

		authContext, err := m.tokenService.ValidateAccessToken(token)
		if err != nil {
			return err
		}

		if !authContext.IsValid() {
			return iam.ErrUnauthorized().WithDetail("error", "token is missing user identity")
		}

		c.Locals("auth", authContext)
		return c.Next()
	}
}

// GetAuthContext extracts the authenticated identity from fiber locals
func GetAuthContext(c *fiber.Ctx) (*kernel.AuthContext, bool) {
	authContext, ok := c.Locals("auth").(*kernel.AuthContext)
	return authContext, ok && authContext.IsValid()
}
