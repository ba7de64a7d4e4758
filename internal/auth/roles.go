package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/token-gate/pkg/util/errorutil"
)

// Role names issued to credentials.
const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"
)

// RequireRole ensures the principal holds at least one of the allowed roles.
// With no roles given it only requires an authenticated principal.
func RequireRole(allowed ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromCtx(c)
		if !ok {
			return apperrors.NewUnauthorized(UnauthorizedMessage)
		}
		if len(allowed) == 0 || principal.HasAnyRole(allowed...) {
			return c.Next()
		}
		return apperrors.NewForbidden("insufficient role")
	}
}
