package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/token-gate/internal/api/dto"
	"github.com/spec-kit/token-gate/internal/auth"
	apperrors "github.com/spec-kit/token-gate/pkg/util/errorutil"
)

// Greeting is the body of the protected hello endpoints.
const Greeting = "Hello, authenticated user!"

// ProtectedHandler serves endpoints that only run behind the gate.
type ProtectedHandler struct{}

// NewProtectedHandler constructs handler.
func NewProtectedHandler() *ProtectedHandler {
	return &ProtectedHandler{}
}

// Hello handles GET /protected and GET /auth/hello.
func (h *ProtectedHandler) Hello(c *fiber.Ctx) error {
	return c.SendString(Greeting)
}

// Me handles GET /auth/me.
func (h *ProtectedHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromCtx(c)
	if !ok {
		return apperrors.NewUnauthorized(auth.UnauthorizedMessage)
	}
	roles := principal.Roles
	if roles == nil {
		roles = []string{}
	}
	return c.JSON(dto.PrincipalResponse{Subject: principal.Subject, Roles: roles})
}
