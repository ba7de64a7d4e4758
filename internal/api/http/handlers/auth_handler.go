package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/token-gate/internal/api/dto"
	"github.com/spec-kit/token-gate/internal/auth"
	"github.com/spec-kit/token-gate/internal/service"
	apperrors "github.com/spec-kit/token-gate/pkg/util/errorutil"
)

// InvalidCredentialsMessage is returned for every failed login, whatever the cause.
const InvalidCredentialsMessage = "invalid credentials"

// AuthHandler exposes the login endpoint.
type AuthHandler struct {
	auth      *service.AuthService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		auth:      authService,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("failed to decode login body", zap.Error(err))
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if err := h.validator.Struct(req); err != nil {
		return apperrors.NewValidationError("validation failed", map[string]any{
			"fields": validationDetails(err),
		})
	}

	result, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return apperrors.NewUnauthorized(InvalidCredentialsMessage)
		}
		return apperrors.NewInternalError(err)
	}

	return c.JSON(dto.AuthResponse{Token: result.Token, ExpiresAt: result.Claims.ExpiresAt})
}

func validationDetails(err error) []dto.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []dto.FieldError{{Rule: "invalid"}}
	}
	out := make([]dto.FieldError, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, dto.FieldError{Field: e.Field(), Rule: e.Tag(), Param: e.Param()})
	}
	return out
}
