package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/token-gate/internal/domain"
	"github.com/spec-kit/token-gate/internal/events"
	apperrors "github.com/spec-kit/token-gate/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// UnauthorizedMessage is the only text a rejected client ever sees.
const UnauthorizedMessage = "unauthorized"

type principalContextKey struct{}

// WithPrincipal returns a context carrying the principal.
func WithPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext retrieves the principal attached by the gate.
func PrincipalFromContext(ctx context.Context) (*domain.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*domain.Principal)
	return p, ok && p != nil
}

// PrincipalFromCtx retrieves the authenticated entity from fiber locals.
func PrincipalFromCtx(c *fiber.Ctx) (*domain.Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*domain.Principal)
	return principal, ok
}

// OutcomeRecorder counts gate decisions.
type OutcomeRecorder interface {
	RecordGateOutcome(outcome, reason string)
}

// AuthMiddleware adapts the Gate to fiber.
type AuthMiddleware struct {
	gate       *Gate
	logger     *zap.Logger
	metrics    OutcomeRecorder
	dispatcher events.Dispatcher
}

// NewAuthMiddleware constructs middleware. metrics and dispatcher may be nil.
func NewAuthMiddleware(gate *Gate, logger *zap.Logger, metrics OutcomeRecorder, dispatcher events.Dispatcher) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{gate: gate, logger: logger, metrics: metrics, dispatcher: dispatcher}
}

// Handle evaluates the gate for every request. Rejections return the same
// 401 regardless of cause; the cause goes to logs, metrics and audit events.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	decision, err := m.gate.Evaluate(c.UserContext(), c.Path(), c.Get(fiber.HeaderAuthorization))
	if err != nil {
		m.logger.Error("gate evaluation failed", zap.String("path", c.Path()), zap.Error(err))
		m.record("error", "store_failure")
		return apperrors.NewInternalError(err)
	}

	reason := Reason(decision.Reason)
	m.record(string(decision.Outcome), reason)

	if !decision.Allowed() {
		m.logger.Info("request rejected",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("reason", reason),
			zap.NamedError("cause", decision.Reason),
		)
		m.publish(c, events.NewEvent(events.EventRequestRejected, "", events.RejectionPayload{
			Method: c.Method(),
			Path:   c.Path(),
			Reason: reason,
			IP:     c.IP(),
		}))
		return apperrors.NewUnauthorized(UnauthorizedMessage)
	}

	if decision.Principal != nil {
		c.Locals(principalKey, decision.Principal)
		c.SetUserContext(WithPrincipal(c.UserContext(), decision.Principal))
	}
	return c.Next()
}

func (m *AuthMiddleware) record(outcome, reason string) {
	if m.metrics != nil {
		m.metrics.RecordGateOutcome(outcome, reason)
	}
}

func (m *AuthMiddleware) publish(c *fiber.Ctx, event events.Event) {
	if m.dispatcher == nil {
		return
	}
	if err := m.dispatcher.Publish(c.UserContext(), event); err != nil {
		m.logger.Warn("audit publish failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}
