package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/token-gate/internal/events"
)

// AuditEventTypes lists the events the audit log records.
var AuditEventTypes = []events.EventType{
	events.EventLoginSucceeded,
	events.EventLoginFailed,
	events.EventRequestRejected,
}

// AuditService writes authentication events to the audit log.
type AuditService struct {
	logger *zap.Logger
}

// NewAuditService creates the service. Events are logged under the "audit"
// logger name so they can be routed separately.
func NewAuditService(logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{logger: logger.Named("audit")}
}

// Handle records one event.
func (a *AuditService) Handle(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("subject", event.Subject),
		zap.Time("at", event.Timestamp),
	}

	switch event.Type {
	case events.EventLoginSucceeded:
		if p, ok := event.Payload.(events.LoginPayload); ok {
			fields = append(fields, zap.String("token_id", p.TokenID))
		}
		a.logger.Info("LoginSucceeded", fields...)
	case events.EventLoginFailed:
		if p, ok := event.Payload.(events.LoginPayload); ok {
			fields = append(fields, zap.String("reason", p.Reason))
			if p.UsernameFingerprint != "" {
				fields = append(fields, zap.String("username_fp", p.UsernameFingerprint))
			}
		}
		a.logger.Warn("LoginFailed", fields...)
	case events.EventRequestRejected:
		if p, ok := event.Payload.(events.RejectionPayload); ok {
			fields = append(fields,
				zap.String("method", p.Method),
				zap.String("path", p.Path),
				zap.String("reason", p.Reason),
				zap.String("ip", p.IP),
			)
		}
		a.logger.Info("RequestRejected", fields...)
	default:
		return fmt.Errorf("audit: unsupported event type %q", event.Type)
	}
	return nil
}
