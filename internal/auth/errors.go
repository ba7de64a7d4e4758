package auth

import "errors"

// Token and gate failures. They are distinguished in logs and metrics only;
// the HTTP boundary reports every rejection as the same 401.
var (
	ErrMalformedToken     = errors.New("malformed token")
	ErrInvalidSignature   = errors.New("invalid token signature")
	ErrExpired            = errors.New("token expired")
	ErrMissingToken       = errors.New("missing bearer token")
	ErrUnknownSubject     = errors.New("unknown subject")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidClaims      = errors.New("invalid claims")
)

// Reason returns a short label for a gate or codec error, used as a metric label.
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrMalformedToken):
		return "malformed_token"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrMissingToken):
		return "missing_token"
	case errors.Is(err, ErrUnknownSubject):
		return "unknown_subject"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	default:
		return "other"
	}
}
