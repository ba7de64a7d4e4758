package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spec-kit/token-gate/internal/domain"
	"github.com/spec-kit/token-gate/internal/repository"
)

// Outcome is the terminal state of a gate evaluation.
type Outcome string

const (
	OutcomeAllowed  Outcome = "allowed"
	OutcomeRejected Outcome = "rejected"
)

// Decision is the result of evaluating one request.
type Decision struct {
	Outcome   Outcome
	Reason    error
	Principal *domain.Principal
	Claims    *Claims
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllowed
}

func reject(reason error) Decision {
	return Decision{Outcome: OutcomeRejected, Reason: reason}
}

// TokenVerifier decodes and checks a presented token.
type TokenVerifier interface {
	Verify(token string) (Claims, error)
}

// Gate decides whether a request may reach application handlers.
type Gate struct {
	policy *Policy
	tokens TokenVerifier
	store  repository.CredentialStore
}

// NewGate builds a gate over the ordered policy, a verifier and the credential store.
func NewGate(policy *Policy, tokens TokenVerifier, store repository.CredentialStore) *Gate {
	return &Gate{policy: policy, tokens: tokens, store: store}
}

// Evaluate runs the per-request state machine. A non-nil error means the
// credential store failed for a reason other than the subject being absent.
func (g *Gate) Evaluate(ctx context.Context, path, authorization string) (Decision, error) {
	if g.policy.Classify(path) == AccessPublic {
		return Decision{Outcome: OutcomeAllowed}, nil
	}

	token, ok := BearerToken(authorization)
	if !ok {
		return reject(ErrMissingToken), nil
	}

	claims, err := g.tokens.Verify(token)
	if err != nil {
		return reject(err), nil
	}

	if err := ctx.Err(); err != nil {
		return reject(err), nil
	}

	cred, err := g.store.Lookup(ctx, claims.Subject)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCredentialNotFound):
			return reject(fmt.Errorf("%w: %s", ErrUnknownSubject, claims.Subject)), nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return reject(err), nil
		default:
			return Decision{}, fmt.Errorf("lookup subject: %w", err)
		}
	}

	roles := make([]string, len(cred.Roles))
	copy(roles, cred.Roles)
	return Decision{
		Outcome:   OutcomeAllowed,
		Principal: &domain.Principal{Subject: claims.Subject, Roles: roles},
		Claims:    &claims,
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
