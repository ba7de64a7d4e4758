package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/juju/clock"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/token-gate/internal/auth"
	"github.com/spec-kit/token-gate/internal/events"
	"github.com/spec-kit/token-gate/internal/repository"
)

// LoginRecorder counts login attempts.
type LoginRecorder interface {
	RecordLogin(result string)
}

// AuthService is the only producer of tokens: it checks credentials and mints
// a token for the verified subject.
type AuthService struct {
	credentials repository.CredentialStore
	verifier    auth.SecretVerifier
	tokens      *auth.TokenCodec
	clock       clock.Clock
	logger      *zap.Logger
	metrics     LoginRecorder
	dispatcher  events.Dispatcher
	dummyHash   string

	// fingerprintKey keys username fingerprints; it lives only as long as the process.
	fingerprintKey []byte
}

// AuthDependencies encapsulates the collaborators of the auth service.
// Metrics and Dispatcher are optional.
type AuthDependencies struct {
	Credentials repository.CredentialStore
	Verifier    auth.SecretVerifier
	Tokens      *auth.TokenCodec
	Clock       clock.Clock
	Logger      *zap.Logger
	Metrics     LoginRecorder
	Dispatcher  events.Dispatcher
	// BcryptCost should match the cost of stored hashes so unknown usernames
	// take as long to reject as wrong passwords.
	BcryptCost int
}

// LoginResult is a freshly issued token.
type LoginResult struct {
	Token  string
	Claims auth.Claims
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) (*AuthService, error) {
	if deps.Credentials == nil || deps.Tokens == nil {
		return nil, errors.New("auth service requires a credential store and a token codec")
	}
	if deps.Verifier == nil {
		deps.Verifier = auth.BcryptVerifier{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.WallClock
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	cost := deps.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	dummy, err := auth.HashPassword("token-gate-timing-equaliser", cost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	fpKey := make([]byte, 32)
	if _, err := rand.Read(fpKey); err != nil {
		return nil, fmt.Errorf("prepare fingerprint key: %w", err)
	}

	return &AuthService{
		credentials: deps.Credentials,
		verifier:    deps.Verifier,
		tokens:      deps.Tokens,
		clock:       deps.Clock,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		dispatcher:  deps.Dispatcher,
		dummyHash:   dummy,

		fingerprintKey: fpKey,
	}, nil
}

// Login authenticates username and password and returns a signed token.
// An unknown username and a wrong password both yield auth.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	cred, err := s.credentials.Lookup(ctx, username)
	switch {
	case errors.Is(err, repository.ErrCredentialNotFound):
		s.verifier.Check(password, s.dummyHash)
		s.failUnknown(ctx, username)
		return nil, auth.ErrInvalidCredentials
	case err != nil:
		s.record("error")
		return nil, fmt.Errorf("lookup credential: %w", err)
	}

	if !s.verifier.Check(password, cred.PasswordHash) {
		s.failWrongSecret(ctx, cred.Username)
		return nil, auth.ErrInvalidCredentials
	}

	token, claims, err := s.tokens.Create(auth.Claims{Subject: cred.Username, IssuedAt: s.clock.Now()})
	if err != nil {
		s.record("error")
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.record("success")
	s.logger.Info("login succeeded", zap.String("subject", claims.Subject), zap.String("token_id", claims.ID))
	s.publish(ctx, events.NewEvent(events.EventLoginSucceeded, claims.Subject, events.LoginPayload{TokenID: claims.ID}))
	return &LoginResult{Token: token, Claims: claims}, nil
}

// failUnknown handles a username that matched no credential. Such input is
// often a mistyped password, so only its fingerprint is logged.
func (s *AuthService) failUnknown(ctx context.Context, username string) {
	fp := s.fingerprint(username)
	s.record("invalid_credentials")
	s.logger.Info("login failed", zap.String("username_fp", fp), zap.String("cause", "unknown_user"))
	s.publish(ctx, events.NewEvent(events.EventLoginFailed, "", events.LoginPayload{
		Reason:              "unknown_user",
		UsernameFingerprint: fp,
	}))
}

func (s *AuthService) failWrongSecret(ctx context.Context, username string) {
	s.record("invalid_credentials")
	s.logger.Info("login failed", zap.String("username", username), zap.String("cause", "wrong_secret"))
	s.publish(ctx, events.NewEvent(events.EventLoginFailed, username, events.LoginPayload{Reason: "wrong_secret"}))
}

// fingerprint lets repeated attempts with the same unknown username be
// correlated in logs without recording the value.
func (s *AuthService) fingerprint(username string) string {
	mac := hmac.New(sha256.New, s.fingerprintKey)
	mac.Write([]byte(username))
	return hex.EncodeToString(mac.Sum(nil)[:8])
}

func (s *AuthService) record(result string) {
	if s.metrics != nil {
		s.metrics.RecordLogin(result)
	}
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("audit publish failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}
