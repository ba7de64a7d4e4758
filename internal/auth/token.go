package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/juju/clock"
)

// issuedAtGrace absorbs the gap between a caller reading the clock and Create reading it.
const issuedAtGrace = time.Second

// expiryTick makes the expiry bound inclusive: the parser accepts only
// now < exp+leeway, while a token stays valid through exp+skew itself.
const expiryTick = time.Nanosecond

// Claims is the payload carried by a token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}

// CodecConfig configures a TokenCodec.
type CodecConfig struct {
	SigningKey []byte
	TTL        time.Duration
	ClockSkew  time.Duration
	Issuer     string
	Clock      clock.Clock
}

// TokenCodec issues and verifies HS256 signed tokens. It holds no mutable state
// and is safe for concurrent use.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	skew   time.Duration
	issuer string
	clock  clock.Clock
	parser *jwt.Parser
}

// NewTokenCodec builds a codec.
func NewTokenCodec(cfg CodecConfig) (*TokenCodec, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, errors.New("signing key is empty")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	if cfg.ClockSkew < 0 {
		return nil, errors.New("clock skew must not be negative")
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithLeeway(cfg.ClockSkew + expiryTick),
		jwt.WithTimeFunc(clk.Now),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	key := make([]byte, len(cfg.SigningKey))
	copy(key, cfg.SigningKey)

	return &TokenCodec{
		secret: key,
		ttl:    cfg.TTL,
		skew:   cfg.ClockSkew,
		issuer: cfg.Issuer,
		clock:  clk,
		parser: jwt.NewParser(opts...),
	}, nil
}

// TTL returns the lifetime given to new tokens.
func (tc *TokenCodec) TTL() time.Duration {
	return tc.ttl
}

// Create signs a token for claims. A zero IssuedAt means now; ExpiresAt is
// always IssuedAt plus the configured TTL. The completed claims are returned.
func (tc *TokenCodec) Create(claims Claims) (string, Claims, error) {
	if strings.TrimSpace(claims.Subject) == "" {
		return "", Claims{}, fmt.Errorf("%w: subject is required", ErrInvalidClaims)
	}

	now := tc.clock.Now()
	issuedAt := claims.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = now
	}
	if issuedAt.Before(now.Add(-(tc.skew + issuedAtGrace))) {
		return "", Claims{}, fmt.Errorf("%w: issued-at is in the past", ErrInvalidClaims)
	}

	issuedAt = issuedAt.UTC().Truncate(jwt.TimePrecision)
	out := Claims{
		Subject:   claims.Subject,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(tc.ttl),
		ID:        claims.ID,
	}
	if out.ID == "" {
		out.ID = uuid.NewString()
	}

	registered := jwt.RegisteredClaims{
		Subject:   out.Subject,
		Issuer:    tc.issuer,
		IssuedAt:  jwt.NewNumericDate(out.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(out.ExpiresAt),
		ID:        out.ID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, registered)
	tokenString, err := token.SignedString(tc.secret)
	if err != nil {
		return "", Claims{}, err
	}
	return tokenString, out, nil
}

// Verify checks structure, signature and expiry, in that order, and returns
// the decoded claims. Failures wrap ErrMalformedToken, ErrInvalidSignature or ErrExpired.
func (tc *TokenCodec) Verify(tokenStr string) (Claims, error) {
	var registered jwt.RegisteredClaims
	parsed, err := tc.parser.ParseWithClaims(tokenStr, &registered, tc.keyFunc)
	if err != nil {
		return Claims{}, classifyParseError(err)
	}
	if !parsed.Valid {
		return Claims{}, ErrMalformedToken
	}
	if registered.Subject == "" || registered.IssuedAt == nil || registered.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%w: missing required claim", ErrMalformedToken)
	}

	return Claims{
		Subject:   registered.Subject,
		IssuedAt:  registered.IssuedAt.Time.UTC(),
		ExpiresAt: registered.ExpiresAt.Time.UTC(),
		ID:        registered.ID,
	}, nil
}

func (tc *TokenCodec) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return tc.secret, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		// unknown alg, missing exp, wrong issuer
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}
