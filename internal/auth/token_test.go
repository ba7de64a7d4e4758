package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var (
	testSecret = []byte("token-codec-test-secret-32-bytes")
	epoch      = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
)

func newTestCodec(t *testing.T, clk *testclock.Clock, skew time.Duration) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec(CodecConfig{
		SigningKey: testSecret,
		TTL:        5 * time.Minute,
		ClockSkew:  skew,
		Clock:      clk,
	})
	require.NoError(t, err)
	return codec
}

func TestNewTokenCodecValidatesConfig(t *testing.T) {
	_, err := NewTokenCodec(CodecConfig{TTL: time.Minute})
	assert.Error(t, err)

	_, err = NewTokenCodec(CodecConfig{SigningKey: testSecret})
	assert.Error(t, err)

	_, err = NewTokenCodec(CodecConfig{SigningKey: testSecret, TTL: time.Minute, ClockSkew: -time.Second})
	assert.Error(t, err)
}

func TestTokenCodecRoundTrip(t *testing.T) {
	clk := testclock.NewClock(epoch)
	codec := newTestCodec(t, clk, time.Second)

	token, issued, err := codec.Create(Claims{Subject: "user", IssuedAt: clk.Now()})
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(token, ".")))
	assert.True(t, issued.ExpiresAt.Equal(epoch.Add(5*time.Minute)))
	assert.NotEmpty(t, issued.ID)

	got, err := codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user", got.Subject)
	assert.Equal(t, issued.ID, got.ID)
	assert.True(t, got.IssuedAt.Equal(issued.IssuedAt))
	assert.True(t, got.ExpiresAt.Equal(issued.ExpiresAt))
}

func TestTokenCodecCreateDefaultsIssuedAt(t *testing.T) {
	clk := testclock.NewClock(epoch.Add(750 * time.Millisecond))
	codec := newTestCodec(t, clk, 0)

	_, issued, err := codec.Create(Claims{Subject: "user"})
	require.NoError(t, err)
	assert.True(t, issued.IssuedAt.Equal(epoch), "issued-at is truncated to whole seconds")
	assert.True(t, issued.ExpiresAt.After(issued.IssuedAt))
}

func TestTokenCodecCreateRejectsInvalidClaims(t *testing.T) {
	clk := testclock.NewClock(epoch)
	codec := newTestCodec(t, clk, time.Second)

	_, _, err := codec.Create(Claims{Subject: "  "})
	assert.ErrorIs(t, err, ErrInvalidClaims)

	_, _, err = codec.Create(Claims{Subject: "user", IssuedAt: epoch.Add(-time.Hour)})
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestTokenCodecExpiryBoundary(t *testing.T) {
	const skew = 5 * time.Second
	clk := testclock.NewClock(epoch)
	codec := newTestCodec(t, clk, skew)

	token, issued, err := codec.Create(Claims{Subject: "user", IssuedAt: clk.Now()})
	require.NoError(t, err)

	clk.Advance(issued.ExpiresAt.Sub(clk.Now()) - time.Second)
	_, err = codec.Verify(token)
	assert.NoError(t, err, "one tick before expiry")

	clk.Advance(skew)
	_, err = codec.Verify(token)
	assert.NoError(t, err, "inside the skew window")

	clk.Advance(time.Second)
	require.True(t, clk.Now().Equal(issued.ExpiresAt.Add(skew)))
	_, err = codec.Verify(token)
	assert.NoError(t, err, "exactly at expiresAt + skew")

	clk.Advance(time.Nanosecond)
	_, err = codec.Verify(token)
	assert.ErrorIs(t, err, ErrExpired, "one tick past expiresAt + skew")
}

func TestTokenCodecExpiryInclusiveWithoutSkew(t *testing.T) {
	clk := testclock.NewClock(epoch)
	codec := newTestCodec(t, clk, 0)

	token, issued, err := codec.Create(Claims{Subject: "user"})
	require.NoError(t, err)

	clk.Advance(issued.ExpiresAt.Sub(clk.Now()))
	_, err = codec.Verify(token)
	assert.NoError(t, err, "now == expiresAt")

	clk.Advance(time.Nanosecond)
	_, err = codec.Verify(token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestTokenCodecTamperDetection(t *testing.T) {
	clk := testclock.NewClock(epoch)
	codec := newTestCodec(t, clk, time.Second)

	token, _, err := codec.Create(Claims{Subject: "user", IssuedAt: clk.Now()})
	require.NoError(t, err)

	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			continue
		}
		replacement := byte('A')
		if token[i] == 'A' {
			replacement = 'B'
		}
		tampered := token[:i] + string(replacement) + token[i+1:]

		_, err := codec.Verify(tampered)
		require.Errorf(t, err, "tampered position %d verified", i)
		assert.Truef(t, errors.Is(err, ErrInvalidSignature) || errors.Is(err, ErrMalformedToken),
			"position %d: unexpected error %v", i, err)
	}
}

func TestTokenCodecRejectsForeignTokens(t *testing.T) {
	clk := testclock.NewClock(epoch)
	codec := newTestCodec(t, clk, time.Second)

	other, err := NewTokenCodec(CodecConfig{
		SigningKey: []byte("another-secret-another-secret-32"),
		TTL:        time.Minute,
		Clock:      clk,
	})
	require.NoError(t, err)
	foreign, _, err := other.Create(Claims{Subject: "user"})
	require.NoError(t, err)

	_, err = codec.Verify(foreign)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "user",
		IssuedAt:  jwt.NewNumericDate(epoch),
		ExpiresAt: jwt.NewNumericDate(epoch.Add(time.Minute)),
	})
	wrongAlg, err := hs512.SignedString(testSecret)
	require.NoError(t, err)
	_, err = codec.Verify(wrongAlg)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user"})
	noExpToken, err := noExp.SignedString(testSecret)
	require.NoError(t, err)
	_, err = codec.Verify(noExpToken)
	assert.ErrorIs(t, err, ErrMalformedToken)

	noSub := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(epoch),
		ExpiresAt: jwt.NewNumericDate(epoch.Add(time.Minute)),
	})
	noSubToken, err := noSub.SignedString(testSecret)
	require.NoError(t, err)
	_, err = codec.Verify(noSubToken)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestTokenCodecMalformedInput(t *testing.T) {
	codec := newTestCodec(t, testclock.NewClock(epoch), time.Second)

	for _, in := range []string{"", "not-a-jwt", "a.b", "header.payload.signature", "...."} {
		_, err := codec.Verify(in)
		assert.ErrorIsf(t, err, ErrMalformedToken, "input %q", in)
	}
}

func TestTokenCodecIssuer(t *testing.T) {
	clk := testclock.NewClock(epoch)
	issuing, err := NewTokenCodec(CodecConfig{SigningKey: testSecret, TTL: time.Minute, Issuer: "token-gate", Clock: clk})
	require.NoError(t, err)
	token, _, err := issuing.Create(Claims{Subject: "user"})
	require.NoError(t, err)

	_, err = issuing.Verify(token)
	require.NoError(t, err)

	strict, err := NewTokenCodec(CodecConfig{SigningKey: testSecret, TTL: time.Minute, Issuer: "elsewhere", Clock: clk})
	require.NoError(t, err)
	_, err = strict.Verify(token)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestTokenCodecConcurrentVerify(t *testing.T) {
	clk := testclock.NewClock(epoch)
	codec := newTestCodec(t, clk, time.Second)

	token, issued, err := codec.Create(Claims{Subject: "user", IssuedAt: clk.Now()})
	require.NoError(t, err)

	results := make([]Claims, 10000)
	var g errgroup.Group
	for i := range results {
		i := i
		g.Go(func() error {
			c, err := codec.Verify(token)
			results[i] = c
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, c := range results {
		assert.Equal(t, issued.Subject, c.Subject)
		assert.Equal(t, issued.ID, c.ID)
		assert.True(t, c.ExpiresAt.Equal(issued.ExpiresAt))
	}
}

func TestReason(t *testing.T) {
	assert.Equal(t, "none", Reason(nil))
	assert.Equal(t, "expired", Reason(ErrExpired))
	assert.Equal(t, "invalid_signature", Reason(errors.Join(errors.New("x"), ErrInvalidSignature)))
	assert.Equal(t, "unknown_subject", Reason(ErrUnknownSubject))
	assert.Equal(t, "other", Reason(errors.New("boom")))
}
