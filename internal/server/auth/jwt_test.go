package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestCodec(t *testing.T, alg string) (*Codec, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: epoch}
	c, err := NewCodec([]byte("super-secret"), alg, WithClock(clock.Now))
	require.NoError(t, err)
	return c, clock
}

func TestCodec_IssueAndVerify(t *testing.T) {
	t.Parallel()

	for _, alg := range []string{"", "HS256", "HS384", "HS512"} {
		c, _ := newTestCodec(t, alg)

		tok, err := c.Issue("user-123", 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 2, strings.Count(tok, "."), "compact JWS form")

		sub, err := c.Verify(tok)
		require.NoError(t, err, alg)
		assert.Equal(t, "user-123", sub)
	}
}

func TestCodec_ClaimsCarrySubjectTimesAndUniqueID(t *testing.T) {
	t.Parallel()
	c, _ := newTestCodec(t, "HS256")

	tok1, err := c.Issue("u1", time.Minute)
	require.NoError(t, err)
	tok2, err := c.Issue("u1", time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, tok1, tok2, "same subject and second must still differ")

	claims := &jwt.RegisteredClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(tok1, claims)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.True(t, epoch.Equal(claims.IssuedAt.Time))
	assert.True(t, epoch.Add(time.Minute).Equal(claims.ExpiresAt.Time))
	assert.Len(t, claims.ID, 36)
}

func TestCodec_ExpiryBoundary(t *testing.T) {
	t.Parallel()
	c, clock := newTestCodec(t, "HS256")

	tok, err := c.Issue("u1", 15*time.Minute)
	require.NoError(t, err)
	exp := epoch.Add(15 * time.Minute)

	clock.t = exp.Add(-time.Second)
	_, err = c.Verify(tok)
	require.NoError(t, err, "one second before expiry")

	clock.t = exp
	_, err = c.Verify(tok)
	require.NoError(t, err, "expiry instant is inclusive")

	clock.t = exp.Add(time.Second)
	_, err = c.Verify(tok)
	require.ErrorIs(t, err, common.ErrTokenExpired)
	assert.NotErrorIs(t, err, common.ErrTokenMalformed)
}

func TestCodec_Malformed(t *testing.T) {
	t.Parallel()
	c, _ := newTestCodec(t, "HS256")

	other, err := NewCodec([]byte("other-secret"), "HS256", WithClock(func() time.Time { return epoch }))
	require.NoError(t, err)
	wrongSecret, err := other.Issue("u1", time.Hour)
	require.NoError(t, err)

	hs512, err := NewCodec([]byte("super-secret"), "HS512", WithClock(func() time.Time { return epoch }))
	require.NoError(t, err)
	wrongAlg, err := hs512.Issue("u1", time.Hour)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(epoch.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(epoch.Add(time.Hour)),
	}).SignedString([]byte("super-secret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "u1",
	}).SignedString([]byte("super-secret"))
	require.NoError(t, err)

	good, err := c.Issue("u1", time.Hour)
	require.NoError(t, err)
	tampered := good[:len(good)-2] + "xx"

	tests := map[string]string{
		"empty":        "",
		"garbage":      "not.a.jwt",
		"wrong secret": wrongSecret,
		"wrong alg":    wrongAlg,
		"alg none":     none,
		"no subject":   noSubject,
		"no expiry":    noExpiry,
		"tampered":     tampered,
	}
	for name, tok := range tests {
		_, err := c.Verify(tok)
		require.ErrorIs(t, err, common.ErrTokenMalformed, name)
	}
}

func TestNewCodec_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewCodec(nil, "HS256")
	require.Error(t, err)

	_, err = NewCodec([]byte("k"), "RS256")
	require.Error(t, err)
}
