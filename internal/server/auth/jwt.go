// Package auth issues and verifies access tokens and turns an authorization
// header into an authenticated subject.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var signingMethods = map[string]jwt.SigningMethod{
	jwt.SigningMethodHS256.Alg(): jwt.SigningMethodHS256,
	jwt.SigningMethodHS384.Alg(): jwt.SigningMethodHS384,
	jwt.SigningMethodHS512.Alg(): jwt.SigningMethodHS512,
}

// Codec signs and verifies HMAC JWT access tokens carrying sub, iat, exp and
// jti. It is safe for concurrent use.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
	parser *jwt.Parser
	now    func() time.Time
}

type CodecOption func(*Codec)

// WithClock replaces time.Now for issuing and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

// NewCodec returns a codec for one of HS256, HS384 or HS512. An empty
// algorithm means HS256.
func NewCodec(secret []byte, algorithm string, opts ...CodecOption) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret must not be empty")
	}
	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}
	method, ok := signingMethods[algorithm]
	if !ok {
		return nil, fmt.Errorf("unsupported jwt algorithm %q", algorithm)
	}

	c := &Codec{
		secret: secret,
		method: method,
		// expiry is checked by Verify against c.now so the boundary is ours
		parser: jwt.NewParser(jwt.WithValidMethods([]string{method.Alg()}), jwt.WithoutClaimsValidation()),
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Issue returns a signed token for subject valid for ttl.
func (c *Codec) Issue(subject string, ttl time.Duration) (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(c.method, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	})
	return token.SignedString(c.secret)
}

// Verify checks signature and algorithm, then expiry, and returns the
// subject. A token is still valid at its exp instant. Errors wrap
// common.ErrTokenMalformed or common.ErrTokenExpired.
func (c *Codec) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := c.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrTokenMalformed, err)
	}
	if !token.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
		return "", fmt.Errorf("%w: missing claims", common.ErrTokenMalformed)
	}
	if c.now().After(claims.ExpiresAt.Time) {
		return "", common.ErrTokenExpired
	}
	return claims.Subject, nil
}
