package common

// AuthorizationHeaderName is the gRPC metadata key / HTTP header that carries
// the access token on authenticated requests.
const AuthorizationHeaderName = "authorization"

// BearerPrefix is the scheme prefix expected in the authorization value.
const BearerPrefix = "Bearer "

// TokenType is reported to clients alongside issued token pairs.
const TokenType = "bearer"

// ErrorDomain is the domain of the structured error details the gRPC
// transport attaches to domain failures.
const ErrorDomain = "authkeeper"

// Status messages of access tokens rejected by the bearer gate. Clients
// refresh their token pair on MsgExpiredToken.
const (
	MsgExpiredToken = "expired token"
	MsgInvalidToken = "invalid token"
)
