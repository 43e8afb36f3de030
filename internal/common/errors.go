// Package common defines shared constants and errors used across client and
// server layers of authkeeper. Callers should use errors.Is to match these
// values and KindOf to classify them at transport boundaries.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Token codec errors.
	ErrTokenMalformed = errors.New("malformed token")
	ErrTokenExpired   = errors.New("token expired")
)

// Kind is the closed set of failure categories a boundary layer maps to
// transport status codes.
type Kind int

const (
	KindInternal Kind = iota
	KindConflict
	KindUnauthorized
	KindNotFound
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindInvalidArgument:
		return "invalid_argument"
	default:
		return "internal"
	}
}

// Stable error codes exposed to clients.
const (
	CodeEmailAlreadyExists    = "EmailAlreadyExists"
	CodeUsernameAlreadyExists = "UsernameAlreadyExists"
	CodeEmailInUse            = "EmailInUse"
	CodeUsernameInUse         = "UsernameInUse"
	CodeInvalidCredentials    = "InvalidCredentials"
	CodeInvalidRefreshToken   = "InvalidRefreshToken"
	CodeExpiredRefreshToken   = "ExpiredRefreshToken"
	CodeUserNotFound          = "UserNotFound"
	CodeMissingAuth           = "MissingAuth"
	CodeUnauthorized          = "Unauthorized"
	CodeValidationFailed      = "ValidationFailed"
)

// Error is a typed domain failure. Field and Value carry the conflicting or
// invalid input, if any.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Field   string
	Value   string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithField returns a copy of e annotated with the offending field and value.
func (e *Error) WithField(field, value string) *Error {
	c := *e
	c.Field = field
	c.Value = value
	return &c
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	c := *e
	c.Cause = cause
	return &c
}

// Domain errors returned by the session lifecycle manager and the bearer gate.
var (
	ErrEmailAlreadyExists    = &Error{Kind: KindConflict, Code: CodeEmailAlreadyExists, Message: "email already registered", Field: "email"}
	ErrUsernameAlreadyExists = &Error{Kind: KindConflict, Code: CodeUsernameAlreadyExists, Message: "username already taken", Field: "username"}
	ErrEmailInUse            = &Error{Kind: KindConflict, Code: CodeEmailInUse, Message: "email already in use", Field: "email"}
	ErrUsernameInUse         = &Error{Kind: KindConflict, Code: CodeUsernameInUse, Message: "username already in use", Field: "username"}
	ErrInvalidCredentials    = &Error{Kind: KindUnauthorized, Code: CodeInvalidCredentials, Message: "invalid email or password"}
	ErrInvalidRefreshToken   = &Error{Kind: KindUnauthorized, Code: CodeInvalidRefreshToken, Message: "invalid refresh token"}
	ErrExpiredRefreshToken   = &Error{Kind: KindUnauthorized, Code: CodeExpiredRefreshToken, Message: "refresh token expired"}
	ErrUserNotFound          = &Error{Kind: KindNotFound, Code: CodeUserNotFound, Message: "user not found"}
	ErrMissingAuth           = &Error{Kind: KindUnauthorized, Code: CodeMissingAuth, Message: "not authenticated"}
	ErrUnauthorized          = &Error{Kind: KindUnauthorized, Code: CodeUnauthorized, Message: "unauthorized"}
)

// NewValidationError reports bad client input for field.
func NewValidationError(field, msg string) *Error {
	return &Error{Kind: KindInvalidArgument, Code: CodeValidationFailed, Message: msg, Field: field}
}

// KindOf classifies err. Anything that is not an *Error is internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// DuplicateError is returned by repositories when a unique constraint on
// Field rejects a write.
type DuplicateError struct {
	Field string
	Err   error
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s: %v", e.Field, e.Err)
}

func (e *DuplicateError) Unwrap() error { return e.Err }

func (e *DuplicateError) Is(target error) bool { return target == ErrorAlreadyExists }
