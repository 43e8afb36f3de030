package models

import "time"

// RefreshToken is one live, single-use refresh credential. Revocation deletes
// the row.
type RefreshToken struct {
	Token     string
	UserID    string
	ClientIP  string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry at now. The expiry
// instant itself is still valid.
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// sessionPrefixLen is how much of the token value a Session reveals.
const sessionPrefixLen = 8

// Session is a refresh token as shown to its owner, without the secret.
type Session struct {
	TokenPrefix string    `json:"token_prefix"`
	ClientIP    string    `json:"client_ip"`
	UserAgent   string    `json:"user_agent"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Session returns the owner-facing view of t.
func (t *RefreshToken) Session() Session {
	prefix := t.Token
	if len(prefix) > sessionPrefixLen {
		prefix = prefix[:sessionPrefixLen]
	}
	return Session{
		TokenPrefix: prefix,
		ClientIP:    t.ClientIP,
		UserAgent:   t.UserAgent,
		CreatedAt:   t.CreatedAt,
		ExpiresAt:   t.ExpiresAt,
	}
}
