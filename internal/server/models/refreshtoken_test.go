package models

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestRefreshToken_ExpiredIsExclusiveAtExpiry(t *testing.T) {
	exp := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tok := &RefreshToken{ExpiresAt: exp}

	assert.False(t, tok.Expired(exp.Add(-time.Second)))
	assert.False(t, tok.Expired(exp), "expiry instant is still valid")
	assert.True(t, tok.Expired(exp.Add(time.Nanosecond)))
}

func TestRefreshToken_SessionHidesToken(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tok := &RefreshToken{
		Token:     "0123456789abcdef0123456789abcdef",
		UserID:    "u1",
		ClientIP:  "10.0.0.1",
		UserAgent: "curl/8",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}

	want := Session{
		TokenPrefix: "01234567",
		ClientIP:    "10.0.0.1",
		UserAgent:   "curl/8",
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
	}
	if diff := cmp.Diff(want, tok.Session()); diff != "" {
		t.Fatalf("session mismatch (-want +got):\n%s", diff)
	}

	short := &RefreshToken{Token: "abc"}
	assert.Equal(t, "abc", short.Session().TokenPrefix)
}

func TestUser_ProfileOmitsHash(t *testing.T) {
	u := &User{ID: "id", Email: "a@b.c", Username: "alice", PasswordHash: "secret-hash"}
	p := u.Profile()
	assert.Equal(t, "id", p.ID)
	assert.Equal(t, "alice", p.Username)
	assert.NotContains(t, []string{p.ID, p.Email, p.Username}, "secret-hash")
}
