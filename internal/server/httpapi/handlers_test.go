package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	profile *models.Profile
	pair    *services.TokenPair
	err     error

	gotUserID string
	gotClient services.ClientInfo
	gotUpdate services.ProfileUpdate
	panicOn   string
}

func (f *fakeUsers) Register(context.Context, string, string, string) (*models.Profile, error) {
	if f.panicOn == "register" {
		panic("boom")
	}
	return f.profile, f.err
}

func (f *fakeUsers) Login(_ context.Context, _, _ string, c services.ClientInfo) (*services.TokenPair, error) {
	f.gotClient = c
	return f.pair, f.err
}

func (f *fakeUsers) Refresh(_ context.Context, _ string, c services.ClientInfo) (*services.TokenPair, error) {
	f.gotClient = c
	return f.pair, f.err
}

func (f *fakeUsers) Me(_ context.Context, id string) (*models.Profile, error) {
	f.gotUserID = id
	return f.profile, f.err
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id string, upd services.ProfileUpdate) (*models.Profile, error) {
	f.gotUserID = id
	f.gotUpdate = upd
	return f.profile, f.err
}

func (f *fakeUsers) Logout(context.Context, string) error { return f.err }

func (f *fakeUsers) LogoutAll(_ context.Context, id string) (int, error) {
	f.gotUserID = id
	return 2, f.err
}

func (f *fakeUsers) Sessions(_ context.Context, id string) ([]models.Session, error) {
	f.gotUserID = id
	return []models.Session{}, f.err
}

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, users UserService) (*Server, *auth.Codec, *time.Time) {
	t.Helper()
	now := epoch
	codec, err := auth.NewCodec([]byte("secret"), "", auth.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	s := NewServer(":0", logging.Discard(), users, auth.NewGate(codec), "1.2.3")
	s.now = func() time.Time { return epoch }
	return s, codec, &now
}

func do(t *testing.T, h http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "httptest/1")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeUsers{})

	rec := do(t, s.Handler(), http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","version":"1.2.3","timestamp":"2025-06-01T12:00:00Z"}`, rec.Body.String())
}

func TestRegister_Created(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeUsers{profile: &models.Profile{ID: "u1", Email: "a@b.io", Username: "alice"}})

	rec := do(t, s.Handler(), http.MethodPost, "/api/register", `{"email":"a@b.io","username":"alice","password":"secret123"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"conflict", common.ErrUsernameAlreadyExists, http.StatusConflict, common.CodeUsernameAlreadyExists},
		{"unauthorized", common.ErrInvalidCredentials, http.StatusUnauthorized, common.CodeInvalidCredentials},
		{"not found", common.ErrUserNotFound, http.StatusNotFound, common.CodeUserNotFound},
		{"validation", common.NewValidationError("email", "invalid email address"), http.StatusUnprocessableEntity, common.CodeValidationFailed},
		{"internal", errors.New("register: internal error"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newTestServer(t, &fakeUsers{err: tt.err})

			rec := do(t, s.Handler(), http.MethodPost, "/api/register", `{"email":"a@b.io","username":"alice","password":"secret123"}`, "")
			require.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestBadBody(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeUsers{})

	for _, body := range []string{"", "{", `{"email":1}`, `{"unknown":"x"}`} {
		rec := do(t, s.Handler(), http.MethodPost, "/api/login", body, "")
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, body)
		assert.Equal(t, "body", decodeError(t, rec).Field)
	}
}

func TestLogin_RecordsClient(t *testing.T) {
	users := &fakeUsers{pair: &services.TokenPair{AccessToken: "a", RefreshToken: "r", TokenType: "bearer", ExpiresIn: 900}}
	s, _, _ := newTestServer(t, users)

	rec := do(t, s.Handler(), http.MethodPost, "/api/login", `{"email":"a@b.io","password":"secret123"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"access_token":"a","refresh_token":"r","token_type":"bearer","expires_in":900}`, rec.Body.String())
	assert.Equal(t, services.ClientInfo{IP: "192.0.2.1", UserAgent: "httptest/1"}, users.gotClient)
}

func TestGateDetails(t *testing.T) {
	s, codec, now := newTestServer(t, &fakeUsers{profile: &models.Profile{ID: "u1"}})
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/me", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authenticated", decodeError(t, rec).Detail)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	rec = do(t, h, http.MethodGet, "/api/me", "", "not.a.jwt")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", decodeError(t, rec).Detail)

	tok, err := codec.Issue("u1", time.Minute)
	require.NoError(t, err)
	*now = epoch.Add(2 * time.Minute)
	rec = do(t, h, http.MethodGet, "/api/me", "", tok)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Expired token", decodeError(t, rec).Detail)
}

func TestProtectedRoutes(t *testing.T) {
	users := &fakeUsers{profile: &models.Profile{ID: "u1", Username: "alice"}}
	s, codec, _ := newTestServer(t, users)
	h := s.Handler()
	tok, err := codec.Issue("u1", time.Minute)
	require.NoError(t, err)

	rec := do(t, h, http.MethodGet, "/api/me", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", users.gotUserID)

	rec = do(t, h, http.MethodPut, "/api/me", `{"username":"alice_b"}`, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, users.gotUpdate.Username)
	assert.Nil(t, users.gotUpdate.Password)

	rec = do(t, h, http.MethodPost, "/api/logout/all", "", tok)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/sessions", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sessions":[]}`, rec.Body.String())
}

func TestLogout_NoContent(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeUsers{})
	rec := do(t, s.Handler(), http.MethodPost, "/api/logout", `{"refresh_token":"r"}`, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestRecovery(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeUsers{panicOn: "register"})

	rec := do(t, s.Handler(), http.MethodPost, "/api/register", `{}`, "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decodeError(t, rec).Detail)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeUsers{})
	rec := do(t, s.Handler(), http.MethodGet, "/api/login", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	s := NewServer("127.0.0.1:0", logging.Discard(), &fakeUsers{}, nil, "dev")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
