package client

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	gs "github.com/dmitrijs2005/authkeeper/internal/server/grpc"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/dmitrijs2005/authkeeper/internal/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// newRealServerClient runs the real gRPC server over a SQLite-backed
// UserService and returns a client dialed to it.
func newRealServerClient(t *testing.T) (*GRPCClient, *clock) {
	t.Helper()

	clk := &clock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	cfg := &config.Config{
		AccessTokenValidityDuration:  15 * time.Minute,
		RefreshTokenValidityDuration: 24 * time.Hour,
	}

	codec, err := auth.NewCodec([]byte("roundtrip-secret"), "HS256", auth.WithClock(clk.Now))
	require.NoError(t, err)

	svc, err := services.NewUserService(testutil.NewSQLiteDB(t), repomanager.NewSQLiteRepositoryManager(), codec,
		cryptox.NewBcryptHasher(bcrypt.MinCost), cfg, services.WithClock(clk.Now))
	require.NoError(t, err)

	srv := gs.NewGRPCServer("bufnet", logging.Discard(), svc, auth.NewGate(codec))
	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	c, err := NewAuthKeeperClient("passthrough:///bufnet", 5*time.Second,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = c.Close()
		cancel()
		<-done
	})
	return c, clk
}

func TestRoundTrip_ExpiredAccessTokenIsRotatedTransparently(t *testing.T) {
	c, clk := newRealServerClient(t)
	ctx := context.Background()

	_, err := c.Register(ctx, "alice@example.com", "alice", "secret123")
	require.NoError(t, err)
	require.NoError(t, c.Login(ctx, "alice@example.com", "secret123"))
	_, firstRefresh := c.tokens()

	clk.Advance(16 * time.Minute)

	p, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)

	_, rotated := c.tokens()
	assert.NotEqual(t, firstRefresh, rotated)

	// the spent token is gone server-side
	sessions, err := c.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, rotated[:8], sessions[0].TokenPrefix)
	assert.Equal(t, userAgent, sessions[0].UserAgent[:len(userAgent)])
}

func TestRoundTrip_DomainErrorsSurviveTheWire(t *testing.T) {
	c, _ := newRealServerClient(t)
	ctx := context.Background()

	_, err := c.Register(ctx, "alice@example.com", "alice", "secret123")
	require.NoError(t, err)

	_, err = c.Register(ctx, "ALICE@example.com", "other", "secret123")
	require.ErrorIs(t, err, common.ErrEmailAlreadyExists)

	err = c.Login(ctx, "alice@example.com", "wrong-password")
	require.ErrorIs(t, err, ErrUnauthorized)
	require.ErrorIs(t, err, common.ErrInvalidCredentials)

	_, err = c.Me(ctx)
	require.ErrorIs(t, err, common.ErrMissingAuth)
}

func TestRoundTrip_LogoutAllRevokesEveryRefreshToken(t *testing.T) {
	c, _ := newRealServerClient(t)
	ctx := context.Background()

	_, err := c.Register(ctx, "alice@example.com", "alice", "secret123")
	require.NoError(t, err)
	require.NoError(t, c.Login(ctx, "alice@example.com", "secret123"))
	a1, r1 := c.tokens()
	require.NoError(t, c.Login(ctx, "alice@example.com", "secret123"))

	n, err := c.LogoutAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	c.SetTokens(a1, r1)
	err = c.Refresh(ctx)
	require.ErrorIs(t, err, common.ErrInvalidRefreshToken)
}
