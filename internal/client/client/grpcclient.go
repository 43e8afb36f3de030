package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	pb "github.com/dmitrijs2005/authkeeper/internal/proto"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const userAgent = "authkeeper-cli/1.0"

type GRPCClient struct {
	endpointURL string
	timeout     time.Duration
	conn        *grpc.ClientConn
	client      pb.AuthServiceClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	listener     TokenListener

	// serializes rotations so concurrent calls do not spend the same
	// refresh token twice
	refreshMu sync.Mutex
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AuthorizationHeaderName)
	if token != "" {
		md.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func isExpiredAccessToken(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unauthenticated && st.Message() == common.MsgExpiredToken
}

// accessTokenInterceptor attaches the current access token. When the server
// says the token expired, the pair is rotated once and the call is retried.
func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	accessToken, refreshToken := s.tokens()

	err := invoker(withAccessToken(ctx, accessToken), method, req, reply, cc, opts...)
	if err == nil || method == pb.MethodRefresh || refreshToken == "" || !isExpiredAccessToken(err) {
		return err
	}

	if err := s.rotate(ctx, refreshToken); err != nil {
		return err
	}

	accessToken, _ = s.tokens()
	return invoker(withAccessToken(ctx, accessToken), method, req, reply, cc, opts...)
}

// NewAuthKeeperClient connects to endpointURL. Extra dial options are
// applied after the defaults.
func NewAuthKeeperClient(endpointURL string, timeout time.Duration, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, timeout: timeout}
	if err := c.InitGRPCClient(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient(opts ...grpc.DialOption) error {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithUserAgent(userAgent),
	}, opts...)

	conn, err := grpc.NewClient(s.endpointURL, dialOpts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = pb.NewAuthServiceClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) tokens() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken, s.refreshToken
}

func (s *GRPCClient) SetTokens(accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken, s.refreshToken = accessToken, refreshToken
}

func (s *GRPCClient) OnTokens(l TokenListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

// replaceTokens installs a new pair and tells the listener.
func (s *GRPCClient) replaceTokens(accessToken, refreshToken string) {
	s.mu.Lock()
	s.accessToken, s.refreshToken = accessToken, refreshToken
	l := s.listener
	s.mu.Unlock()

	if l != nil {
		l(accessToken, refreshToken)
	}
}

// rotate exchanges used for a new pair unless another call already did.
func (s *GRPCClient) rotate(ctx context.Context, used string) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if _, current := s.tokens(); current != used {
		return nil
	}

	resp, err := s.client.Refresh(ctx, &pb.RefreshRequest{RefreshToken: used})
	if err != nil {
		return err
	}
	s.replaceTokens(resp.AccessToken, resp.RefreshToken)
	return nil
}

func (s *GRPCClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *GRPCClient) Register(ctx context.Context, email, username, password string) (*pb.Profile, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	req := &pb.RegisterRequest{Email: email, Username: username, Password: password}

	resp, err := s.client.Register(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) Login(ctx context.Context, email, password string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	req := &pb.LoginRequest{Email: email, Password: password}

	resp, err := s.client.Login(ctx, req)
	if err != nil {
		return s.mapError(err)
	}

	s.replaceTokens(resp.AccessToken, resp.RefreshToken)
	return nil
}

// Refresh rotates the token pair on demand.
func (s *GRPCClient) Refresh(ctx context.Context) error {
	_, refreshToken := s.tokens()
	if refreshToken == "" {
		return ErrNotLoggedIn
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.mapError(s.rotate(ctx, refreshToken))
}

func (s *GRPCClient) Me(ctx context.Context) (*pb.Profile, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.Me(ctx, &pb.Empty{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) UpdateProfile(ctx context.Context, upd *pb.UpdateProfileRequest) (*pb.Profile, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.UpdateProfile(ctx, upd)
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

// Logout revokes the current refresh token and forgets the pair. The local
// pair is dropped even if the server cannot be reached.
func (s *GRPCClient) Logout(ctx context.Context) error {
	_, refreshToken := s.tokens()
	if refreshToken == "" {
		return nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.client.Logout(ctx, &pb.LogoutRequest{RefreshToken: refreshToken})
	s.replaceTokens("", "")
	return s.mapError(err)
}

func (s *GRPCClient) LogoutAll(ctx context.Context) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.LogoutAll(ctx, &pb.Empty{})
	if err != nil {
		return 0, s.mapError(err)
	}
	s.replaceTokens("", "")
	return resp.Revoked, nil
}

func (s *GRPCClient) Sessions(ctx context.Context) ([]pb.Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.Sessions(ctx, &pb.Empty{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Sessions, nil
}

var codeKinds = map[codes.Code]common.Kind{
	codes.AlreadyExists:    common.KindConflict,
	codes.Unauthenticated:  common.KindUnauthorized,
	codes.NotFound:         common.KindNotFound,
	codes.InvalidArgument:  common.KindInvalidArgument,
	codes.PermissionDenied: common.KindUnauthorized,
}

// domainError rebuilds the server's *common.Error from the status details.
func domainError(st *status.Status) *common.Error {
	kind, ok := codeKinds[st.Code()]
	if !ok {
		return nil
	}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.Domain != common.ErrorDomain {
			continue
		}
		return &common.Error{
			Kind:    kind,
			Code:    info.Reason,
			Message: st.Message(),
			Field:   info.GetMetadata()["field"],
			Value:   info.GetMetadata()["value"],
		}
	}
	return nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	}

	if e := domainError(st); e != nil {
		if e.Kind == common.KindUnauthorized {
			return fmt.Errorf("%w: %w", ErrUnauthorized, e)
		}
		return e
	}

	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
