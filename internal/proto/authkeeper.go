// Package proto defines the authkeeper.v1.AuthService wire contract: request
// and response messages, the server interface with its grpc.ServiceDesc, and
// a typed client. Messages travel as JSON through the codec in codec.go.
package proto

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

const ServiceName = "authkeeper.v1.AuthService"

// Full method names, as seen by interceptors.
const (
	MethodRegister      = "/" + ServiceName + "/Register"
	MethodLogin         = "/" + ServiceName + "/Login"
	MethodRefresh       = "/" + ServiceName + "/Refresh"
	MethodMe            = "/" + ServiceName + "/Me"
	MethodUpdateProfile = "/" + ServiceName + "/UpdateProfile"
	MethodLogout        = "/" + ServiceName + "/Logout"
	MethodLogoutAll     = "/" + ServiceName + "/LogoutAll"
	MethodSessions      = "/" + ServiceName + "/Sessions"
)

type Empty struct{}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UpdateProfileRequest fields left nil are not changed.
type UpdateProfileRequest struct {
	Email    *string `json:"email,omitempty"`
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
}

type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type LogoutAllResponse struct {
	Revoked int `json:"revoked"`
}

type Session struct {
	TokenPrefix string    `json:"token_prefix"`
	ClientIP    string    `json:"client_ip"`
	UserAgent   string    `json:"user_agent"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type SessionsResponse struct {
	Sessions []Session `json:"sessions"`
}

// AuthServiceServer is the server API for AuthService.
type AuthServiceServer interface {
	Register(context.Context, *RegisterRequest) (*Profile, error)
	Login(context.Context, *LoginRequest) (*TokenPair, error)
	Refresh(context.Context, *RefreshRequest) (*TokenPair, error)
	Me(context.Context, *Empty) (*Profile, error)
	UpdateProfile(context.Context, *UpdateProfileRequest) (*Profile, error)
	Logout(context.Context, *LogoutRequest) (*Empty, error)
	LogoutAll(context.Context, *Empty) (*LogoutAllResponse, error)
	Sessions(context.Context, *Empty) (*SessionsResponse, error)
}

func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}

// unaryHandler adapts one typed AuthServiceServer method to grpc's
// method handler shape.
func unaryHandler[Req any, Resp any](fullMethod string,
	call func(AuthServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {

	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AuthServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AuthServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unaryHandler(MethodRegister, AuthServiceServer.Register)},
		{MethodName: "Login", Handler: unaryHandler(MethodLogin, AuthServiceServer.Login)},
		{MethodName: "Refresh", Handler: unaryHandler(MethodRefresh, AuthServiceServer.Refresh)},
		{MethodName: "Me", Handler: unaryHandler(MethodMe, AuthServiceServer.Me)},
		{MethodName: "UpdateProfile", Handler: unaryHandler(MethodUpdateProfile, AuthServiceServer.UpdateProfile)},
		{MethodName: "Logout", Handler: unaryHandler(MethodLogout, AuthServiceServer.Logout)},
		{MethodName: "LogoutAll", Handler: unaryHandler(MethodLogoutAll, AuthServiceServer.LogoutAll)},
		{MethodName: "Sessions", Handler: unaryHandler(MethodSessions, AuthServiceServer.Sessions)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authkeeper/v1/auth.proto",
}

// AuthServiceClient is the client API for AuthService.
type AuthServiceClient interface {
	Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*Profile, error)
	Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*TokenPair, error)
	Refresh(ctx context.Context, in *RefreshRequest, opts ...grpc.CallOption) (*TokenPair, error)
	Me(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Profile, error)
	UpdateProfile(ctx context.Context, in *UpdateProfileRequest, opts ...grpc.CallOption) (*Profile, error)
	Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*Empty, error)
	LogoutAll(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*LogoutAllResponse, error)
	Sessions(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*SessionsResponse, error)
}

type authServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAuthServiceClient returns a client that always selects the JSON codec.
func NewAuthServiceClient(cc grpc.ClientConnInterface) AuthServiceClient {
	return &authServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*Profile, error) {
	return invoke[Profile](ctx, c.cc, MethodRegister, in, opts)
}

func (c *authServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*TokenPair, error) {
	return invoke[TokenPair](ctx, c.cc, MethodLogin, in, opts)
}

func (c *authServiceClient) Refresh(ctx context.Context, in *RefreshRequest, opts ...grpc.CallOption) (*TokenPair, error) {
	return invoke[TokenPair](ctx, c.cc, MethodRefresh, in, opts)
}

func (c *authServiceClient) Me(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Profile, error) {
	return invoke[Profile](ctx, c.cc, MethodMe, in, opts)
}

func (c *authServiceClient) UpdateProfile(ctx context.Context, in *UpdateProfileRequest, opts ...grpc.CallOption) (*Profile, error) {
	return invoke[Profile](ctx, c.cc, MethodUpdateProfile, in, opts)
}

func (c *authServiceClient) Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodLogout, in, opts)
}

func (c *authServiceClient) LogoutAll(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*LogoutAllResponse, error) {
	return invoke[LogoutAllResponse](ctx, c.cc, MethodLogoutAll, in, opts)
}

func (c *authServiceClient) Sessions(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*SessionsResponse, error) {
	return invoke[SessionsResponse](ctx, c.cc, MethodSessions, in, opts)
}
