package client

import (
	"context"

	pb "github.com/dmitrijs2005/authkeeper/internal/proto"
)

// TokenListener is told about every token pair the client starts using.
// Empty values mean the session ended.
type TokenListener func(accessToken, refreshToken string)

type Client interface {
	Close() error

	Register(ctx context.Context, email, username, password string) (*pb.Profile, error)
	Login(ctx context.Context, email, password string) error
	Refresh(ctx context.Context) error
	Me(ctx context.Context) (*pb.Profile, error)
	UpdateProfile(ctx context.Context, upd *pb.UpdateProfileRequest) (*pb.Profile, error)
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) (int, error)
	Sessions(ctx context.Context) ([]pb.Session, error)

	// SetTokens installs a previously saved token pair without notifying
	// the listener.
	SetTokens(accessToken, refreshToken string)
	OnTokens(l TokenListener)
}
