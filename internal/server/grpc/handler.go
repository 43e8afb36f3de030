package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	pb "github.com/dmitrijs2005/authkeeper/internal/proto"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

type handler struct {
	users  UserService
	logger logging.Logger
}

var _ pb.AuthServiceServer = (*handler)(nil)

func (h *handler) Register(ctx context.Context, req *pb.RegisterRequest) (*pb.Profile, error) {
	p, err := h.users.Register(ctx, req.Email, req.Username, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}
	h.logger.Info(ctx, "Registered", "user_id", p.ID)
	return toProfile(p), nil
}

func (h *handler) Login(ctx context.Context, req *pb.LoginRequest) (*pb.TokenPair, error) {
	pair, err := h.users.Login(ctx, req.Email, req.Password, clientInfo(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return toTokenPair(pair), nil
}

func (h *handler) Refresh(ctx context.Context, req *pb.RefreshRequest) (*pb.TokenPair, error) {
	pair, err := h.users.Refresh(ctx, req.RefreshToken, clientInfo(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return toTokenPair(pair), nil
}

func (h *handler) Me(ctx context.Context, _ *pb.Empty) (*pb.Profile, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	p, err := h.users.Me(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}
	return toProfile(p), nil
}

func (h *handler) UpdateProfile(ctx context.Context, req *pb.UpdateProfileRequest) (*pb.Profile, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	p, err := h.users.UpdateProfile(ctx, userID, services.ProfileUpdate{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return toProfile(p), nil
}

func (h *handler) Logout(ctx context.Context, req *pb.LogoutRequest) (*pb.Empty, error) {
	if err := h.users.Logout(ctx, req.RefreshToken); err != nil {
		return nil, toStatus(err)
	}
	return &pb.Empty{}, nil
}

func (h *handler) LogoutAll(ctx context.Context, _ *pb.Empty) (*pb.LogoutAllResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	n, err := h.users.LogoutAll(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.LogoutAllResponse{Revoked: n}, nil
}

func (h *handler) Sessions(ctx context.Context, _ *pb.Empty) (*pb.SessionsResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	list, err := h.users.Sessions(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &pb.SessionsResponse{Sessions: make([]pb.Session, 0, len(list))}
	for _, s := range list {
		resp.Sessions = append(resp.Sessions, pb.Session(s))
	}
	return resp, nil
}

// clientInfo takes the caller address from the peer and the user agent
// from metadata.
func clientInfo(ctx context.Context) services.ClientInfo {
	var ci services.ClientInfo
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		ci.IP = p.Addr.String()
		if host, _, err := net.SplitHostPort(ci.IP); err == nil {
			ci.IP = host
		}
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ua := md.Get("user-agent"); len(ua) > 0 {
			ci.UserAgent = ua[0]
		}
	}
	return ci
}

func toProfile(p *models.Profile) *pb.Profile {
	return &pb.Profile{
		ID:        p.ID,
		Email:     p.Email,
		Username:  p.Username,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toTokenPair(t *services.TokenPair) *pb.TokenPair {
	return &pb.TokenPair{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		ExpiresIn:    t.ExpiresIn,
	}
}
