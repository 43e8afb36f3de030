package auth

import (
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

// Gate validates the authorization value of an incoming request. It never
// touches storage: an access token stays valid until it expires, even after
// its owner's refresh tokens were revoked.
type Gate struct {
	codec *Codec
}

func NewGate(codec *Codec) *Gate {
	return &Gate{codec: codec}
}

// Authenticate returns the user id carried by a "Bearer <token>" value.
// It fails with common.ErrMissingAuth when the scheme is absent, and with
// common.ErrUnauthorized wrapping the codec error otherwise.
func (g *Gate) Authenticate(header string) (string, error) {
	if !strings.HasPrefix(header, common.BearerPrefix) {
		return "", common.ErrMissingAuth
	}
	token := strings.TrimSpace(header[len(common.BearerPrefix):])
	subject, err := g.codec.Verify(token)
	if err != nil {
		return "", common.ErrUnauthorized.WithCause(err)
	}
	return subject, nil
}
