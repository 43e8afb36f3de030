package auth

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_Authenticate(t *testing.T) {
	t.Parallel()
	c, clock := newTestCodec(t, "HS256")
	g := NewGate(c)

	tok, err := c.Issue("user-1", time.Minute)
	require.NoError(t, err)

	sub, err := g.Authenticate("Bearer " + tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)

	for _, header := range []string{"", tok, "Basic " + tok, "bearer " + tok, "Bearer"} {
		_, err := g.Authenticate(header)
		require.ErrorIs(t, err, common.ErrMissingAuth, "%q", header)
	}

	_, err = g.Authenticate("Bearer ")
	require.ErrorIs(t, err, common.ErrUnauthorized)
	assert.ErrorIs(t, err, common.ErrTokenMalformed)

	_, err = g.Authenticate("Bearer garbage")
	require.ErrorIs(t, err, common.ErrUnauthorized)
	assert.Equal(t, common.KindUnauthorized, common.KindOf(err))

	clock.t = clock.t.Add(2 * time.Minute)
	_, err = g.Authenticate("Bearer " + tok)
	require.ErrorIs(t, err, common.ErrUnauthorized)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}
