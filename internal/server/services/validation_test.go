package services

import (
	"strings"
	"testing"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "alice@example.com", normalize("  Alice@Example.COM "))
	assert.Equal(t, "bob_1", normalize("BOB_1"))
}

func TestValidateEmail(t *testing.T) {
	for _, ok := range []string{"alice@example.com", "a.b+tag@sub.example.org"} {
		assert.NoError(t, validateEmail(ok), ok)
	}
	for _, bad := range []string{"", "alice", "alice@", "Alice <alice@example.com>", strings.Repeat("a", 250) + "@x.io"} {
		err := validateEmail(bad)
		assert.ErrorIs(t, err, &common.Error{Code: common.CodeValidationFailed}, bad)
		assert.Equal(t, common.KindInvalidArgument, common.KindOf(err))
	}
}

func TestValidateUsername(t *testing.T) {
	for _, ok := range []string{"alice", "bob_42", "abc", strings.Repeat("x", 32)} {
		assert.NoError(t, validateUsername(ok), ok)
	}
	for _, bad := range []string{"", "ab", "has space", "dash-name", "UPPER", strings.Repeat("x", 33)} {
		assert.Error(t, validateUsername(bad), bad)
	}
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, validatePassword("secret123"))
	assert.Error(t, validatePassword("short"))
	assert.Error(t, validatePassword(strings.Repeat("p", 73)))
}
