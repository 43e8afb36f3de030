package services

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

const (
	minPasswordLen = 8
	// bcrypt ignores input past 72 bytes
	maxPasswordLen = 72
	maxEmailLen    = 254
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,32}$`)

// normalize is the canonical form of email and username: trimmed, lowercase.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validateEmail(email string) error {
	if email == "" || len(email) > maxEmailLen {
		return common.NewValidationError("email", "invalid email address")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return common.NewValidationError("email", "invalid email address")
	}
	return nil
}

func validateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return common.NewValidationError("username", "username must be 3-32 letters, digits or underscores")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return common.NewValidationError("password", "password must be 8-72 bytes long")
	}
	return nil
}
