// Package cryptox contains the password hashing schemes used by the credential
// store. Hashes are self-describing strings, so the scheme can change without
// invalidating stored credentials of the other scheme.
package cryptox

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordMismatch is returned by Compare when the password does not match.
var ErrPasswordMismatch = errors.New("password mismatch")

// PasswordHasher produces and checks slow, salted one-way password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare returns nil on match and ErrPasswordMismatch otherwise.
	Compare(hash, password string) error
}

// Hasher names accepted by NewHasher.
const (
	HasherBcrypt   = "bcrypt"
	HasherArgon2id = "argon2id"
)

// NewHasher returns the hasher registered under name.
func NewHasher(name string, bcryptCost int) (PasswordHasher, error) {
	switch name {
	case HasherBcrypt, "":
		return NewBcryptHasher(bcryptCost), nil
	case HasherArgon2id:
		return NewArgon2Hasher(), nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", name)
	}
}

type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher clamps cost to the range bcrypt accepts.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{Cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h *BcryptHasher) Compare(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return fmt.Errorf("bcrypt: %w", err)
}

// Argon2Hasher hashes with argon2id and encodes the result in the PHC string
// format: $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>.
type Argon2Hasher struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

func NewArgon2Hasher() *Argon2Hasher {
	return &Argon2Hasher{Time: 1, Memory: 64 * 1024, Threads: 4, KeyLen: 32, SaltLen: 16}
}

func (h *Argon2Hasher) Hash(password string) (string, error) {
	salt := common.GenerateRandByteArray(h.SaltLen)
	if salt == nil {
		return "", errors.New("argon2id: cannot read random salt")
	}
	key := argon2.IDKey([]byte(password), salt, h.Time, h.Memory, h.Threads, h.KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.Memory, h.Time, h.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

func (h *Argon2Hasher) Compare(hash, password string) error {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return errors.New("argon2id: malformed hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return errors.New("argon2id: unsupported version")
	}

	var (
		memory, t uint32
		threads   uint8
	)
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &t, &threads); err != nil {
		return fmt.Errorf("argon2id: bad parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("argon2id: bad salt: %w", err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return fmt.Errorf("argon2id: bad key: %w", err)
	}

	got := argon2.IDKey([]byte(password), salt, t, memory, threads, uint32(len(want)))
	defer common.WipeByteArray(got)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}
