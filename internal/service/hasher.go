package service

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"course-portal/internal/config"
)

// PasswordHasher derives the stored credential from a username and
// password. Both schemes start from the same SHA-256 digest of
// "username:password", so either can verify the other's hashes.
type PasswordHasher interface {
	Hash(username string, password string) (string, error)
	Verify(username string, password string, stored string) bool
}

func NewPasswordHasher(scheme string, bcryptCost int) (PasswordHasher, error) {
	switch strings.ToLower(strings.TrimSpace(scheme)) {
	case "", config.HashLegacy:
		return LegacyHasher{}, nil
	case config.HashBcrypt:
		if bcryptCost == 0 {
			bcryptCost = bcrypt.DefaultCost
		}
		if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
		}
		return BcryptHasher{Cost: bcryptCost}, nil
	default:
		return nil, fmt.Errorf("unknown password hash scheme %q", scheme)
	}
}

// LegacyHasher stores the unsalted lowercase hex SHA-256 digest of
// "username:password".
type LegacyHasher struct{}

func (LegacyHasher) Hash(username string, password string) (string, error) {
	return legacyDigest(username, password), nil
}

func (LegacyHasher) Verify(username string, password string, stored string) bool {
	return verifyPassword(username, password, stored)
}

// BcryptHasher stores a bcrypt hash of the legacy digest.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(username string, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(legacyDigest(username, password)), h.Cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (BcryptHasher) Verify(username string, password string, stored string) bool {
	return verifyPassword(username, password, stored)
}

func legacyDigest(username string, password string) string {
	sum := sha256.Sum256([]byte(username + ":" + password))
	return hex.EncodeToString(sum[:])
}

func isBcryptHash(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$")
}

// verifyPassword picks the scheme from the stored value.
func verifyPassword(username string, password string, stored string) bool {
	digest := legacyDigest(username, password)
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(digest)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(digest), []byte(strings.ToLower(stored))) == 1
}
