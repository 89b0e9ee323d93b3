package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLegacyHasher(t *testing.T) {
	sum := sha256.Sum256([]byte("alice:Abcd123!"))
	want := hex.EncodeToString(sum[:])

	hash, err := LegacyHasher{}.Hash("alice", "Abcd123!")
	require.NoError(t, err)
	assert.Equal(t, want, hash)

	assert.True(t, LegacyHasher{}.Verify("alice", "Abcd123!", hash))
	assert.True(t, LegacyHasher{}.Verify("alice", "Abcd123!", strings.ToUpper(hash)))
	assert.False(t, LegacyHasher{}.Verify("alice", "Abcd123?", hash))
	assert.False(t, LegacyHasher{}.Verify("alicf", "Abcd123!", hash))
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}

	hash, err := h.Hash("alice", "Abcd123!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2"))

	assert.True(t, h.Verify("alice", "Abcd123!", hash))
	assert.False(t, h.Verify("alice", "wrong", hash))

	// switching schemes keeps existing users able to sign in
	legacy, err := LegacyHasher{}.Hash("bob", "Secret1!")
	require.NoError(t, err)
	assert.True(t, h.Verify("bob", "Secret1!", legacy))
	assert.True(t, LegacyHasher{}.Verify("alice", "Abcd123!", hash))
}

func TestNewPasswordHasher(t *testing.T) {
	h, err := NewPasswordHasher("legacy", 0)
	require.NoError(t, err)
	assert.IsType(t, LegacyHasher{}, h)

	h, err = NewPasswordHasher("BCRYPT", 0)
	require.NoError(t, err)
	assert.Equal(t, BcryptHasher{Cost: bcrypt.DefaultCost}, h)

	_, err = NewPasswordHasher("bcrypt", 99)
	require.Error(t, err)

	_, err = NewPasswordHasher("md5", 0)
	require.Error(t, err)
}
