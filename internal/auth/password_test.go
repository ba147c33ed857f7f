// ABOUTME: Tests for bcrypt password hashing and verification
// ABOUTME: Covers round-trips, wrong passwords, and malformed digests

package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	digest, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(digest, "$2a$"))

	assert.True(t, VerifyPassword("correct horse battery staple", digest))
	assert.False(t, VerifyPassword("wrong password", digest))
}

func TestHashPassword_DistinctDigests(t *testing.T) {
	first, err := HashPassword("password123")
	require.NoError(t, err)
	second, err := HashPassword("password123")
	require.NoError(t, err)

	// bcrypt salts every digest.
	assert.NotEqual(t, first, second)
	assert.True(t, VerifyPassword("password123", first))
	assert.True(t, VerifyPassword("password123", second))
}

func TestVerifyPassword_MalformedDigest(t *testing.T) {
	assert.False(t, VerifyPassword("anything", ""))
	assert.False(t, VerifyPassword("anything", "not-a-bcrypt-digest"))
	assert.False(t, VerifyPassword("anything", "$2a$10$truncated"))
}

func TestDummyHash_NeverMatches(t *testing.T) {
	// compareDummy must burn time without ever verifying.
	assert.False(t, VerifyPassword("", dummyHash))
	assert.False(t, VerifyPassword("password", dummyHash))
}
