// ABOUTME: Password hashing and verification using bcrypt
// ABOUTME: Verify is constant-contract - false on any malformed digest, never an error

package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is a bcrypt digest of a throwaway value. Authenticate compares
// against it when the identity is unknown so that response timing does not
// reveal whether a username or tenant exists.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// HashPassword returns a bcrypt digest of password.
func HashPassword(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// VerifyPassword reports whether password matches digest. Malformed digests
// verify as false; this function never panics or returns an error.
func VerifyPassword(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// compareDummy burns a bcrypt comparison to keep failure timing uniform when
// no real digest is available.
func compareDummy(password string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
}
