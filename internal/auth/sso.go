// ABOUTME: SSO token verification for externally-issued identities
// ABOUTME: HS256 JWTs mapping sub claims to existing tenant users, no auto-provisioning

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/2389/hearth/internal/session"
	"github.com/2389/hearth/internal/store"
)

// SSO token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// SSOVerifier validates externally-issued identity tokens and extracts the
// subject they assert.
type SSOVerifier struct {
	secret []byte
}

// NewSSOVerifier creates a verifier with the given shared secret.
func NewSSOVerifier(secret []byte) *SSOVerifier {
	return &SSOVerifier{secret: secret}
}

// Verify validates the token and extracts the user ID from the "sub" claim.
func (v *SSOVerifier) Verify(tokenString string) (userID string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	return sub, nil
}

// Generate creates a token asserting userID, expiring after expiresIn.
// Intended for tests and for trusted identity bridges.
func (v *SSOVerifier) Generate(userID string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// AuthenticateSSO maps an externally-issued token to an existing tenant user
// and issues a session. Subjects without an existing active account fail
// closed: there is no auto-provisioning of first-time SSO users.
func (s *Service) AuthenticateSSO(ctx context.Context, verifier *SSOVerifier, tokenString string) (*AuthUser, error) {
	userID, err := verifier.Verify(tokenString)
	if err != nil {
		s.logger.Info("sso token rejected", "error", err)
		return nil, ErrInvalidCredentials
	}

	user, tenant, err := s.store.GetActiveUserWithTenant(ctx, userID)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("looking up sso user: %w", err)
	}

	if err := s.store.RecordLogin(ctx, user.ID, time.Now()); err != nil {
		return nil, fmt.Errorf("recording login: %w", err)
	}

	view := authUserView(user, tenant)

	sessionID, err := s.sessions.Create(&session.Record{
		UserID:     user.ID,
		Username:   user.Username,
		Role:       string(user.Role),
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	view.SessionID = sessionID

	s.logger.Info("sso login successful", "user_id", user.ID, "tenant_id", tenant.ID)
	return view, nil
}
