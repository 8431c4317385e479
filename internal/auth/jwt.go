// Package auth provides session tokens, password hashing, and the HTTP
// middleware that turns a session cookie into a request-scoped user ID.
//
// Sessions are stateless JWTs: the signed token carries the user ID and
// expiry, so validation needs no store lookup. The same TokenService also
// signs the short-lived confirmation tokens used by two-phase deletes; a
// delete request issues a token scoped to one resource, and only presenting
// that token back executes the delete.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "potluck"

// SessionDuration is how long a login lasts before the user must sign in
// again.
const SessionDuration = 24 * time.Hour

// ConfirmDuration is the validity window of a delete-confirmation token.
// Long enough to read the confirmation dialog, short enough that a leaked
// token is useless.
const ConfirmDuration = 2 * time.Minute

// TokenService signs and validates the application's JWTs.
// The HMAC secret must be the same for signing and verification.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the JWT payload. Subject holds the user ID; Action and Resource
// are set only on confirmation tokens and scope the token to a single
// operation on a single document.
type claims struct {
	Action   string `json:"act,omitempty"`
	Resource string `json:"res,omitempty"`
	jwt.RegisteredClaims
}

// Generate creates a session token for the given userID.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.sign(claims{
		RegisteredClaims: registered(userID, SessionDuration),
	})
}

// GenerateWithDuration creates a session token with a custom expiry.
// Used in tests.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	return s.sign(claims{
		RegisteredClaims: registered(userID, d),
	})
}

// GenerateConfirm creates a short-lived token authorizing a single action
// (e.g. "delete-recipe") on a single resource by a single user.
func (s *TokenService) GenerateConfirm(userID, action, resourceID string) (string, error) {
	return s.sign(claims{
		Action:           action,
		Resource:         resourceID,
		RegisteredClaims: registered(userID, ConfirmDuration),
	})
}

// Validate parses a session token and returns the user ID it encodes.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	c, err := s.parse(tokenStr)
	if err != nil {
		return "", err
	}
	return c.Subject, nil
}

// ValidateConfirm parses a confirmation token and checks that it was issued
// to userID for exactly this action and resource.
func (s *TokenService) ValidateConfirm(tokenStr, userID, action, resourceID string) error {
	c, err := s.parse(tokenStr)
	if err != nil {
		return err
	}
	if c.Subject != userID || c.Action != action || c.Resource != resourceID {
		return fmt.Errorf("auth: confirmation token does not match this operation")
	}
	return nil
}

func registered(userID string, d time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		Issuer:    issuer,
	}
}

func (s *TokenService) sign(c claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) parse(tokenStr string) (*claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			// Reject anything not signed with HS256; guards against
			// algorithm confusion.
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}
	return c, nil
}
