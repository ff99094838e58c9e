// Package auth implements the operator credential checks: the shared password (plain or bcrypt
// hash) and signed session tokens issued by the login endpoint.
// This is a leaf package with no domain dependencies. Used by internal/api.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// BCryptCost is the work factor for bcrypt.
const BCryptCost = 12

// DefaultSessionTTL applies when a Verifier is built with a non-positive TTL.
const DefaultSessionTTL = 168 * time.Hour

const sessionSubject = "operator"

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

// ErrSessionsDisabled is returned by IssueSession when no session secret is configured.
var ErrSessionsDisabled = errors.New("session tokens disabled")

// HashPassword hashes a plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BCryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword verifies a plaintext password against a bcrypt hash.
// Returns false (not error) for malformed hashes.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// EqualSecret compares two secrets in constant time. Empty expected values never match.
func EqualSecret(expected, given string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(given)) == 1
}

// Claims are the session token claims.
type Claims struct {
	jwt.RegisteredClaims
}

// Verifier checks operator credentials.
type Verifier struct {
	password     string
	passwordHash string
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

// NewVerifier builds a Verifier. An empty password and hash disables authentication;
// an empty secret disables session tokens.
func NewVerifier(password, passwordHash, sessionSecret string, ttl time.Duration) *Verifier {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	v := &Verifier{
		password:     password,
		passwordHash: passwordHash,
		ttl:          ttl,
		now:          time.Now,
	}
	if sessionSecret != "" {
		v.secret = []byte(sessionSecret)
	}
	return v
}

// Enabled reports whether any credential is configured.
func (v *Verifier) Enabled() bool {
	return v.password != "" || v.passwordHash != ""
}

// CheckPassword reports whether password is the operator password.
func (v *Verifier) CheckPassword(password string) bool {
	if password == "" {
		return false
	}
	if EqualSecret(v.password, password) {
		return true
	}
	// Longer input cannot be a bcrypt password.
	if v.passwordHash == "" || len(password) > maxPasswordBytes {
		return false
	}
	return VerifyPassword(v.passwordHash, password)
}

// CheckToken accepts the raw password or a valid session token.
func (v *Verifier) CheckToken(token string) bool {
	if _, err := v.ParseSession(token); err == nil {
		return true
	}
	return v.CheckPassword(token)
}

// IssueSession signs a session token valid for the configured TTL.
func (v *Verifier) IssueSession() (string, error) {
	if len(v.secret) == 0 {
		return "", ErrSessionsDisabled
	}
	now := v.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionSubject,
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}
	return signed, nil
}

// ParseSession validates a session token and returns its claims.
func (v *Verifier) ParseSession(tokenString string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, ErrSessionsDisabled
	}
	if tokenString == "" {
		return nil, fmt.Errorf("token is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// HMAC only; rejects algorithm substitution
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now), jwt.WithSubject(sessionSubject))
	if err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid session claims or signature")
	}
	return claims, nil
}
