// Package ownerauth issues and validates short-lived sessions for human
// owners claiming agents. Agents themselves authenticate with API keys;
// this package only covers the human-facing claim surface.
package ownerauth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"

	"github.com/clawlink/clawlink/internal/apperr"
)

const (
	sessionTTL   = 24 * time.Hour
	challengeTTL = 10 * time.Minute
)

// Claims is the owner-session JWT payload.
type Claims struct {
	ExternalID string `json:"externalId"`
	Handle     string `json:"handle"`
	jwt.RegisteredClaims
}

// Sessions mints and validates owner-session tokens and tracks in-flight
// PKCE challenges. Disabled when constructed with an empty secret.
type Sessions struct {
	secret []byte
	clock  clock.Clock

	mu         sync.Mutex
	challenges map[string]challenge
}

type challenge struct {
	hash      string
	expiresAt time.Time
}

// NewSessions creates the session issuer. An empty secret disables it.
func NewSessions(secret string, clk clock.Clock) *Sessions {
	return &Sessions{
		secret:     []byte(secret),
		clock:      clk,
		challenges: make(map[string]challenge),
	}
}

// Enabled reports whether a signing secret is configured.
func (s *Sessions) Enabled() bool { return len(s.secret) > 0 }

// Mint issues a signed session token for a verified owner.
func (s *Sessions) Mint(externalID, handle string) (string, error) {
	if !s.Enabled() {
		return "", apperr.New(apperr.PreconditionFailed, "owner sessions are not configured")
	}
	now := s.clock.Now()
	claims := Claims{
		ExternalID: externalID,
		Handle:     handle,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "clawlink",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a session token.
func (s *Sessions) Validate(tokenString string) (*Claims, error) {
	if !s.Enabled() {
		return nil, apperr.New(apperr.PreconditionFailed, "owner sessions are not configured")
	}
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil || !token.Valid {
		return nil, apperr.Wrap(apperr.Unauthenticated, "invalid session token", err)
	}
	return claims, nil
}

// ChallengeS256 derives the PKCE code challenge for a verifier.
func ChallengeS256(codeVerifier string) string {
	sum := sha256.Sum256([]byte(codeVerifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// RegisterChallenge stores a PKCE code challenge (S256 hash of a verifier
// the client keeps) keyed by state. Challenges expire after ten minutes.
func (s *Sessions) RegisterChallenge(state, codeChallenge string) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, c := range s.challenges {
		if now.After(c.expiresAt) {
			delete(s.challenges, k)
		}
	}
	s.challenges[state] = challenge{hash: codeChallenge, expiresAt: now.Add(challengeTTL)}
}

// ConsumeChallenge checks the verifier against the stored challenge and
// removes it. One shot: a second attempt with the same state fails.
func (s *Sessions) ConsumeChallenge(state, codeVerifier string) error {
	s.mu.Lock()
	c, ok := s.challenges[state]
	delete(s.challenges, state)
	s.mu.Unlock()
	if !ok || s.clock.Now().After(c.expiresAt) {
		return apperr.New(apperr.Unauthenticated, "unknown or expired challenge")
	}
	if subtle.ConstantTimeCompare([]byte(ChallengeS256(codeVerifier)), []byte(c.hash)) != 1 {
		return apperr.New(apperr.Unauthenticated, "code verifier mismatch")
	}
	return nil
}
