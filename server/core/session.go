package core

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/leap-fish/necs/esync"
)

const tokenIssuer = "hoopjam-authority"

// ErrInvalidToken is returned for tokens that fail signature, expiry or
// claim checks.
var ErrInvalidToken = errors.New("invalid session token")

// Claims binds a token to one player in one match session.
type Claims struct {
	Session string          `json:"sid"`
	Player  esync.NetworkId `json:"pid"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies player session tokens.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessions signs tokens with secret. An empty secret is replaced by a
// random one, so tokens do not survive a restart.
func NewSessions(secret []byte, ttl time.Duration) (*Sessions, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	return &Sessions{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for player in session.
func (s *Sessions) Issue(session string, player esync.NetworkId) (string, error) {
	now := s.now()
	claims := Claims{
		Session: session,
		Player:  player,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   fmt.Sprintf("player-%d", player),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// Verify parses a token and returns its claims.
func (s *Sessions) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Player == 0 || claims.Session == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
