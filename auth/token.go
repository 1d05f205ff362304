// Package auth issues and verifies the session tokens sent with every request.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/creativeprojects/mailstate/lib"
	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultTTL = time.Hour
	issuer     = "mailstate"
)

type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// TokenSource signs session tokens for one user. A token is reused until it gets close to expiry.
type TokenSource struct {
	mu       sync.Mutex
	secret   []byte
	username string
	ttl      time.Duration
	token    string
	renewAt  time.Time
	now      func() time.Time
}

func NewTokenSource(secret, username string, ttl time.Duration) (*TokenSource, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: token secret", lib.ErrMissingArgument)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenSource{
		secret:   []byte(secret),
		username: username,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// Token implements gateway.TokenProvider
func (s *TokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Before(s.renewAt) {
		return s.token, nil
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   s.username,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Username: s.username,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("cannot sign session token: %w", err)
	}
	s.token = token
	// renew when 90% of the lifetime has passed
	s.renewAt = now.Add(s.ttl - s.ttl/10)
	return token, nil
}

// Verify checks the signature and the validity dates of a token
func Verify(secret, token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", lib.ErrUnauthorized)
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", lib.ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !parsed.Valid || !ok {
		return nil, fmt.Errorf("%w: invalid token claims", lib.ErrUnauthorized)
	}
	return claims, nil
}

// IsExpired tells if Verify failed because the token expired
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
