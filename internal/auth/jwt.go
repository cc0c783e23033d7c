package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers bad signatures, malformed tokens, foreign
// algorithms and expiry alike. Callers never learn which.
var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	SubjectID string `json:"id"`
	jwt.RegisteredClaims
}

// IssuedAtTime is the token's iat with second precision, zero if absent.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock swaps the time source; tests use it to mint expired tokens.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	cp := *m
	cp.now = now
	return &cp
}

func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs an access token for subjectID with exp = iat + ttl.
func (m *Manager) Issue(subjectID string) (string, error) {
	now := m.now().UTC()

	claims := Claims{
		SubjectID: subjectID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm and expiry and returns the claims.
func (m *Manager) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithIssuedAt(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.SubjectID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
