package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL bounds the exposure of a leaked token. Tokens cannot be revoked,
// so expiry is the only mitigation.
const DefaultTTL = 300 * time.Second

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrEncoding     = errors.New("could not encode token")
)

type Claims = jwt.RegisteredClaims

// Manager signs and verifies HS256 access tokens carrying a user id subject.
// It holds no mutable state and is safe for concurrent use.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

func NewManager(secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Encode issues a token for userID valid from now until now+TTL.
func (m *Manager) Encode(userID int64, now time.Time) (string, error) {
	now = now.UTC()

	claims := Claims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	raw, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncoding, err)
	}

	return raw, nil
}

// Decode verifies the signature first; only a correctly signed token can be
// reported as expired.
func (m *Manager) Decode(tokenStr string, now time.Time) (int64, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		// reject non-canonical base64 so every signature character counts
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)

	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	if claims.ExpiresAt == nil {
		return 0, fmt.Errorf("%w: missing exp", ErrTokenInvalid)
	}

	// exp has second precision; the token is good through that whole second
	if now.Unix() > claims.ExpiresAt.Unix() {
		return 0, ErrTokenExpired
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject", ErrTokenInvalid)
	}

	return userID, nil
}
