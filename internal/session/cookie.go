package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieCodec binds a browser to a server-side session through a signed
// cookie. The cookie carries only the session ID, HMAC-signed so a
// client cannot mint or swap IDs.
type CookieCodec struct {
	name   string
	secret []byte
	ttl    time.Duration
}

// NewCookieCodec creates a codec for the named cookie.
func NewCookieCodec(name, secret string, ttl time.Duration) *CookieCodec {
	return &CookieCodec{
		name:   name,
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Name returns the cookie name.
func (c *CookieCodec) Name() string { return c.name }

// TTL returns the cookie lifetime.
func (c *CookieCodec) TTL() time.Duration { return c.ttl }

// Issue signs a session ID into a cookie value.
func (c *CookieCodec) Issue(sessionID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session cookie: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry, returning the session ID.
func (c *CookieCodec) Verify(value string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(value, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid session cookie: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New("invalid session cookie")
	}
	return claims.Subject, nil
}
