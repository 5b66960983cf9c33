// internal/service/session/token.go

package session

import (
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"

	"geofinder/internal/domain/session"
)

// TokenIssuer signs and verifies bearer tokens bound to a single session
type TokenIssuer struct {
	secret []byte
	expiry time.Duration
}

// NewTokenIssuer creates a new token issuer
func NewTokenIssuer(secret string, expiry time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		expiry: expiry,
	}
}

// Issue returns a signed token for the session
func (ti *TokenIssuer) Issue(sessionID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid": sessionID,
		"exp": time.Now().Add(ti.expiry).Unix(),
	})

	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, expiry and session claim of a token
func (ti *TokenIssuer) Verify(tokenString, sessionID string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return ti.secret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return session.ErrInvalidToken
	}

	if sid, _ := claims["sid"].(string); sid != sessionID {
		return fmt.Errorf("%w: token issued for another session", session.ErrInvalidToken)
	}

	return nil
}
