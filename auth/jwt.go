package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

const (
	scopeTokenIssuer = "muxsite"
	scopeKeyInfo     = "muxsite scope cookie v1"

	// ScopeTokenLifetime bounds how long a browser keeps its storage scope
	ScopeTokenLifetime = 365 * 24 * time.Hour
)

// ErrEmptySecret is returned when no signing secret is configured
var ErrEmptySecret = errors.New("signing secret is empty")

// NewScopeID returns a fresh random scope id.
func NewScopeID() string {
	return uuid.New().String()
}

// deriveSigningKey stretches the configured secret into a dedicated HMAC key.
func deriveSigningKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(scopeKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	return key, nil
}

// GenerateScopeToken signs a token naming scopeID.
func GenerateScopeToken(scopeID, secret string, now time.Time) (string, error) {
	key, err := deriveSigningKey(secret)
	if err != nil {
		return "", err
	}

	claims := ScopeClaims{
		ScopeID: scopeID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    scopeTokenIssuer,
			Subject:   scopeID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ScopeTokenLifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign scope token: %w", err)
	}
	return signed, nil
}

// ValidateScopeToken verifies the signature and returns the claims.
func ValidateScopeToken(tokenString, secret string) (*ScopeClaims, error) {
	key, err := deriveSigningKey(secret)
	if err != nil {
		return nil, err
	}

	claims := &ScopeClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(scopeTokenIssuer),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid scope token: %w", err)
	}
	if !token.Valid || claims.ScopeID == "" {
		return nil, errors.New("invalid scope token")
	}
	return claims, nil
}
