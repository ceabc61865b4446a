package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultTokenTTL = 7 * 24 * time.Hour

func NewResolver(secret string) *Resolver {
	return &Resolver{secret: secret}
}

// reports whether tokens are verified
func (r *Resolver) Enabled() bool {
	return r.secret != ""
}

// turns a handshake into an identity or refuses it
func (r *Resolver) Resolve(h Handshake) (Identity, error) {
	if strings.TrimSpace(h.DocumentID) == "" {
		return Identity{}, ErrMissingIdentity
	}

	id := Identity{
		UserID:      strings.TrimSpace(h.UserID),
		DisplayName: strings.TrimSpace(h.DisplayName),
	}

	if h.Token != "" && r.Enabled() {
		claims, err := ValidateJWT(r.secret, h.Token)
		if err != nil {
			return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}

		id.UserID = claims.UserID
		id.Authenticated = true

		if claims.DisplayName != "" {
			id.DisplayName = claims.DisplayName
		}
	}

	if id.UserID == "" {
		return Identity{}, ErrMissingIdentity
	}

	if id.DisplayName == "" {
		id.DisplayName = id.UserID
	}

	return id, nil
}

// creates a JWT token for the user
func GenerateJWT(secret, userID, displayName string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}

	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()

	claims := Claims{
		UserID:      userID,
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// validates a JWT token and returns the claims
func ValidateJWT(secret, tokenString string) (*Claims, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.UserID != "" {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
