package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingSecret   = errors.New("JWT_SECRET not set")
	ErrInvalidToken    = errors.New("invalid token")
	ErrMissingIdentity = errors.New("userId and documentId are required")
)

// represents JWT claims
type Claims struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	jwt.RegisteredClaims
}

// a verified participant identity handed to the room coordinator
type Identity struct {
	UserID        string
	DisplayName   string
	Authenticated bool
}

// raw identity fields of a connection request
type Handshake struct {
	DocumentID  string
	UserID      string
	DisplayName string
	Token       string
}

// resolves handshakes into identities. With a secret, a presented token is
// verified and its claims win over query fields.
type Resolver struct {
	secret string
}
