package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

const TokenTypeSession = "session"

// Claims are embedded in the bearer token handed out at session creation.
type Claims struct {
	jwt.RegisteredClaims
	SessionID   string `json:"sid"`
	APIKeyOwner string `json:"owner"`
	TokenType   string `json:"type"`
}

// Principal is the authenticated caller of a per-session endpoint.
type Principal struct {
	SessionID   string
	APIKeyOwner string
}
