package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the informational fields read from an access token.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// ParseClaims decodes a JWT access token without verifying its signature. The
// portal is the only consumer of the token; we read it for logging only.
func ParseClaims(token string) (*Claims, error) {
	registered := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, registered); err != nil {
		return nil, fmt.Errorf("auth: parse access token: %w", err)
	}
	out := &Claims{Subject: registered.Subject}
	if registered.ExpiresAt != nil {
		out.ExpiresAt = registered.ExpiresAt.Time
	}
	return out, nil
}
