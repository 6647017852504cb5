package service

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Claims of an API access token. The subject is an operator name for admins and
// the merchant ID for merchants.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	Type  string   `json:"type"`
	jwt.RegisteredClaims
}

func (c *Claims) HasRole(role string) bool {
	return c != nil && slices.Contains(c.Roles, role)
}

// TokenService signs and verifies API access tokens. Setup tokens are opaque
// random values stored by SetupTokenRepository and never pass through here.
type TokenService interface {
	GenerateAccessToken(subject string, roles []string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}
