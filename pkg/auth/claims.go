package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenClaims represents the claim set the backend encodes in access tokens.
type AccessTokenClaims struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the read-only projection of a decoded access token.
type Identity struct {
	UserID    int64
	Name      string
	Email     string
	ExpiresAt time.Time
}

// Expired reports whether the token's exp claim is in the past. The backend is
// the authority on token validity; callers use this for display only.
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && i.ExpiresAt.Before(now)
}

// DecodeIdentity extracts the identity from an access token without verifying
// the signature. The client never holds the signing secret; the backend
// re-validates the token on every request. Expired tokens still decode, which
// lets the refresh flow present them for exchange.
func DecodeIdentity(token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("empty access token")
	}

	claims := &AccessTokenClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("decoding access token: %w", err)
	}

	if claims.UserID == 0 && claims.Subject == "" {
		return nil, fmt.Errorf("access token carries no identity")
	}

	identity := &Identity{
		UserID: claims.UserID,
		Name:   claims.Name,
		Email:  claims.Email,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}
