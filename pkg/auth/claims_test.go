package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims AccessTokenClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func TestDecodeIdentity(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signedToken(t, AccessTokenClaims{
		UserID: 42,
		Name:   "ada",
		Email:  "ada@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	identity, err := DecodeIdentity(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.UserID != 42 || identity.Name != "ada" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if !identity.ExpiresAt.Equal(exp) {
		t.Fatalf("expected expiry %v, got %v", exp, identity.ExpiresAt)
	}
	if identity.Expired(time.Now()) {
		t.Fatal("identity should not be expired")
	}
}

func TestDecodeIdentityExpiredTokenStillDecodes(t *testing.T) {
	t.Parallel()

	token := signedToken(t, AccessTokenClaims{
		UserID: 7,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	identity, err := DecodeIdentity(token)
	if err != nil {
		t.Fatalf("expired token must still decode: %v", err)
	}
	if !identity.Expired(time.Now()) {
		t.Fatal("expected Expired to report true")
	}
}

func TestDecodeIdentityRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, tok := range []string{"", "  ", "not-a-jwt", "a.b"} {
		if _, err := DecodeIdentity(tok); err == nil {
			t.Fatalf("expected error for %q", tok)
		}
	}
}

func TestDecodeIdentityRequiresIdentityClaim(t *testing.T) {
	t.Parallel()

	token := signedToken(t, AccessTokenClaims{})
	if _, err := DecodeIdentity(token); err == nil {
		t.Fatal("expected error when no identity claim present")
	}
}
