package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParseToken(t *testing.T) {
	user := &User{
		ID:    "usr-001",
		Email: "parent@example.com",
	}
	secret := "test-secret-key-for-jwt-signing"

	token, err := GenerateToken(user, secret, 60)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if token == "" {
		t.Fatal("GenerateToken() returned empty token")
	}

	claims, err := ParseToken(token, secret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	if claims.Subject != "usr-001" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "usr-001")
	}

	if claims.Email != "parent@example.com" {
		t.Errorf("Email = %q, want %q", claims.Email, "parent@example.com")
	}

	if claims.ID == "" {
		t.Error("JTI (ID) should not be empty")
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	user := &User{ID: "usr-001", Email: "parent@example.com"}

	token, err := GenerateToken(user, "correct-secret", 60)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if _, err := ParseToken(token, "wrong-secret"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken() with wrong secret: expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseToken_Expired(t *testing.T) {
	secret := "test-secret"

	// Hand-build a token that expired an hour ago.
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "usr-001",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-1 * time.Hour)),
			ID:        "expired-token",
		},
		Email: "parent@example.com",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}

	if _, err := ParseToken(signed, secret); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken() on expired token: expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseToken_MissingSubject(t *testing.T) {
	secret := "test-secret"

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: "parent@example.com",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}

	if _, err := ParseToken(signed, secret); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken() without subject: expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseToken_Garbage(t *testing.T) {
	if _, err := ParseToken("not-a-jwt", "secret"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}
