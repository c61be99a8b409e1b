package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-0123456789abcdefghij"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTokenIssuer_IssueThenVerify_ReturnsSubject(t *testing.T) {
	issuer := NewTokenIssuer(TokenConfig{Secret: testSecret, TTL: 7 * 24 * time.Hour})

	token, err := issuer.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("token should have three segments, got %q", token)
	}

	userID, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if userID != "user-123" {
		t.Errorf("userID = %q, want %q", userID, "user-123")
	}
}

func TestTokenIssuer_Issue_EmptyUserID(t *testing.T) {
	issuer := NewTokenIssuer(TokenConfig{Secret: testSecret, TTL: time.Hour})

	if _, err := issuer.Issue(""); err == nil {
		t.Fatal("expected error for empty user ID")
	}
}

func TestTokenIssuer_Issue_SetsExpiryFromTTL(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer(TokenConfig{Secret: testSecret, TTL: 7 * 24 * time.Hour, Now: fixedClock(issuedAt)})

	token, err := issuer.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		t.Fatalf("ParseUnverified() error = %v", err)
	}
	if !claims.IssuedAt.Time.Equal(issuedAt) {
		t.Errorf("iat = %v, want %v", claims.IssuedAt.Time, issuedAt)
	}
	if want := issuedAt.Add(7 * 24 * time.Hour); !claims.ExpiresAt.Time.Equal(want) {
		t.Errorf("exp = %v, want %v", claims.ExpiresAt.Time, want)
	}
	if claims.Subject != "user-123" {
		t.Errorf("sub = %q, want %q", claims.Subject, "user-123")
	}
}

func TestTokenIssuer_Verify_ExpiredToken(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer(TokenConfig{Secret: testSecret, TTL: time.Hour, Now: fixedClock(issuedAt)})
	token, err := issuer.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	later := NewTokenIssuer(TokenConfig{Secret: testSecret, TTL: time.Hour, Now: fixedClock(issuedAt.Add(2 * time.Hour))})
	if _, err := later.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenIssuer_Verify_Rejects(t *testing.T) {
	issuer := NewTokenIssuer(TokenConfig{Secret: testSecret, TTL: time.Hour})
	other := NewTokenIssuer(TokenConfig{Secret: "another-secret-0123456789abcdef", TTL: time.Hour})

	otherToken, err := other.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	now := time.Now()
	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   "user-123",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to sign none token: %v", err)
	}

	sign := func(claims jwt.RegisteredClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		return s
	}
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   "user-123",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign HS512 token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"different secret", otherToken},
		{"alg none", noneToken},
		{"alg HS512", hs512},
		{"missing exp", sign(jwt.RegisteredClaims{Issuer: tokenIssuer, Subject: "user-123"})},
		{"empty subject", sign(jwt.RegisteredClaims{Issuer: tokenIssuer, ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))})},
		{"wrong issuer", sign(jwt.RegisteredClaims{Issuer: "someone-else", Subject: "user-123", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID, err := issuer.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
			if userID != "" {
				t.Errorf("userID = %q, want empty", userID)
			}
		})
	}
}
