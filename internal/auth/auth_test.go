package auth

import (
	"context"
	"slices"
	"testing"
	"time"
)

func setTestSecret(t *testing.T) {
	t.Helper()
	ResetSecretForTests()
	t.Setenv("PARADISE_AUTH_SECRET", "unit-test-secret")
	t.Cleanup(ResetSecretForTests)
}

func TestGenerateAndValidate(t *testing.T) {
	setTestSecret(t)

	token, err := GenerateToken("PN-M001", []string{"Member", "ADMIN", "member"}, 30*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "PN-M001" {
		t.Fatalf("subject = %q", claims.Subject)
	}
	if claims.Issuer != "paradise" {
		t.Fatalf("issuer = %q", claims.Issuer)
	}
	if !slices.Equal(claims.Roles, []string{"member", "admin"}) {
		t.Fatalf("roles = %v", claims.Roles)
	}
}

func TestGenerateTokenValidation(t *testing.T) {
	setTestSecret(t)
	if _, err := GenerateToken("", []string{"member"}, time.Minute); err == nil {
		t.Fatal("expected error for empty account id")
	}
	if _, err := GenerateToken("PN-M001", nil, 0); err == nil {
		t.Fatal("expected error for non-positive ttl")
	}
}

func TestMissingSecret(t *testing.T) {
	ResetSecretForTests()
	t.Setenv("PARADISE_AUTH_SECRET", "")
	t.Cleanup(ResetSecretForTests)
	if _, err := GenerateToken("PN-M001", nil, time.Minute); err == nil {
		t.Fatal("expected error without configured secret")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	setTestSecret(t)
	token, err := GenerateToken("PN-M001", nil, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := ParseAndValidate(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	setTestSecret(t)
	token, err := GenerateToken("PN-M001", nil, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseAndValidate(token + "x"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := ParseAndValidate(""); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
}

func TestContextIdentity(t *testing.T) {
	ctx := ContextWithAccount(context.Background(), "PN-M002", []string{"Admin", "member"})

	id, ok := AccountIDFromContext(ctx)
	if !ok || id != "PN-M002" {
		t.Fatalf("account id = %q ok=%v", id, ok)
	}
	if !HasRole(ctx, "admin") || !HasRole(ctx, "MEMBER") {
		t.Fatal("expected both roles present")
	}
	if HasRole(ctx, "owner") {
		t.Fatal("unexpected role")
	}
	if id, ok := AccountIDFromContext(context.Background()); ok {
		t.Fatalf("empty context yielded identity %q", id)
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("open sesame")
	if err != nil {
		t.Fatal(err)
	}
	if hash == "open sesame" {
		t.Fatal("password stored in the clear")
	}
	if err := VerifyPassword(hash, "open sesame"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); err == nil {
		t.Fatal("wrong password accepted")
	}
}
