package auth

import (
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	tm := NewTokenManager("secret", "cadvault-test", time.Hour)

	token, err := tm.GenerateToken(42, "alice@example.com", "user", "Martin", "Alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := tm.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID() != 42 {
		t.Fatalf("user id = %d", claims.UserID())
	}
	if claims.Email != "alice@example.com" || claims.Role != "user" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.LastName != "Martin" || claims.FirstName != "Alice" {
		t.Fatalf("name claims missing: %+v", claims)
	}
	if claims.Issuer != "cadvault-test" {
		t.Fatalf("issuer = %q", claims.Issuer)
	}
}

func TestGenerateTokenRequiresIdentity(t *testing.T) {
	tm := NewTokenManager("secret", "", time.Hour)
	if _, err := tm.GenerateToken(0, "a@b.c", "user", "", ""); err == nil {
		t.Fatalf("expected error for zero user id")
	}
	if _, err := tm.GenerateToken(1, "", "user", "", ""); err == nil {
		t.Fatalf("expected error for empty email")
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := NewTokenManager("secret-a", "", time.Hour).GenerateToken(1, "a@b.c", "user", "", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewTokenManager("secret-b", "", time.Hour).ValidateToken(token); err == nil {
		t.Fatalf("expected validation failure with wrong secret")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	tm := NewTokenManager("secret", "", time.Millisecond)
	token, err := tm.GenerateToken(1, "a@b.c", "user", "", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := tm.ValidateToken(token); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	tm := NewTokenManager("secret", "", time.Hour)
	if _, err := tm.ValidateToken("not.a.token"); err == nil {
		t.Fatalf("expected parse failure")
	}
}

func TestExtractToken(t *testing.T) {
	token, err := ExtractToken("Bearer abc.def.ghi")
	if err != nil || token != "abc.def.ghi" {
		t.Fatalf("extract: token=%q err=%v", token, err)
	}

	for _, bad := range []string{"", "abc.def.ghi", "Basic abc", "Bearer a b"} {
		if _, err := ExtractToken(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
