package authtoken

import (
	"testing"
	"time"
)

func TestMintAndValidateRoundTrip(t *testing.T) {
	iss := NewIssuer([]byte("test-secret"), time.Minute)

	tok, err := iss.Mint("admin")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	sub, err := iss.Validate(tok)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if sub != "admin" {
		t.Fatalf("got subject %q, want admin", sub)
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	iss := NewIssuer([]byte("test-secret"), -time.Minute)

	tok, err := iss.Mint("admin")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if _, err := iss.Validate(tok); err != ErrExpired {
		t.Fatalf("got %v, want ErrExpired", err)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	iss1 := NewIssuer([]byte("secret-one"), time.Minute)
	iss2 := NewIssuer([]byte("secret-two"), time.Minute)

	tok, err := iss1.Mint("admin")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if _, err := iss2.Validate(tok); err == nil {
		t.Fatal("expected validation to fail against a different signing secret")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "hunter2") {
		t.Fatal("expected the correct password to check out")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatal("expected an incorrect password to fail")
	}
}
