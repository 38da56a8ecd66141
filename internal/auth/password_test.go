package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("secret1")
	if err != nil {
		t.Fatalf("unexpected hash error: %v", err)
	}
	if hash == "secret1" || !strings.HasPrefix(hash, "$2") {
		t.Fatalf("expected bcrypt encoded hash, got %q", hash)
	}
	if !hasher.Verify(hash, "secret1") {
		t.Fatalf("expected matching password to verify")
	}
	if hasher.Verify(hash, "secret2") {
		t.Fatalf("expected mismatched password to fail")
	}
	if hasher.Verify("not-a-hash", "secret1") {
		t.Fatalf("expected malformed hash to fail")
	}
}

func TestBcryptHasherSaltsEveryHash(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)
	first, err := hasher.Hash("secret1")
	if err != nil {
		t.Fatalf("unexpected hash error: %v", err)
	}
	second, err := hasher.Hash("secret1")
	if err != nil {
		t.Fatalf("unexpected hash error: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct salted hashes")
	}
}

func TestNewBcryptHasherFallsBackToDefaultCost(t *testing.T) {
	if NewBcryptHasher(0).Cost != DefaultPasswordCost {
		t.Fatalf("expected default cost for zero")
	}
	if NewBcryptHasher(bcrypt.MaxCost+1).Cost != DefaultPasswordCost {
		t.Fatalf("expected default cost for out-of-range value")
	}
	if NewBcryptHasher(bcrypt.MinCost).Cost != bcrypt.MinCost {
		t.Fatalf("expected configured cost to be kept")
	}
}
