// Package auth issues bearer tokens and hashes passwords.
package auth

import "golang.org/x/crypto/bcrypt"

// DefaultPasswordCost keeps a single verification around 100ms on commodity hardware.
const DefaultPasswordCost = 10

// PasswordHasher derives and verifies salted one-way password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// BcryptHasher hashes passwords with bcrypt at the configured cost.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher using cost, or DefaultPasswordCost when cost is out of bcrypt's range.
func NewBcryptHasher(cost int) BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultPasswordCost
	}
	return BcryptHasher{Cost: cost}
}

// Hash returns the encoded bcrypt hash, which embeds its own salt and cost.
func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = DefaultPasswordCost
	}
	encoded, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// Verify reports whether password matches hash. Malformed hashes never match.
func (h BcryptHasher) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
