// Package credentials isolates password hashing from the user entity.
// Hashes are bcrypt with a per-hash random 16-byte salt generated by the
// library; the work factor is fixed here so every call site agrees on it.
package credentials

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Cost is the bcrypt work factor (2^Cost key expansion rounds).
const Cost = bcrypt.DefaultCost

// ErrMismatch is returned when a password does not match its hash.
var ErrMismatch = errors.New("credential mismatch")

// Hasher hashes and verifies user passwords.
type Hasher struct {
	cost int
}

// NewHasher creates a hasher with the package work factor.
func NewHasher() *Hasher {
	return &Hasher{cost: Cost}
}

// Hash derives a bcrypt hash for the given password.
func (h *Hasher) Hash(password string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(out), nil
}

// Verify checks a password against a stored hash. Returns ErrMismatch when
// the password is wrong, a wrapped error for malformed hashes.
func (h *Hasher) Verify(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	return fmt.Errorf("failed to verify password: %w", err)
}
