package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and verifies account passwords.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	VerifyPassword(password, encodedHash string) bool
}

// BcryptHasher is the production hasher.
type BcryptHasher struct {
	// Cost defaults to bcrypt.DefaultCost when zero.
	Cost int
}

func (h BcryptHasher) HashPassword(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (BcryptHasher) VerifyPassword(password, encodedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)) == nil
}

// FakeInsecureHasher implements PasswordHasher with zero crypto overhead.
// Stores passwords as "$fake$<plaintext>" and verifies by string comparison.
// For --test mode and unit tests only.
type FakeInsecureHasher struct{}

func (FakeInsecureHasher) HashPassword(password string) (string, error) {
	return "$fake$" + password, nil
}

func (FakeInsecureHasher) VerifyPassword(password, encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$fake$") && strings.TrimPrefix(encodedHash, "$fake$") == password
}
