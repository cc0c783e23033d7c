package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt work factor for stored passwords.
const PasswordCost = 12

var ErrPasswordMismatch = errors.New("password mismatch")

// HashPassword hashes a plain text password with bcrypt.
func HashPassword(plain string) (string, error) {
	return hashWithCost(plain, PasswordCost)
}

func hashWithCost(plain string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password.
func CheckPassword(hash, plain string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}
