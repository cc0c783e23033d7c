package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const resetTokenBytes = 32

// NewResetToken returns a 64 hex char token for the user and its sha256 for storage.
func NewResetToken() (raw, hash string, err error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("read random: %w", err)
	}

	raw = hex.EncodeToString(b)
	return raw, HashResetToken(raw), nil
}

// HashResetToken is deterministic so a presented token can be looked up by hash.
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
