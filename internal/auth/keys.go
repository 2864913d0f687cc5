// Package auth handles operator token hashing and verification.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// HashKey returns a SHA-256 hash of the key.
func HashKey(key string) string {
	key = strings.TrimSpace(key)

	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// VerifyKey reports whether the presented key matches the stored hash.
func VerifyKey(key, storedHash string) bool {
	presented := HashKey(key)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(storedHash)) == 1
}
