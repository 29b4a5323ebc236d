// Package password derives and verifies salted password hashes using
// PBKDF2-SHA512. The stored blob is self-describing enough to re-derive
// (the salt is embedded) while the derivation parameters stay fixed at the
// package level so every account in the system shares the same cost.
package password

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLength = 16
	iterations = 120000
	keyLength  = 64
)

// Hash derives a salted hash from the plain-text password. The returned
// blob is hex(salt) ":" hex(key).
func Hash(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := derive(password, salt)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(key), nil
}

// Verify re-derives the key from the embedded salt and compares it against
// the stored key in constant time. A structurally malformed blob verifies
// as false; undecodable hex surfaces as an error.
func Verify(password, stored string) (bool, error) {
	parts := strings.Split(stored, ":")
	if len(parts) != 2 {
		return false, nil
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return false, fmt.Errorf("decode salt: %w", err)
	}
	expected, err := hex.DecodeString(parts[1])
	if err != nil {
		return false, fmt.Errorf("decode key: %w", err)
	}
	if len(salt) != saltLength || len(expected) != keyLength {
		return false, nil
	}
	key := derive(password, salt)
	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

func derive(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, keyLength, sha512.New)
}

// Hasher adapts the package functions to the hasher interface consumed by
// the session service.
type Hasher struct{}

func (Hasher) Hash(password string) (string, error) { return Hash(password) }

func (Hasher) Verify(password, stored string) (bool, error) { return Verify(password, stored) }
