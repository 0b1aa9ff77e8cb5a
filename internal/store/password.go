package store

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Accounts never store plaintext passwords. Each account keeps a random
// salt and a PBKDF2-SHA256 digest; verification recomputes the digest
// from the presented plaintext and compares in constant time.

const (
	saltBytes   = 16
	pbkdf2Iters = 4096
	digestBytes = 32
)

func newSalt() (string, error) {
	var raw [saltBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return hex.EncodeToString(raw[:]), nil
}

func passwordDigest(salt, password string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iters, digestBytes, sha256.New)
	return hex.EncodeToString(key)
}

func verifyPassword(salt, digest, password string) bool {
	computed := passwordDigest(salt, password)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}
