package common

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// RandomBytes returns n bytes from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return b, nil
}

// RandomHex returns n random bytes hex encoded, so the result has 2n
// characters. It backs generated encryption keys.
func RandomHex(n int) (string, error) {
	b, err := RandomBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Wipe zeroes b. Secrets read from a terminal are wiped once stored.
func Wipe(b []byte) {
	clear(b)
}
