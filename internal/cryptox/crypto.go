// Package cryptox holds the symmetric primitives used to protect stored
// provider credentials: Argon2id key derivation and AES-GCM sealing of
// JSON-serializable values.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"

	"golang.org/x/crypto/argon2"
)

// KeySize is the derived key length (AES-256).
const KeySize = 32

// SaltSize is the recommended salt length for DeriveKey.
const SaltSize = 16

var ErrEmptySecret = errors.New("empty secret")

// DeriveKey stretches an operator supplied secret into a KeySize AES key.
func DeriveKey(secret []byte, salt []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, KeySize), nil
}

// EncryptEntry serializes the given entry to JSON and encrypts it using AES-GCM.
//
// The key must be a valid AES key length (16, 24, or 32 bytes for AES-128,
// AES-192, or AES-256 respectively). A new random 12-byte nonce is generated
// for each encryption. The ciphertext and nonce are returned separately.
//
// Example:
//
//	key, _ := DeriveKey([]byte(secret), salt)
//	ciphertext, nonce, err := EncryptEntry(cred, key)
//	if err != nil {
//	    return err
//	}
func EncryptEntry(entry any, key []byte) (ciphertext, nonce []byte, err error) {

	// serializing JSON
	plaintext, err := json.Marshal(entry)
	if err != nil {
		return nil, nil, err
	}

	// nonce
	nonce = make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	// new cypher
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}

	// encrypting
	ciphertext = aesgcm.Seal(nil, nonce, plaintext, nil)

	return ciphertext, nonce, nil
}

// DecryptEntry decrypts the given ciphertext using AES-GCM and unmarshals
// the resulting JSON into the provided value v.
//
// The key must be the same AES key that was used to encrypt the data,
// and the nonce must be the same 12-byte nonce generated during encryption.
// A wrong key or a tampered ciphertext makes Open fail authentication.
func DecryptEntry(ciphertext, nonce, key []byte, v any) error {
	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return err
	}

	return json.Unmarshal(plaintext, v)
}
