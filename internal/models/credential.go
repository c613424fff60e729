package models

import "time"

// CredentialRecord is the persisted, encrypted form of a provider credential.
// Ciphertext is AES-GCM over the JSON credential; Nonce is the GCM nonce.
type CredentialRecord struct {
	Provider   string    `db:"provider"`
	UserID     string    `db:"user_id"`
	Ciphertext []byte    `db:"ciphertext"`
	Nonce      []byte    `db:"nonce"`
	UpdatedAt  time.Time `db:"updated_at"`
}
