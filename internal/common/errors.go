// Package common defines shared constants and sentinel errors used across
// the callback server, the credential store and the triage CLI. Callers
// should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Configuration errors. These are fatal at startup and never retried.
	ErrMissingStateSecret   = errors.New("oauth state secret is not configured")
	ErrMissingEncryptionKey = errors.New("credential encryption key is not configured")
	ErrMissingCredential    = errors.New("no stored credential")
	ErrMissingAPIKey        = errors.New("model api key is not configured")
	ErrWrongEncryptionKey   = errors.New("encryption key does not match the stored credentials")

	// State token errors. Both kinds wrap ErrStateToken.
	ErrStateToken        = errors.New("state token error")
	ErrStateTokenExpired = fmt.Errorf("%w: expired", ErrStateToken)
	ErrStateTokenInvalid = fmt.Errorf("%w: invalid", ErrStateToken)
)
