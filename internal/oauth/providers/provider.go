// Package providers implements the OAuth code exchange for each supported
// identity provider and the registry the callback server dispatches on.
package providers

import (
	"context"
	"fmt"
)

// Provider is one pluggable OAuth integration.
type Provider interface {
	// Name is the registry key and the credential store provider key.
	Name() string
	// IsConfigured reports whether both client id and secret are present.
	IsConfigured() bool
	// AuthCodeURL is the consent URL the user is redirected to.
	AuthCodeURL(state, redirectURI string) string
	// ExchangeCodeForToken validates state, exchanges code and stores the
	// resulting credential. The message is safe to show to the end user.
	ExchangeCodeForToken(ctx context.Context, code, stateToken, redirectURI string) (bool, string)
}

// StateValidator resolves a state token to the user id it was minted for.
type StateValidator interface {
	Validate(token string) (string, error)
}

// User-facing outcome messages.
const (
	MsgStateExpired = "Authorization request expired, please try again"
	MsgStateInvalid = "Invalid authorization request"
	MsgTimeout      = "Request timed out, try again"
	MsgSaveFailed   = "Failed to save credentials"
)

func msgRemoteFailed(display string) string {
	return fmt.Sprintf("%s authorization failed, try again", display)
}

func msgLibraryFailed(display string) string {
	return fmt.Sprintf("%s authentication failed", display)
}

func msgNotConfigured(display string) string {
	return fmt.Sprintf("%s is not configured", display)
}

func msgSuccess(identity string) string {
	return "Successfully authenticated " + identity
}
