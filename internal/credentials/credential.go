// Package credentials stores per-user provider credentials encrypted at rest.
package credentials

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// Credential is what a provider hands back after authorization. ServerURL
// is only set for Jira, where it carries the instance base URL.
type Credential struct {
	Provider     string    `json:"provider"`
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
	Scopes       []string  `json:"scopes,omitempty"`
	ServerURL    string    `json:"server_url,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store is keyed by (provider, user id). Get returns (nil, nil) when nothing
// is stored. Upsert replaces the whole credential.
type Store interface {
	Get(ctx context.Context, provider, userID string) (*Credential, error)
	Upsert(ctx context.Context, provider, userID string, cred *Credential) error
	Delete(ctx context.Context, provider, userID string) error
}

// FromOAuth2Token copies the token fields of tok into a new Credential.
func FromOAuth2Token(tok *oauth2.Token, scopes []string) *Credential {
	return &Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		Scopes:       scopes,
	}
}

// OAuth2Token converts the credential back for use with an oauth2 token source.
func (c *Credential) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
}
