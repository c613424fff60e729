package providers

import (
	"context"

	"github.com/agentllm/agentllm/internal/common"
	"github.com/agentllm/agentllm/internal/credentials"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// GoogleDriveScope grants read access to the user's Drive documents.
const GoogleDriveScope = "https://www.googleapis.com/auth/drive.readonly"

// GoogleDriveProvider authorizes read-only Google Drive access.
type GoogleDriveProvider struct {
	*exchanger
}

func NewGoogleDriveProvider(cfg Config, v StateValidator, store credentials.Store, opts ...Option) *GoogleDriveProvider {
	e := newExchanger(common.ProviderGoogle, "Google", cfg.Google, cfg.Timeout, endpoints.Google,
		[]string{GoogleDriveScope}, v, store, opts...)
	// offline access plus forced consent so Google issues a refresh token
	e.authOpts = []oauth2.AuthCodeOption{oauth2.AccessTypeOffline, oauth2.ApprovalForce}
	e.identify = func(_ context.Context, _ *oauth2.Token, userID string) (string, error) {
		return userID, nil
	}
	return &GoogleDriveProvider{exchanger: e}
}

// OAuthConfig returns the client configuration, used to refresh stored
// Google tokens.
func (p *GoogleDriveProvider) OAuthConfig() oauth2.Config {
	return p.oauth
}
