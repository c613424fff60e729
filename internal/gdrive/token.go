package gdrive

import (
	"context"
	"net/http"
	"sync"

	"github.com/agentllm/agentllm/internal/common"
	"github.com/agentllm/agentllm/internal/credentials"
	"github.com/agentllm/agentllm/internal/logging"
	"golang.org/x/oauth2"
)

// storingSource writes refreshed tokens back to the credential store so the
// next process starts from the newest access token.
type storingSource struct {
	ctx   context.Context
	base  oauth2.TokenSource
	store credentials.Store
	cred  *credentials.Credential
	user  string
	log   logging.Logger

	mu   sync.Mutex
	last string
}

// TokenSource returns a refreshing token source for the stored Google
// credential of userID. Refreshed tokens are persisted; a failed write is
// logged and the token is still returned. Refresh requests use a client with
// DefaultTimeout unless ctx already carries an oauth2.HTTPClient.
func TokenSource(ctx context.Context, cfg oauth2.Config, store credentials.Store, userID string, log logging.Logger) (oauth2.TokenSource, error) {
	if log == nil {
		log = logging.Nop()
	}
	cred, err := store.Get(ctx, common.ProviderGoogle, userID)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, common.ErrMissingCredential
	}
	if _, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); !ok {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, timeoutClient())
	}
	return &storingSource{
		ctx:   ctx,
		base:  cfg.TokenSource(ctx, cred.OAuth2Token()),
		store: store,
		cred:  cred,
		user:  userID,
		log:   log,
		last:  cred.AccessToken,
	}, nil
}

func (s *storingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken == s.last {
		return tok, nil
	}
	s.last = tok.AccessToken

	next := *s.cred
	next.AccessToken = tok.AccessToken
	next.TokenType = tok.TokenType
	next.Expiry = tok.Expiry
	if tok.RefreshToken != "" {
		next.RefreshToken = tok.RefreshToken
	}
	if err := s.store.Upsert(s.ctx, common.ProviderGoogle, s.user, &next); err != nil {
		s.log.Warn(s.ctx, "failed to persist refreshed google token", "user_id", s.user, "error", err)
	} else {
		s.cred = &next
	}
	return tok, nil
}
