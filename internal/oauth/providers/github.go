package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/agentllm/agentllm/internal/common"
	"github.com/agentllm/agentllm/internal/credentials"
	"github.com/google/go-github/v84/github"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// GitHubScopes are requested on every authorization.
var GitHubScopes = []string{"repo", "read:user"}

// GitHubProvider authorizes GitHub API access and greets the user by login.
type GitHubProvider struct {
	*exchanger
}

func NewGitHubProvider(cfg Config, v StateValidator, store credentials.Store, opts ...Option) *GitHubProvider {
	e := newExchanger(common.ProviderGitHub, "GitHub", cfg.GitHub, cfg.Timeout, endpoints.GitHub,
		GitHubScopes, v, store, opts...)
	p := &GitHubProvider{exchanger: e}
	e.identify = p.login
	return p
}

func (p *GitHubProvider) login(ctx context.Context, tok *oauth2.Token, _ string) (string, error) {
	gh := github.NewClient(p.http).WithAuthToken(tok.AccessToken)
	if p.apiBaseURL != "" {
		base := p.apiBaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("parse api base url: %w", err)
		}
		gh.BaseURL = u
	}

	user, _, err := gh.Users.Get(ctx, "")
	if err != nil {
		return "", err
	}
	if user.GetLogin() == "" {
		return "", fmt.Errorf("github user has no login")
	}
	return user.GetLogin(), nil
}
