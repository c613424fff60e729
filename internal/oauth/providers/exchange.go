package providers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/agentllm/agentllm/internal/common"
	"github.com/agentllm/agentllm/internal/credentials"
	"github.com/agentllm/agentllm/internal/logging"
	"github.com/google/go-github/v84/github"
	"golang.org/x/oauth2"
)

const defaultTimeout = 10 * time.Second

// identifyFunc returns the identity shown in the success message.
type identifyFunc func(ctx context.Context, tok *oauth2.Token, userID string) (string, error)

// exchanger holds the sequence shared by every provider: validate state,
// exchange code, look up identity, store credential.
type exchanger struct {
	name     string
	display  string
	client   ClientConfig
	oauth    oauth2.Config
	authOpts []oauth2.AuthCodeOption

	validator StateValidator
	store     credentials.Store
	http      *http.Client
	log       logging.Logger
	identify  identifyFunc

	apiBaseURL string
}

// Option customizes a provider at construction.
type Option func(*exchanger)

// WithEndpoint points the provider at a different OAuth server.
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(e *exchanger) { e.oauth.Endpoint = ep }
}

// WithHTTPClient replaces the client used for token and identity calls.
func WithHTTPClient(c *http.Client) Option {
	return func(e *exchanger) { e.http = c }
}

// WithAPIBaseURL overrides the identity API root (GitHub Enterprise, tests).
func WithAPIBaseURL(u string) Option {
	return func(e *exchanger) { e.apiBaseURL = u }
}

func WithLogger(l logging.Logger) Option {
	return func(e *exchanger) { e.log = l }
}

func newExchanger(name, display string, cc ClientConfig, timeout time.Duration, ep oauth2.Endpoint, scopes []string,
	v StateValidator, store credentials.Store, opts ...Option) *exchanger {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	e := &exchanger{
		name:    name,
		display: display,
		client:  cc,
		oauth: oauth2.Config{
			ClientID:     cc.ClientID,
			ClientSecret: cc.ClientSecret,
			Endpoint:     ep,
			Scopes:       scopes,
		},
		validator: v,
		store:     store,
		http:      &http.Client{Timeout: timeout},
		log:       logging.Nop(),
	}
	for _, o := range opts {
		o(e)
	}
	e.log = e.log.With("provider", name)
	return e
}

func (e *exchanger) Name() string { return e.name }

func (e *exchanger) IsConfigured() bool { return e.client.configured() }

func (e *exchanger) AuthCodeURL(state, redirectURI string) string {
	conf := e.oauth
	conf.RedirectURL = redirectURI
	return conf.AuthCodeURL(state, e.authOpts...)
}

func (e *exchanger) ExchangeCodeForToken(ctx context.Context, code, stateToken, redirectURI string) (bool, string) {
	if !e.IsConfigured() {
		return false, msgNotConfigured(e.display)
	}

	userID, err := e.validator.Validate(stateToken)
	if err != nil {
		if errors.Is(err, common.ErrStateTokenExpired) {
			e.log.Info(ctx, "state token expired")
			return false, MsgStateExpired
		}
		e.log.Warn(ctx, "state token invalid")
		return false, MsgStateInvalid
	}
	log := e.log.With("user_id", userID)

	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.http)
	conf := e.oauth
	conf.RedirectURL = redirectURI

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return false, e.failure(ctx, log, "token exchange failed", err)
	}

	identity, err := e.identify(ctx, tok, userID)
	if err != nil {
		return false, e.failure(ctx, log, "identity lookup failed", err)
	}

	cred := credentials.FromOAuth2Token(tok, grantedScopes(tok, conf.Scopes))
	if err := e.store.Upsert(ctx, e.name, userID, cred); err != nil {
		log.Error(ctx, "failed to save credentials", "error", err)
		return false, MsgSaveFailed
	}

	log.Info(ctx, "provider authenticated", "identity", identity)
	return true, msgSuccess(identity)
}

// failure maps err onto one of the user-facing categories. Raw error text
// goes to the log only.
func (e *exchanger) failure(ctx context.Context, log logging.Logger, what string, err error) string {
	switch classify(err) {
	case failTimeout:
		log.Warn(ctx, what, "kind", "timeout", "error", err)
		return MsgTimeout
	case failRemote:
		log.Warn(ctx, what, "kind", "remote", "error", err)
		return msgRemoteFailed(e.display)
	default:
		log.Error(ctx, what, "kind", "library", "error", err)
		return msgLibraryFailed(e.display)
	}
}

type failureKind int

const (
	failLibrary failureKind = iota
	failTimeout
	failRemote
)

func classify(err error) failureKind {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return failTimeout
	}

	var retrieveErr *oauth2.RetrieveError
	var ghErr *github.ErrorResponse
	var rateErr *github.RateLimitError
	switch {
	case errors.As(err, &retrieveErr), errors.As(err, &ghErr), errors.As(err, &rateErr):
		return failRemote
	}

	// connection refused, reset, unreachable
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return failRemote
	}

	return failLibrary
}

// grantedScopes prefers the scope list echoed by the token endpoint.
func grantedScopes(tok *oauth2.Token, requested []string) []string {
	if s, ok := tok.Extra("scope").(string); ok && s != "" {
		return strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' })
	}
	return requested
}
