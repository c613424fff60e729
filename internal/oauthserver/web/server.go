// Package web serves the browser-facing OAuth authorize and callback
// endpoints.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agentllm/agentllm/internal/common"
	"github.com/agentllm/agentllm/internal/logging"
	"github.com/agentllm/agentllm/internal/oauth/providers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Registry is the subset of *providers.Registry the server reads.
type Registry interface {
	Provider(name string) providers.Provider
	ConfiguredProviders() []string
}

// StateVerifier checks state tokens. The server never mints them; the
// operator issues launch links with `agentllm oauth url`.
type StateVerifier interface {
	Validate(token string) (string, error)
}

type Server struct {
	address         string
	publicURL       string
	shutdownTimeout time.Duration
	registry        Registry
	states          StateVerifier
	logger          logging.Logger
	router          chi.Router
}

func NewServer(address, publicURL string, shutdownTimeout time.Duration, reg Registry, states StateVerifier, l logging.Logger) *Server {
	s := &Server{
		address:         address,
		publicURL:       strings.TrimRight(publicURL, "/"),
		shutdownTimeout: shutdownTimeout,
		registry:        reg,
		states:          states,
		logger:          l.With("module", "oauth_server"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Route("/oauth", func(r chi.Router) {
		r.Get("/providers", s.listProviders)
		r.Get("/{provider}/authorize", s.authorize)
		r.Get("/{provider}/callback", s.callback)
	})
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// redirectURI must be identical in the authorize and callback steps.
func (s *Server) redirectURI(provider string) string {
	return s.publicURL + "/oauth/" + url.PathEscape(provider) + "/callback"
}

// AuthorizeURL is the launch link for provider on the server at publicURL.
// stateToken must be signed with the server's state secret.
func AuthorizeURL(publicURL, provider, stateToken string) string {
	return strings.TrimRight(publicURL, "/") + "/oauth/" + url.PathEscape(provider) +
		"/authorize?" + url.Values{common.StateQueryParam: {stateToken}}.Encode()
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			s.logger.Error(ctx, "shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String(), "public_url", s.publicURL)

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
