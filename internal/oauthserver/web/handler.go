package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/agentllm/agentllm/internal/common"
	"github.com/go-chi/chi/v5"
)

// MsgDenied is shown when the provider redirects back with an error.
const MsgDenied = "Authorization was denied"

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	resp := struct {
		Providers []string `json:"providers"`
	}{Providers: s.registry.ConfiguredProviders()}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error(r.Context(), "encode providers", "error", err)
	}
}

// authorize forwards a launch link to the provider. The state must already
// carry a valid signature; the user it names is the one the callback will
// store the credential for.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	log := s.logger.With("request_id", RequestID(r.Context()), "provider", name)

	p := s.registry.Provider(name)
	if p == nil || !p.IsConfigured() {
		http.Error(w, "unknown provider", http.StatusNotFound)
		return
	}

	token := r.URL.Query().Get(common.StateQueryParam)
	if token == "" {
		http.Error(w, "state is required", http.StatusBadRequest)
		return
	}

	userID, err := s.states.Validate(token)
	if err != nil {
		log.Warn(r.Context(), "authorize rejected", "error", err)
		msg := "invalid authorization link"
		if errors.Is(err, common.ErrStateTokenExpired) {
			msg = "authorization link expired"
		}
		http.Error(w, msg, http.StatusForbidden)
		return
	}

	log.Info(r.Context(), "authorization started", "user_id", userID)
	http.Redirect(w, r, p.AuthCodeURL(token, s.redirectURI(name)), http.StatusFound)
}

// callback finishes the flow the provider redirected back from.
func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	log := s.logger.With("request_id", RequestID(r.Context()), "provider", name)
	q := r.URL.Query()

	p := s.registry.Provider(name)
	if p == nil {
		s.renderResult(w, r, false, "Unknown provider")
		return
	}

	if e := q.Get("error"); e != "" {
		log.Info(r.Context(), "authorization denied", "error", e)
		s.renderResult(w, r, false, MsgDenied)
		return
	}

	code, stateToken := q.Get("code"), q.Get(common.StateQueryParam)
	if code == "" || stateToken == "" {
		s.renderResult(w, r, false, "Missing authorization code")
		return
	}

	ok, msg := p.ExchangeCodeForToken(r.Context(), code, stateToken, s.redirectURI(name))
	log.Info(r.Context(), "callback handled", "success", ok)
	s.renderResult(w, r, ok, msg)
}
