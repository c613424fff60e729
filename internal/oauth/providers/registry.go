package providers

import (
	"github.com/agentllm/agentllm/internal/credentials"
)

// Registry maps provider names to providers. It is built once at startup
// and read concurrently afterwards; Register is not safe for concurrent use.
type Registry struct {
	order     []string
	providers map[string]Provider
}

func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range ps {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any provider of the same name in place.
func (r *Registry) Register(p Provider) {
	name := p.Name()
	if _, ok := r.providers[name]; !ok {
		r.order = append(r.order, name)
	}
	r.providers[name] = p
}

// Provider returns nil for unknown names.
func (r *Registry) Provider(name string) Provider {
	return r.providers[name]
}

// ConfiguredProviders lists, in registration order, the providers that
// have both client id and secret.
func (r *Registry) ConfiguredProviders() []string {
	out := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if r.providers[name].IsConfigured() {
			out = append(out, name)
		}
	}
	return out
}

// Names lists every registered provider.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// NewDefaultRegistry registers Google Drive and GitHub.
func NewDefaultRegistry(cfg Config, v StateValidator, store credentials.Store, opts ...Option) *Registry {
	return NewRegistry(
		NewGoogleDriveProvider(cfg, v, store, opts...),
		NewGitHubProvider(cfg, v, store, opts...),
	)
}
