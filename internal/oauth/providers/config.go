package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// ClientConfig holds one OAuth application's registration.
type ClientConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

func (c ClientConfig) configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Config is read once at startup and passed by value into the providers.
type Config struct {
	Google  ClientConfig  `env:", prefix=GDRIVE_"`
	GitHub  ClientConfig  `env:", prefix=GITHUB_"`
	Timeout time.Duration `env:"AGENTLLM_OAUTH_TIMEOUT, default=10s"`
}

// LoadConfig reads Config from the process environment.
func LoadConfig(ctx context.Context) (Config, error) {
	return loadConfig(ctx, envconfig.OsLookuper())
}

func loadConfig(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return Config{}, fmt.Errorf("load provider config: %w", err)
	}
	return cfg, nil
}
