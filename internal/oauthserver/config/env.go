package config

import (
	"context"

	"github.com/agentllm/agentllm/internal/filex"
	"github.com/sethvargo/go-envconfig"
)

// DotEnvFiles are loaded, when present, before the environment is read.
// Variables already set in the process win.
var DotEnvFiles = []string{".env", ".env.secrets"}

type envConfig struct {
	StateSecret   string `env:"AGENTLLM_OAUTH_STATE_SECRET"`
	EncryptionKey string `env:"AGENTLLM_ENCRYPTION_KEY"`
	LogLevel      string `env:"LOG_LEVEL"`
	PublicURL     string `env:"AGENTLLM_OAUTH_PUBLIC_URL"`
}

func parseEnv(config *Config) {
	if err := filex.LoadDotEnv(DotEnvFiles...); err != nil {
		panic(err)
	}
	applyEnv(config, envconfig.OsLookuper())
}

func applyEnv(config *Config, l envconfig.Lookuper) {
	var e envConfig
	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{Target: &e, Lookuper: l}); err != nil {
		panic(err)
	}
	config.StateSecret = e.StateSecret
	config.EncryptionKey = e.EncryptionKey
	setString(&config.LogLevel, e.LogLevel)
	setString(&config.PublicURL, e.PublicURL)
}
