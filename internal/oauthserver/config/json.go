package config

import (
	"encoding/json"
	"os"

	"github.com/agentllm/agentllm/internal/flagx"
	"github.com/agentllm/agentllm/internal/timex"
)

// JsonConfig is the on-disk shape of Config. Durations accept "10m" style
// strings or integer nanoseconds. Secrets are not read from files.
type JsonConfig struct {
	ListenAddr      string         `json:"listen_addr"`
	PublicURL       string         `json:"public_url"`
	DatabaseDSN     string         `json:"database_dsn"`
	ShutdownTimeout timex.Duration `json:"shutdown_timeout"`
	LogLevel        string         `json:"log_level"`
}

// parseJson overlays the file named by -c/-config onto config. Empty or
// zero fields in the file leave the current value in place. A missing or
// malformed file panics.
func parseJson(config *Config) {
	path := flagx.ConfigPath(os.Args[1:])
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.ListenAddr, c.ListenAddr)
	setString(&config.PublicURL, c.PublicURL)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.LogLevel, c.LogLevel)
	if c.ShutdownTimeout.Duration > 0 {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
