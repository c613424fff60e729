// Package config handles configuration for the OAuth callback server,
// including defaults, JSON overlay, command-line flags and environment.
package config

import "time"

// Config holds runtime settings for the callback server.
//
// Fields:
//   - ListenAddr: bind address for the HTTP listener.
//   - PublicURL: externally visible base URL; redirect URIs are derived from it.
//   - DatabaseDSN: credential store DSN, a SQLite path or a postgres:// URL.
//   - ShutdownTimeout: grace period for in-flight requests on stop.
//   - LogLevel: DEBUG, INFO, WARN or ERROR.
//   - StateSecret / EncryptionKey: read from the environment only.
type Config struct {
	ListenAddr      string
	PublicURL       string
	DatabaseDSN     string
	ShutdownTimeout time.Duration
	LogLevel        string
	StateSecret     string
	EncryptionKey   string
}

// LoadDefaults populates Config with development defaults. Secrets have no
// default; the server refuses to start without them.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8501"
	c.PublicURL = "http://localhost:8501"
	c.DatabaseDSN = "tmp/agent-data/agentllm.db"
	c.ShutdownTimeout = 10 * time.Second
	c.LogLevel = "INFO"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, command-line flags and finally the
// environment (after .env files are loaded).
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	parseEnv(cfg)
	return cfg
}
