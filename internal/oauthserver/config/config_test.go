package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8501", c.ListenAddr)
	assert.Equal(t, "http://localhost:8501", c.PublicURL)
	assert.Equal(t, "tmp/agent-data/agentllm.db", c.DatabaseDSN)
	assert.Equal(t, 10*time.Second, c.ShutdownTimeout)
	assert.Equal(t, "INFO", c.LogLevel)
	assert.Empty(t, c.StateSecret)
	assert.Empty(t, c.EncryptionKey)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}
	t.Chdir(t.TempDir())
	t.Setenv("AGENTLLM_OAUTH_STATE_SECRET", "s3cret")
	t.Setenv("AGENTLLM_ENCRYPTION_KEY", "k3y")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("AGENTLLM_OAUTH_PUBLIC_URL", "")

	c := LoadConfig()
	require.NotNil(t, c, "LoadConfig must not return nil")

	assert.Equal(t, ":8501", c.ListenAddr)
	assert.Equal(t, 10*time.Second, c.ShutdownTimeout)
	assert.Equal(t, "INFO", c.LogLevel)
	assert.Equal(t, "s3cret", c.StateSecret)
	assert.Equal(t, "k3y", c.EncryptionKey)
}
