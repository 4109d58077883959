package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3cgajwdsuykk/discord-multi-manager/internal/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, config.DefaultBaseInterval, cfg.Reconnect.BaseInterval)
	assert.Equal(t, config.DefaultMaxInterval, cfg.Reconnect.MaxInterval)
	assert.Equal(t, config.DefaultJoinTimeout, cfg.Voice.JoinTimeout)
	assert.Equal(t, config.DefaultMessageCacheSize, cfg.MessageCacheSize)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":8080"
voice:
  join_timeout: 5s
log_level: debug
`), 0o600))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Voice.JoinTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Untouched values keep their defaults.
	assert.Equal(t, config.DefaultMaxInterval, cfg.Reconnect.MaxInterval)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":8080\"\n"), 0o600))

	t.Setenv("SERVER_ADDR", ":9090")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := map[string]string{
		"reconnect max below base": "reconnect:\n  base_interval: 10s\n  max_interval: 1s\n",
		"zero join timeout":        "voice:\n  join_timeout: 0s\n",
		"zero cache size":          "message_cache_size: 0\n",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

			_, err := config.LoadConfig(path)
			assert.Error(t, err)
		})
	}
}
