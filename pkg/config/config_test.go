package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	require.Equal(t, "yahoo", cfg.Feed.Source)
	require.Equal(t, 12*time.Hour, cfg.Feed.CacheTTL)
	require.Empty(t, cfg.Storage.Path)
	require.False(t, cfg.Telegram.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TRAILSTOP_LOG_LEVEL", "debug")
	t.Setenv("TRAILSTOP_SERVER_PORT", "9090")
	t.Setenv("TRAILSTOP_FEED_CACHE_TTL", "1d")
	t.Setenv("TRAILSTOP_FEED_SOURCE", "binance")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 24*time.Hour, cfg.Feed.CacheTTL)
	require.Equal(t, "binance", cfg.Feed.Source)
}

func TestLoadConfigFile(t *testing.T) {
	content := []byte(`
log:
  level: warn
server:
  port: 3000
  read_timeout: 5s
feed:
  source: yahoo
  cache_ttl: 2h
storage:
  path: /tmp/candles.db
telegram:
  enabled: true
  token: abc123
  users: [42, 99]
`)

	path := filepath.Join(t.TempDir(), "trailstop.yaml")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "warn", cfg.Log.Level)
	require.Equal(t, 3000, cfg.Server.Port)
	require.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	require.Equal(t, 2*time.Hour, cfg.Feed.CacheTTL)
	require.Equal(t, "/tmp/candles.db", cfg.Storage.Path)
	require.True(t, cfg.Telegram.Enabled)
	require.Equal(t, []int64{42, 99}, cfg.Telegram.Users)
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("TRAILSTOP_FEED_CACHE_TTL", "soon")
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadRejectsUnknownSource(t *testing.T) {
	t.Setenv("TRAILSTOP_FEED_SOURCE", "carrier-pigeon")
	_, err := Load("")
	require.Error(t, err)
}
