package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaults(t *testing.T) {
	t.Setenv("KTV_SYNC_MODE", "")
	t.Setenv("KTV_NICKNAME", "")
	t.Setenv("KEEP_ALIVE_INTERVAL", "")
	t.Setenv("KTV_PROXY_PORT", "")

	cfg := New()
	assert.Equal(t, SyncModeWS, cfg.SyncMode)
	assert.Equal(t, "ktv-casting", cfg.Nickname)
	assert.Equal(t, 30*time.Second, cfg.KeepAliveInterval)
	assert.Equal(t, 8080, cfg.ProxyPort)
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("KTV_SYNC_MODE", "polling")
	t.Setenv("KTV_NICKNAME", "mic-drop")
	t.Setenv("KEEP_ALIVE_INTERVAL", "10")
	t.Setenv("KTV_PROXY_PORT", "9090")

	cfg := New()
	assert.Equal(t, SyncModePolling, cfg.SyncMode)
	assert.Equal(t, "mic-drop", cfg.Nickname)
	assert.Equal(t, 10*time.Second, cfg.KeepAliveInterval)
	assert.Equal(t, 9090, cfg.ProxyPort)
}

func TestNewIgnoresGarbage(t *testing.T) {
	t.Setenv("KTV_SYNC_MODE", "CARRIER_PIGEON")
	t.Setenv("KEEP_ALIVE_INTERVAL", "soon")
	t.Setenv("KTV_PROXY_PORT", "-1")

	cfg := New()
	assert.Equal(t, SyncModeWS, cfg.SyncMode)
	assert.Equal(t, 30*time.Second, cfg.KeepAliveInterval)
	assert.Equal(t, 8080, cfg.ProxyPort)
}
