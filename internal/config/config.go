package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Sync transport modes.
const (
	SyncModeWS      = "WS"
	SyncModePolling = "POLLING"
)

const (
	defaultNickname  = "ktv-casting"
	defaultKeepAlive = 30 * time.Second
	defaultProxyPort = 8080
)

// Config captures all process-wide settings once at startup. It is
// threaded as a read-only value; nothing mutates it after New.
type Config struct {
	SyncMode          string
	Nickname          string
	KeepAliveInterval time.Duration
	ProxyPort         int
}

// New reads the configuration from the environment.
// Unknown or malformed values fall back to their defaults.
func New() Config {
	cfg := Config{
		SyncMode:          SyncModeWS,
		Nickname:          defaultNickname,
		KeepAliveInterval: defaultKeepAlive,
		ProxyPort:         defaultProxyPort,
	}

	if mode := strings.ToUpper(strings.TrimSpace(os.Getenv("KTV_SYNC_MODE"))); mode == SyncModePolling {
		cfg.SyncMode = SyncModePolling
	}

	if nick := strings.TrimSpace(os.Getenv("KTV_NICKNAME")); nick != "" {
		cfg.Nickname = nick
	}

	if ka := os.Getenv("KEEP_ALIVE_INTERVAL"); ka != "" {
		if secs, err := strconv.Atoi(ka); err == nil && secs > 0 {
			cfg.KeepAliveInterval = time.Duration(secs) * time.Second
		}
	}

	if port := os.Getenv("KTV_PROXY_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 && p < 65536 {
			cfg.ProxyPort = p
		}
	}

	return cfg
}
