package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcdev12/bidly/go/clients"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Backend.Origin)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 64, cfg.Backend.ItemCacheSize)
	assert.Equal(t, 5*time.Second, cfg.Room.PollInterval)
	assert.Equal(t, time.Second, cfg.Room.TickInterval)
	assert.Equal(t, 3*time.Second, cfg.Room.MessageTTL)
	assert.Equal(t, 5*time.Second, cfg.Room.WinnerNavigateDelay)
	assert.Equal(t, time.Second, cfg.Room.BuyNowNavigateDelay)
	assert.Equal(t, clients.UpdateSourcePolling, cfg.Updates.Source)
	assert.Equal(t, "ws://localhost:8080", cfg.Updates.WebSocket.Origin)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "bidly.yaml", `
backend:
  origin: https://auctions.example.com
  timeout: 10s
room:
  poll_interval: 2s
updates:
  source: websocket
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://auctions.example.com", cfg.Backend.Origin)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Room.PollInterval)
	assert.Equal(t, 3*time.Second, cfg.Room.MessageTTL)
	assert.Equal(t, clients.UpdateSourceWebSocket, cfg.Updates.Source)
	assert.Equal(t, "wss://auctions.example.com", cfg.Updates.WebSocket.Origin)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "bidly.toml", `
[backend]
origin = "http://10.0.0.5:8080"
item_cache_size = 8

[room]
message_ttl = "1500ms"

[updates]
source = "nats"

[updates.nats]
url = "nats://10.0.0.6:4222"
subject_prefix = "bids"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8080", cfg.Backend.Origin)
	assert.Equal(t, 8, cfg.Backend.ItemCacheSize)
	assert.Equal(t, 1500*time.Millisecond, cfg.Room.MessageTTL)
	assert.Equal(t, 5*time.Second, cfg.Room.PollInterval)
	assert.Equal(t, clients.UpdateSourceNATS, cfg.Updates.Source)
	assert.Equal(t, "nats://10.0.0.6:4222", cfg.Updates.NATS.URL)
	assert.Equal(t, "bids", cfg.Updates.NATS.SubjectPrefix)
}

func TestLoad_TOMLBadDuration(t *testing.T) {
	path := writeFile(t, "bidly.toml", `
[room]
poll_interval = "soon"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "room.poll_interval")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "bidly.yml", `
backend:
  origin: http://file.example.com
`)
	t.Setenv("BIDLY_BACKEND_ORIGIN", "http://env.example.com")
	t.Setenv("BIDLY_POLL_INTERVAL", "7s")
	t.Setenv("BIDLY_WS_ORIGIN", "ws://push.example.com")
	t.Setenv("BIDLY_ITEM_CACHE_SIZE", "16")
	t.Setenv("BIDLY_SESSION_COOKIE", "JSESSIONID=abc")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env.example.com", cfg.Backend.Origin)
	assert.Equal(t, 7*time.Second, cfg.Room.PollInterval)
	assert.Equal(t, "ws://push.example.com", cfg.Updates.WebSocket.Origin)
	assert.Equal(t, 16, cfg.Backend.ItemCacheSize)
	assert.Equal(t, "JSESSIONID=abc", cfg.Backend.SessionCookie)
}

func TestLoad_BadEnvDuration(t *testing.T) {
	t.Setenv("BIDLY_HTTP_TIMEOUT", "forever")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BIDLY_HTTP_TIMEOUT")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bidly.json", `{}`))
	assert.ErrorContains(t, err, "unsupported config file extension")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "default", mutate: func(c *Config) {}},
		{name: "empty_origin", mutate: func(c *Config) { c.Backend.Origin = "" }, wantErr: "backend.origin is required"},
		{name: "no_host", mutate: func(c *Config) { c.Backend.Origin = "localhost" }, wantErr: "missing host"},
		{name: "bad_scheme", mutate: func(c *Config) { c.Backend.Origin = "ftp://example.com" }, wantErr: "unsupported scheme"},
		{name: "zero_poll", mutate: func(c *Config) { c.Room.PollInterval = 0 }, wantErr: "room.poll_interval must be positive"},
		{name: "negative_ttl", mutate: func(c *Config) { c.Room.MessageTTL = -time.Second }, wantErr: "room.message_ttl must be positive"},
		{name: "unknown_source", mutate: func(c *Config) { c.Updates.Source = "smoke" }, wantErr: "unknown source"},
		{name: "nats_without_url", mutate: func(c *Config) {
			c.Updates.Source = clients.UpdateSourceNATS
			c.Updates.NATS.URL = ""
		}, wantErr: "updates.nats.url is required"},
		{name: "bad_log_format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestWebsocketOrigin(t *testing.T) {
	assert.Equal(t, "ws://localhost:8080", websocketOrigin("http://localhost:8080"))
	assert.Equal(t, "wss://example.com", websocketOrigin("https://example.com"))
	assert.Equal(t, "ws://already", websocketOrigin("ws://already"))
}
