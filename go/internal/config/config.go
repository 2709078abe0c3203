package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/bidly/go/clients"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds everything resolved once at startup
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Room    RoomConfig    `yaml:"room"`
	Updates UpdatesConfig `yaml:"updates"`
	Log     LogConfig     `yaml:"log"`
}

// BackendConfig points at the auction API
type BackendConfig struct {
	Origin        string        `yaml:"origin"`
	Timeout       time.Duration `yaml:"timeout"`
	ItemCacheSize int           `yaml:"item_cache_size"`
	SessionCookie string        `yaml:"session_cookie"` // sent as the Cookie header, e.g. "JSESSIONID=..."
}

// RoomConfig holds the room's intervals and delays
type RoomConfig struct {
	PollInterval        time.Duration `yaml:"poll_interval"`
	TickInterval        time.Duration `yaml:"tick_interval"`
	MessageTTL          time.Duration `yaml:"message_ttl"`
	WinnerNavigateDelay time.Duration `yaml:"winner_navigate_delay"`
	BuyNowNavigateDelay time.Duration `yaml:"buy_now_navigate_delay"`
}

// UpdatesConfig selects how auction updates arrive
type UpdatesConfig struct {
	Source    clients.UpdateSource `yaml:"source"`
	WebSocket WebSocketConfig      `yaml:"websocket"`
	NATS      NATSConfig           `yaml:"nats"`
}

type WebSocketConfig struct {
	Origin string `yaml:"origin"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Backend: BackendConfig{
			Origin:        "http://localhost:8080",
			Timeout:       30 * time.Second,
			ItemCacheSize: 64,
		},
		Room: RoomConfig{
			PollInterval:        5 * time.Second,
			TickInterval:        1 * time.Second,
			MessageTTL:          3 * time.Second,
			WinnerNavigateDelay: 5 * time.Second,
			BuyNowNavigateDelay: 1 * time.Second,
		},
		Updates: UpdatesConfig{
			Source: clients.UpdateSourcePolling,
			NATS: NATSConfig{
				URL:           "nats://localhost:4222",
				SubjectPrefix: "auction.events",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load starts from Default, overlays the file at path (if any) and then
// BIDLY_* environment variables, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if cfg.Updates.WebSocket.Origin == "" {
		cfg.Updates.WebSocket.Origin = websocketOrigin(cfg.Backend.Origin)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	case ".toml":
		var file tomlFile
		if err := toml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		if err := file.apply(cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q", filepath.Ext(path))
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Backend.Origin = getEnv("BIDLY_BACKEND_ORIGIN", cfg.Backend.Origin)
	cfg.Backend.ItemCacheSize = getEnvAsInt("BIDLY_ITEM_CACHE_SIZE", cfg.Backend.ItemCacheSize)
	cfg.Backend.SessionCookie = getEnv("BIDLY_SESSION_COOKIE", cfg.Backend.SessionCookie)
	cfg.Updates.Source = clients.UpdateSource(getEnv("BIDLY_UPDATE_SOURCE", string(cfg.Updates.Source)))
	cfg.Updates.WebSocket.Origin = getEnv("BIDLY_WS_ORIGIN", cfg.Updates.WebSocket.Origin)
	cfg.Updates.NATS.URL = getEnv("BIDLY_NATS_URL", cfg.Updates.NATS.URL)
	cfg.Updates.NATS.SubjectPrefix = getEnv("BIDLY_NATS_SUBJECT_PREFIX", cfg.Updates.NATS.SubjectPrefix)
	cfg.Log.Level = getEnv("BIDLY_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("BIDLY_LOG_FORMAT", cfg.Log.Format)

	var err error
	if cfg.Backend.Timeout, err = getEnvAsDuration("BIDLY_HTTP_TIMEOUT", cfg.Backend.Timeout); err != nil {
		return err
	}
	if cfg.Room.PollInterval, err = getEnvAsDuration("BIDLY_POLL_INTERVAL", cfg.Room.PollInterval); err != nil {
		return err
	}
	return nil
}

// Validate rejects configurations the room cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Backend.Origin == "" {
		errs = append(errs, errors.New("backend.origin is required"))
	} else if u, err := parseOrigin(c.Backend.Origin); err != nil {
		errs = append(errs, fmt.Errorf("backend.origin: %w", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Errorf("backend.origin: unsupported scheme %q", u.Scheme))
	}

	durations := map[string]time.Duration{
		"backend.timeout":             c.Backend.Timeout,
		"room.poll_interval":          c.Room.PollInterval,
		"room.tick_interval":          c.Room.TickInterval,
		"room.message_ttl":            c.Room.MessageTTL,
		"room.winner_navigate_delay":  c.Room.WinnerNavigateDelay,
		"room.buy_now_navigate_delay": c.Room.BuyNowNavigateDelay,
	}
	for _, name := range sortedKeys(durations) {
		if durations[name] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	if c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	if !clients.ValidateUpdateSource(c.Updates.Source) {
		errs = append(errs, fmt.Errorf("updates.source: unknown source %q", c.Updates.Source))
	}
	if c.Updates.Source == clients.UpdateSourceNATS && c.Updates.NATS.URL == "" {
		errs = append(errs, errors.New("updates.nats.url is required for the nats source"))
	}

	return errors.Join(errs...)
}

// websocketOrigin derives ws(s)://host from an http(s) origin
func websocketOrigin(origin string) string {
	switch {
	case strings.HasPrefix(origin, "https://"):
		return "wss://" + strings.TrimPrefix(origin, "https://")
	case strings.HasPrefix(origin, "http://"):
		return "ws://" + strings.TrimPrefix(origin, "http://")
	default:
		return origin
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func parseOrigin(origin string) (*url.URL, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", origin)
	}
	return u, nil
}

func sortedKeys(m map[string]time.Duration) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
