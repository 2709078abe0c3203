package config

import (
	"fmt"
	"time"

	"github.com/mcdev12/bidly/go/clients"
)

// tomlFile mirrors Config for TOML files. Durations are strings ("5s") and
// every field is optional, so only keys present in the file override defaults.
type tomlFile struct {
	Backend struct {
		Origin        *string `toml:"origin"`
		Timeout       *string `toml:"timeout"`
		ItemCacheSize *int    `toml:"item_cache_size"`
		SessionCookie *string `toml:"session_cookie"`
	} `toml:"backend"`
	Room struct {
		PollInterval        *string `toml:"poll_interval"`
		TickInterval        *string `toml:"tick_interval"`
		MessageTTL          *string `toml:"message_ttl"`
		WinnerNavigateDelay *string `toml:"winner_navigate_delay"`
		BuyNowNavigateDelay *string `toml:"buy_now_navigate_delay"`
	} `toml:"room"`
	Updates struct {
		Source    *string `toml:"source"`
		WebSocket struct {
			Origin *string `toml:"origin"`
		} `toml:"websocket"`
		NATS struct {
			URL           *string `toml:"url"`
			SubjectPrefix *string `toml:"subject_prefix"`
		} `toml:"nats"`
	} `toml:"updates"`
	Log struct {
		Level  *string `toml:"level"`
		Format *string `toml:"format"`
	} `toml:"log"`
}

func (f *tomlFile) apply(cfg *Config) error {
	setString(&cfg.Backend.Origin, f.Backend.Origin)
	setString(&cfg.Backend.SessionCookie, f.Backend.SessionCookie)
	if f.Backend.ItemCacheSize != nil {
		cfg.Backend.ItemCacheSize = *f.Backend.ItemCacheSize
	}

	durations := []struct {
		key    string
		target *time.Duration
		value  *string
	}{
		{"backend.timeout", &cfg.Backend.Timeout, f.Backend.Timeout},
		{"room.poll_interval", &cfg.Room.PollInterval, f.Room.PollInterval},
		{"room.tick_interval", &cfg.Room.TickInterval, f.Room.TickInterval},
		{"room.message_ttl", &cfg.Room.MessageTTL, f.Room.MessageTTL},
		{"room.winner_navigate_delay", &cfg.Room.WinnerNavigateDelay, f.Room.WinnerNavigateDelay},
		{"room.buy_now_navigate_delay", &cfg.Room.BuyNowNavigateDelay, f.Room.BuyNowNavigateDelay},
	}
	for _, d := range durations {
		if d.value == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.target = parsed
	}

	if f.Updates.Source != nil {
		cfg.Updates.Source = clients.UpdateSource(*f.Updates.Source)
	}
	setString(&cfg.Updates.WebSocket.Origin, f.Updates.WebSocket.Origin)
	setString(&cfg.Updates.NATS.URL, f.Updates.NATS.URL)
	setString(&cfg.Updates.NATS.SubjectPrefix, f.Updates.NATS.SubjectPrefix)
	setString(&cfg.Log.Level, f.Log.Level)
	setString(&cfg.Log.Format, f.Log.Format)
	return nil
}

func setString(target *string, value *string) {
	if value != nil {
		*target = *value
	}
}
