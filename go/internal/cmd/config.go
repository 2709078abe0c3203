package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mcdev12/bidly/go/clients"
	"github.com/mcdev12/bidly/go/internal/auction"
	"github.com/mcdev12/bidly/go/internal/auction/stream"
	"github.com/mcdev12/bidly/go/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// setupLogging points the global logger at w in the configured format and level
func setupLogging(cfg config.LogConfig, w io.Writer) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "json" {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

func roomTiming(cfg config.RoomConfig) auction.Timing {
	return auction.Timing{
		PollInterval:        cfg.PollInterval,
		TickInterval:        cfg.TickInterval,
		MessageTTL:          cfg.MessageTTL,
		WinnerNavigateDelay: cfg.WinnerNavigateDelay,
		BuyNowNavigateDelay: cfg.BuyNowNavigateDelay,
	}
}

// setupStream returns the push stream for the configured source, nil when polling
func setupStream(cfg config.UpdatesConfig) auction.Stream {
	switch cfg.Source {
	case clients.UpdateSourceWebSocket:
		wsCfg := stream.DefaultWebSocketConfig()
		wsCfg.Origin = cfg.WebSocket.Origin
		return stream.NewWebSocketStream(wsCfg)
	case clients.UpdateSourceNATS:
		natsCfg := stream.DefaultNATSConfig()
		natsCfg.URL = cfg.NATS.URL
		if cfg.NATS.SubjectPrefix != "" {
			natsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		}
		return stream.NewNATSStream(natsCfg)
	default:
		return nil
	}
}
