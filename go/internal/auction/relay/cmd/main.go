package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bidly/go/clients/bidly_client"
	"github.com/mcdev12/bidly/go/internal/auction/relay"
	"github.com/mcdev12/bidly/go/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	configPath := flag.String("config", "", "path to a .yaml, .yml or .toml config file")
	auctions := flag.String("auctions", "", "comma separated auction item ids to relay")
	listen := flag.String("listen", "", "serve the WebSocket gateway on this address, e.g. :8080")
	useJetStream := flag.Bool("jetstream", true, "publish events to NATS JetStream")
	flag.Parse()

	ids := splitIDs(*auctions)
	if len(ids) == 0 {
		fmt.Fprintln(os.Stderr, "usage: bidly-relay -auctions 42,43 [-config bidly.yaml] [-listen :8080] [-jetstream=false]")
		os.Exit(2)
	}
	if *listen == "" && !*useJetStream {
		fmt.Fprintln(os.Stderr, "bidly-relay: nothing to publish to, set -listen or -jetstream")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil && level != zerolog.NoLevel {
		zerolog.SetGlobalLevel(level)
	}

	client, err := bidly_client.NewBidlyClient(cfg.Backend.Origin, bidly_client.Options{
		Timeout:       cfg.Backend.Timeout,
		ItemCacheSize: cfg.Backend.ItemCacheSize,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create backend client")
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var publishers relay.Fanout

	if *useJetStream {
		jsCfg := relay.DefaultJetStreamConfig()
		jsCfg.URL = cfg.Updates.NATS.URL
		jsCfg.SubjectPrefix = cfg.Updates.NATS.SubjectPrefix

		js, err := relay.NewJetStreamPublisher(ctx, jsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create JetStream publisher")
		}
		defer js.Close()
		publishers = append(publishers, js)

		log.Info().
			Str("nats_url", jsCfg.URL).
			Str("subject_prefix", jsCfg.SubjectPrefix).
			Msg("publishing to JetStream")
	}

	if *listen != "" {
		gateway := relay.NewGateway(relay.DefaultGatewayConfig())
		publishers = append(publishers, gateway)

		server := &http.Server{
			Addr:              *listen,
			Handler:           h2c.NewHandler(gateway.Handler(), &http2.Server{}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info().Str("addr", *listen).Msg("WebSocket gateway listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("WebSocket gateway failed")
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("failed to shut down WebSocket gateway")
			}
		}()
	}

	log.Info().
		Str("backend_origin", cfg.Backend.Origin).
		Strs("auctions", ids).
		Msg("starting auction relay")

	r := relay.NewRelay(client, publishers, ids, relay.Config{
		PollInterval: cfg.Room.PollInterval,
		Clock:        clockwork.NewRealClock(),
	})
	if err := r.Run(ctx); err != nil {
		log.Error().Err(err).Msg("auction relay failed")
	}

	log.Info().Msg("auction relay shutdown complete")
}

func splitIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
