package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bidly/go/clients/bidly_client"
	"github.com/mcdev12/bidly/go/internal/auction"
	"github.com/mcdev12/bidly/go/internal/config"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	configPath := flag.String("config", "", "path to a .yaml, .yml or .toml config file")
	auctionID := flag.String("auction", "", "id of the auction item to join")
	flag.Parse()

	if *auctionID == "" {
		fmt.Fprintln(os.Stderr, "usage: bidly -auction <id> [-config bidly.yaml]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup logging
	if err := setupLogging(cfg.Log, os.Stderr); err != nil {
		log.Fatal().Err(err).Msg("failed to setup logging")
	}

	client, err := bidly_client.NewBidlyClient(cfg.Backend.Origin, bidly_client.Options{
		Timeout:       cfg.Backend.Timeout,
		ItemCacheSize: cfg.Backend.ItemCacheSize,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create backend client")
	}
	if cfg.Backend.SessionCookie != "" {
		client.SetHeader("Cookie", cfg.Backend.SessionCookie)
	}

	updates := setupStream(cfg.Updates)

	log.Info().
		Str("auction_id", *auctionID).
		Str("backend_origin", cfg.Backend.Origin).
		Str("update_source", string(cfg.Updates.Source)).
		Msg("starting bidly")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	renderer := NewRenderer(os.Stdout)
	room := auction.NewRoom(*auctionID, client, auction.NavigatorFunc(renderer.RenderResults), auction.Config{
		Timing:   roomTiming(cfg.Room),
		Clock:    clockwork.NewRealClock(),
		Stream:   updates,
		OnChange: renderer.Render,
	})

	console := NewConsole(room, os.Stdin, renderer)
	go func() {
		console.Run(ctx)
		stop()
	}()

	if err := room.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("auction room failed")
	}

	log.Info().Str("auction_id", *auctionID).Msg("bidly shutdown complete")
}
