package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/mcdev12/bidly/go/internal/auction"
	"github.com/rs/zerolog/log"
)

// Room is the part of the auction room the console drives
type Room interface {
	PlaceBid(ctx context.Context, raw string) error
	BuyNow(ctx context.Context) error
}

// Console reads commands from a terminal and forwards them to a room
type Console struct {
	room Room
	in   io.Reader
	out  *Renderer
}

func NewConsole(room Room, in io.Reader, out *Renderer) *Console {
	return &Console{room: room, in: in, out: out}
}

// Run processes lines until quit, EOF or ctx is cancelled
func (c *Console) Run(ctx context.Context) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.Error().Err(err).Msg("failed to read commands")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := c.handle(ctx, line); quit {
				return
			}
		}
	}
}

func (c *Console) handle(ctx context.Context, line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	var err error
	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return true
	case "bid":
		amount := ""
		if len(fields) > 1 {
			amount = fields[1]
		}
		err = c.room.PlaceBid(ctx, amount)
	case "buy":
		err = c.room.BuyNow(ctx)
	default:
		c.out.Print("Unknown command %q. Commands: bid <amount> | buy | quit", fields[0])
		return false
	}

	var rejection *auction.BidRejection
	switch {
	case err == nil, errors.As(err, &rejection):
		// the room view already shows the outcome
	case errors.Is(err, auction.ErrUnmounted):
		return true
	case errors.Is(err, context.Canceled):
		return true
	default:
		log.Error().Err(err).Str("command", fields[0]).Msg("command failed")
	}
	return false
}
