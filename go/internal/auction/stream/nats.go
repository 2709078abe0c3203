package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mcdev12/bidly/go/internal/auction"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// ErrConnectionClosed is returned when the NATS client gives up reconnecting
var ErrConnectionClosed = errors.New("nats connection closed")

// NATSConfig holds configuration for the NATS stream
type NATSConfig struct {
	URL           string
	SubjectPrefix string // events for auction 42 arrive on "<prefix>.42"
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	BufferSize    int
}

// DefaultNATSConfig returns default NATS stream configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "auction.events",
		Name:          "bidly-room",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
		BufferSize:    64,
	}
}

// NATSStream receives auction events from a per-auction NATS subject
type NATSStream struct {
	config NATSConfig
}

var _ auction.Stream = (*NATSStream)(nil)

func NewNATSStream(config NATSConfig) *NATSStream {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultNATSConfig().BufferSize
	}
	return &NATSStream{config: config}
}

// Subject returns the subject carrying an auction's events
func (s *NATSStream) Subject(auctionID string) string {
	return fmt.Sprintf("%s.%s", s.config.SubjectPrefix, auctionID)
}

// Subscribe forwards events until ctx is cancelled or the connection is closed for good
func (s *NATSStream) Subscribe(ctx context.Context, auctionID string, out chan<- auction.Update) error {
	closed := make(chan struct{})
	var closeOnce sync.Once

	opts := []nats.Option{
		nats.Name(s.config.Name),
		nats.MaxReconnects(s.config.MaxReconnects),
		nats.ReconnectWait(s.config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Str("auction_id", auctionID).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Str("auction_id", auctionID).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Str("auction_id", auctionID).Msg("NATS error")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			closeOnce.Do(func() { close(closed) })
		}),
	}

	nc, err := nats.Connect(s.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	msgCh := make(chan *nats.Msg, s.config.BufferSize)
	subject := s.Subject(auctionID)
	sub, err := nc.ChanSubscribe(subject, msgCh)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	defer sub.Unsubscribe()

	log.Info().Str("auction_id", auctionID).Str("subject", subject).Msg("NATS stream subscribed")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-closed:
			return ErrConnectionClosed
		case msg := <-msgCh:
			if err := deliver(ctx, auctionID, msg.Data, out); err != nil {
				return nil
			}
		}
	}
}
