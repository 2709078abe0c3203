package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/bidly/go/internal/auction/stream"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Publisher sends auction events to the rooms' push stream
type Publisher interface {
	Publish(ctx context.Context, event *stream.AuctionEvent) error
}

type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string // must match the rooms' NATS subject prefix
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep events
	DuplicateWindow time.Duration // Window for duplicate detection by event id
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "AUCTION_EVENTS",
		SubjectPrefix:   stream.DefaultNATSConfig().SubjectPrefix,
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          24 * time.Hour,
		DuplicateWindow: 10 * time.Minute,
	}
}

// JetStreamPublisher publishes events on "<prefix>.<auctionId>". Core NATS
// subscribers on that subject receive them as well.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

var _ Publisher = (*JetStreamPublisher)(nil)

func NewJetStreamPublisher(ctx context.Context, cfg JetStreamConfig) (*JetStreamPublisher, error) {
	opts := []nats.Option{
		nats.Name("bidly-relay"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &JetStreamPublisher{nc: nc, js: js, config: cfg}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return p, nil
}

func (p *JetStreamPublisher) streamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Auction status and highest bid changes",
		Subjects:    []string{p.config.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      p.config.MaxAge,
		Storage:     jetstream.FileStorage,
		Duplicates:  p.config.DuplicateWindow,
	}
}

func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	sc := p.streamConfig()
	if _, err := p.js.CreateOrUpdateStream(ctx, sc); err != nil {
		return fmt.Errorf("create or update stream %s: %w", sc.Name, err)
	}
	log.Info().Str("stream", sc.Name).Strs("subjects", sc.Subjects).Msg("JetStream stream ready")
	return nil
}

// Subject returns the subject an auction's events are published on
func (p *JetStreamPublisher) Subject(auctionID string) string {
	return fmt.Sprintf("%s.%s", p.config.SubjectPrefix, auctionID)
}

func (p *JetStreamPublisher) Publish(ctx context.Context, event *stream.AuctionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := p.Subject(event.AuctionID)
	ack, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{string(event.Type)},
			"Auction-ID": []string{event.AuctionID},
			"Event-ID":   []string{event.ID},
		},
	},
		jetstream.WithMsgID(event.ID),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_id", event.ID).
		Uint64("sequence", ack.Sequence).
		Msg("published auction event")
	return nil
}

func (p *JetStreamPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
