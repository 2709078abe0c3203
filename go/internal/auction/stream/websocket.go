package stream

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/bidly/go/internal/auction"
	"github.com/rs/zerolog/log"
)

// WebSocketConfig holds configuration for the WebSocket stream
type WebSocketConfig struct {
	Origin           string // e.g. ws://localhost:8080
	PathFormat       string // e.g. /ws/auctions/%s
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	MaxMessageSize   int64
	MaxReconnects    int // -1 retries forever
	ReconnectWait    time.Duration
}

// DefaultWebSocketConfig returns default WebSocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		Origin:           "ws://localhost:8080",
		PathFormat:       "/ws/auctions/%s",
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		PingInterval:     30 * time.Second,
		MaxMessageSize:   16 * 1024,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
	}
}

// WebSocketStream receives auction events over a WebSocket connection
type WebSocketStream struct {
	config WebSocketConfig
	dialer *websocket.Dialer
}

var _ auction.Stream = (*WebSocketStream)(nil)

func NewWebSocketStream(config WebSocketConfig) *WebSocketStream {
	return &WebSocketStream{
		config: config,
		dialer: &websocket.Dialer{
			HandshakeTimeout: config.HandshakeTimeout,
		},
	}
}

// URL returns the endpoint for an auction's event feed
func (s *WebSocketStream) URL(auctionID string) string {
	return strings.TrimRight(s.config.Origin, "/") + fmt.Sprintf(s.config.PathFormat, url.PathEscape(auctionID))
}

// Subscribe reads events until ctx is cancelled, reconnecting on failure
func (s *WebSocketStream) Subscribe(ctx context.Context, auctionID string, out chan<- auction.Update) error {
	attempts := 0
	for {
		err := s.session(ctx, auctionID, out)
		if ctx.Err() != nil {
			return nil
		}

		attempts++
		if s.config.MaxReconnects >= 0 && attempts > s.config.MaxReconnects {
			return fmt.Errorf("websocket stream gave up after %d attempts: %w", attempts, err)
		}

		log.Warn().
			Err(err).
			Str("auction_id", auctionID).
			Int("attempt", attempts).
			Dur("wait", s.config.ReconnectWait).
			Msg("WebSocket stream disconnected, reconnecting")

		wait := time.NewTimer(s.config.ReconnectWait)
		select {
		case <-ctx.Done():
			wait.Stop()
			return nil
		case <-wait.C:
		}
	}
}

// session runs one connection until it fails or ctx is cancelled
func (s *WebSocketStream) session(ctx context.Context, auctionID string, out chan<- auction.Update) error {
	endpoint := s.URL(auctionID)
	conn, _, err := s.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}
	defer conn.Close()

	log.Info().Str("auction_id", auctionID).Str("url", endpoint).Msg("WebSocket stream connected")

	extend := func() {
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	}

	conn.SetReadLimit(s.config.MaxMessageSize)
	extend()
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})
	conn.SetPingHandler(func(appData string) error {
		extend()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(s.config.WriteTimeout))
	})

	// Unblock ReadMessage on cancellation and keep the server's read deadline fresh
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(s.config.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(s.config.WriteTimeout))
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.config.WriteTimeout)); err != nil {
					log.Debug().Err(err).Str("auction_id", auctionID).Msg("failed to send ping")
				}
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				log.Error().Err(err).Str("auction_id", auctionID).Msg("unexpected WebSocket close error")
			}
			return err
		}
		extend()

		if err := deliver(ctx, auctionID, message, out); err != nil {
			return err
		}
	}
}
