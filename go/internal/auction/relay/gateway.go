package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/bidly/go/internal/auction/stream"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// GatewayConfig holds configuration for the WebSocket gateway
type GatewayConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	AllowedOrigins  []string
}

// DefaultGatewayConfig returns default WebSocket gateway configuration
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024, // clients only send control frames
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      64,
		AllowedOrigins:  []string{"*"},
	}
}

// Gateway serves auction events to rooms over /ws/auctions/{id}. New
// connections first receive the latest event of each type for their auction.
type Gateway struct {
	config   GatewayConfig
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	connections map[string]map[*connection]bool
	latest      map[string]map[stream.EventType][]byte
}

type connection struct {
	id        string
	auctionID string
	conn      *websocket.Conn
	send      chan []byte
	gateway   *Gateway
	closeOnce sync.Once
}

var _ Publisher = (*Gateway)(nil)

// replayOrder lists the events a new connection receives on connect
var replayOrder = []stream.EventType{stream.EventTypeStatusChanged, stream.EventTypeHighestBidChanged}

func NewGateway(config GatewayConfig) *Gateway {
	if config.SendBuffer < len(replayOrder) {
		config.SendBuffer = DefaultGatewayConfig().SendBuffer
	}
	return &Gateway{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true // origins are enforced by the CORS layer
			},
		},
		connections: make(map[string]map[*connection]bool),
		latest:      make(map[string]map[stream.EventType][]byte),
	}
}

// Handler returns the gateway routes wrapped in CORS handling
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/auctions/{id}", g.handleConnect)
	mux.HandleFunc("GET /ws/stats", g.handleStats)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
		AllowedOrigins: g.config.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

// Publish records event as the latest of its type and broadcasts it
func (g *Gateway) Publish(ctx context.Context, event *stream.AuctionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	g.mu.Lock()
	if g.latest[event.AuctionID] == nil {
		g.latest[event.AuctionID] = make(map[stream.EventType][]byte)
	}
	g.latest[event.AuctionID][event.Type] = data
	targets := make([]*connection, 0, len(g.connections[event.AuctionID]))
	for c := range g.connections[event.AuctionID] {
		targets = append(targets, c)
	}
	g.mu.Unlock()

	for _, c := range targets {
		c.enqueue(data)
	}

	log.Debug().
		Str("event_type", string(event.Type)).
		Str("auction_id", event.AuctionID).
		Int("connections", len(targets)).
		Msg("event broadcasted")
	return nil
}

// Stats returns the number of open connections per auction
func (g *Gateway) Stats() map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	counts := make(map[string]int, len(g.connections))
	for auctionID, conns := range g.connections {
		counts[auctionID] = len(conns)
	}
	return counts
}

func (g *Gateway) handleConnect(w http.ResponseWriter, r *http.Request) {
	auctionID := r.PathValue("id")

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("auction_id", auctionID).Msg("failed to upgrade WebSocket connection")
		return
	}

	c := &connection{
		id:        uuid.NewString(),
		auctionID: auctionID,
		conn:      conn,
		send:      make(chan []byte, g.config.SendBuffer),
		gateway:   g,
	}
	g.register(c)

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.id).
		Str("auction_id", auctionID).
		Msg("WebSocket connection established")
}

func (g *Gateway) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := g.Stats()
	total := 0
	for _, n := range stats {
		total += n
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"total_connections":   total,
		"auction_connections": stats,
	})
}

// register adds c and queues the auction's latest events for it
func (g *Gateway) register(c *connection) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.connections[c.auctionID] == nil {
		g.connections[c.auctionID] = make(map[*connection]bool)
	}
	g.connections[c.auctionID][c] = true

	for _, eventType := range replayOrder {
		data, ok := g.latest[c.auctionID][eventType]
		if !ok {
			continue
		}
		select {
		case c.send <- data:
		default:
			log.Warn().Str("connection_id", c.id).Str("event_type", string(eventType)).Msg("send buffer full, skipping replay")
			return
		}
	}
}

func (g *Gateway) unregister(c *connection) {
	g.mu.Lock()
	defer g.mu.Unlock()

	conns, ok := g.connections[c.auctionID]
	if !ok || !conns[c] {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(g.connections, c.auctionID)
	}
	c.closeOnce.Do(func() { close(c.send) })

	log.Info().
		Str("connection_id", c.id).
		Str("auction_id", c.auctionID).
		Msg("connection unregistered")
}

// enqueue drops slow connections instead of blocking the publisher
func (c *connection) enqueue(data []byte) {
	defer func() {
		// send was closed by a concurrent unregister
		recover()
	}()
	select {
	case c.send <- data:
	default:
		log.Warn().Str("connection_id", c.id).Msg("connection send buffer full, closing connection")
		c.gateway.unregister(c)
		c.conn.Close()
	}
}

func (c *connection) writePump() {
	cfg := c.gateway.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.gateway.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.id).Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", c.id).Msg("failed to send ping")
				return
			}
		}
	}
}

func (c *connection) readPump() {
	cfg := c.gateway.config
	defer func() {
		c.gateway.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.id).Msg("unexpected WebSocket close error")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	}
}
