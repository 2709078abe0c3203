package relay

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bidly/go/internal/auction"
	"github.com/mcdev12/bidly/go/internal/auction/stream"
	"github.com/mcdev12/bidly/go/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds relay settings
type Config struct {
	PollInterval time.Duration
	Concurrency  int // auctions polled at once
	// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
	Clock clockwork.Clock
}

func DefaultConfig() Config {
	return Config{
		PollInterval: 2 * time.Second,
		Concurrency:  8,
		Clock:        clockwork.NewRealClock(),
	}
}

type snapshot struct {
	status  *models.AuctionStatus
	highest *models.Bid
	seen    map[auction.Resource]bool
	pending map[auction.Resource]*pendingEvent
}

// pendingEvent is an event whose publish failed. It is re-sent unchanged,
// keeping its id, while the observed value stays the same.
type pendingEvent struct {
	event   *stream.AuctionEvent
	status  *models.AuctionStatus
	highest *models.Bid
}

func (p *pendingEvent) matches(u auction.Update) bool {
	switch u.Resource {
	case auction.ResourceStatus:
		return p.status.SameEndTime(u.Status)
	case auction.ResourceHighestBid:
		return sameBid(p.highest, u.HighestBid)
	}
	return false
}

func newSnapshot() *snapshot {
	return &snapshot{
		seen:    make(map[auction.Resource]bool),
		pending: make(map[auction.Resource]*pendingEvent),
	}
}

// Relay polls the backend for a set of auctions and publishes an event
// whenever an auction's end time or highest bid changes, so rooms on a
// push stream never poll themselves.
type Relay struct {
	poller    *auction.Poller
	publisher Publisher
	config    Config
	auctions  []string
	last      map[string]*snapshot
}

func NewRelay(fetcher auction.StateFetcher, publisher Publisher, auctions []string, config Config) *Relay {
	defaults := DefaultConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.Clock == nil {
		config.Clock = defaults.Clock
	}

	last := make(map[string]*snapshot, len(auctions))
	for _, id := range auctions {
		last[id] = newSnapshot()
	}
	return &Relay{
		poller:    auction.NewPoller(fetcher),
		publisher: publisher,
		config:    config,
		auctions:  auctions,
		last:      last,
	}
}

// Run polls until ctx is cancelled
func (r *Relay) Run(ctx context.Context) error {
	log.Info().
		Strs("auctions", r.auctions).
		Dur("poll_interval", r.config.PollInterval).
		Msg("auction relay started")

	ticker := r.config.Clock.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	r.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("auction relay stopped")
			return nil
		case <-ticker.Chan():
			r.Poll(ctx)
		}
	}
}

// Poll runs one round over every auction and publishes what changed
func (r *Relay) Poll(ctx context.Context) {
	updates := make([][]auction.Update, len(r.auctions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Concurrency)
	for i, id := range r.auctions {
		i, id := i, id
		g.Go(func() error {
			updates[i] = []auction.Update{
				r.poller.Fetch(gctx, id, auction.Request{Resource: auction.ResourceStatus}),
				r.poller.Fetch(gctx, id, auction.Request{Resource: auction.ResourceHighestBid}),
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, id := range r.auctions {
		for _, u := range updates[i] {
			if u.Err != nil {
				continue
			}
			r.observe(ctx, id, u)
		}
	}
}

func (r *Relay) observe(ctx context.Context, auctionID string, u auction.Update) {
	last := r.last[auctionID]

	var eventType stream.EventType
	var payload interface{}
	switch u.Resource {
	case auction.ResourceStatus:
		if last.seen[u.Resource] && last.status.SameEndTime(u.Status) {
			delete(last.pending, u.Resource)
			return
		}
		eventType, payload = stream.EventTypeStatusChanged, u.Status
	case auction.ResourceHighestBid:
		if last.seen[u.Resource] && sameBid(last.highest, u.HighestBid) {
			delete(last.pending, u.Resource)
			return
		}
		eventType, payload = stream.EventTypeHighestBidChanged, u.HighestBid
	default:
		return
	}

	var event *stream.AuctionEvent
	if p := last.pending[u.Resource]; p != nil && p.matches(u) {
		event = p.event
	} else {
		var err error
		event, err = stream.NewEvent(auctionID, eventType, payload)
		if err != nil {
			log.Error().Err(err).Str("auction_id", auctionID).Msg("failed to build auction event")
			return
		}
	}

	if err := r.publisher.Publish(ctx, event); err != nil {
		// Keep the event so the next round retries it under the same id
		last.pending[u.Resource] = &pendingEvent{event: event, status: u.Status, highest: u.HighestBid}
		log.Error().Err(err).Str("auction_id", auctionID).Str("event_type", string(event.Type)).Msg("failed to publish auction event")
		return
	}

	delete(last.pending, u.Resource)
	last.seen[u.Resource] = true
	switch u.Resource {
	case auction.ResourceStatus:
		last.status = u.Status
	case auction.ResourceHighestBid:
		last.highest = u.HighestBid
	}
}

func sameBid(a, b *models.Bid) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.BidID == b.BidID && a.BidAmount == b.BidAmount && a.BidderID() == b.BidderID()
}
