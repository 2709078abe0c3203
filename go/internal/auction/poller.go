package auction

import (
	"context"

	"github.com/mcdev12/bidly/go/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Resource names one piece of fetched room state
type Resource string

const (
	ResourceUser       Resource = "user"
	ResourceItem       Resource = "item"
	ResourceStatus     Resource = "status"
	ResourceHighestBid Resource = "highest_bid"
)

// defaultFetchMessages are shown when a fetch fails without a server message
var defaultFetchMessages = map[Resource]string{
	ResourceUser:       "Error fetching user session.",
	ResourceItem:       "Error fetching auction item.",
	ResourceStatus:     "Error fetching auction status.",
	ResourceHighestBid: "Error fetching highest bid.",
}

// Update carries one fetched or pushed resource. Seq orders updates of the
// same resource; the room applies an update only if its Seq is newer than
// the last one applied.
type Update struct {
	Resource   Resource
	Seq        uint64
	User       *models.User
	Item       *models.AuctionItem
	Status     *models.AuctionStatus
	HighestBid *models.Bid
	Err        error
}

// StateFetcher reads the room state from the backend
type StateFetcher interface {
	CurrentUser(ctx context.Context) (*models.User, error)
	GetAuctionItem(ctx context.Context, auctionID string) (*models.AuctionItem, error)
	GetAuctionStatus(ctx context.Context, auctionID string) (*models.AuctionStatus, error)
	GetHighestBid(ctx context.Context, auctionID string) (*models.Bid, error)
}

// Request is a resource to fetch, stamped with the sequence it was issued at
type Request struct {
	Resource Resource
	Seq      uint64
}

// Poller fetches room state. It holds no state of its own; scheduling and
// sequencing belong to the room loop.
type Poller struct {
	fetcher StateFetcher
}

func NewPoller(fetcher StateFetcher) *Poller {
	return &Poller{fetcher: fetcher}
}

// Cycle fetches every request concurrently and delivers each result as it
// completes. A failing fetch never affects the others.
func (p *Poller) Cycle(ctx context.Context, auctionID string, requests []Request, deliver func(Update)) {
	var g errgroup.Group
	for _, req := range requests {
		req := req
		g.Go(func() error {
			deliver(p.Fetch(ctx, auctionID, req))
			return nil
		})
	}
	_ = g.Wait()
}

// Fetch performs a single request
func (p *Poller) Fetch(ctx context.Context, auctionID string, req Request) Update {
	u := Update{Resource: req.Resource, Seq: req.Seq}

	switch req.Resource {
	case ResourceUser:
		u.User, u.Err = p.fetcher.CurrentUser(ctx)
	case ResourceItem:
		u.Item, u.Err = p.fetcher.GetAuctionItem(ctx, auctionID)
	case ResourceStatus:
		u.Status, u.Err = p.fetcher.GetAuctionStatus(ctx, auctionID)
	case ResourceHighestBid:
		u.HighestBid, u.Err = p.fetcher.GetHighestBid(ctx, auctionID)
	}

	if u.Err != nil && ctx.Err() == nil {
		log.Warn().
			Err(u.Err).
			Str("auction_id", auctionID).
			Str("resource", string(req.Resource)).
			Uint64("seq", req.Seq).
			Msg("fetch failed")
	}
	return u
}
