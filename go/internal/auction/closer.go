package auction

import (
	"context"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/bidly/go/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// winnerKeyNamespace scopes the idempotency keys of winner declarations
var winnerKeyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://bidly/api/winners"))

// WinnerAPI is the part of the backend the close sequence talks to
type WinnerAPI interface {
	WinnerExists(ctx context.Context, auctionID string) (bool, error)
	DeclareWinner(ctx context.Context, req models.DeclareWinner) error
}

// Outcome is how a close sequence ended
type Outcome int

const (
	// OutcomeDeclared means the declare-winner request was sent; see CloseResult.Err
	OutcomeDeclared Outcome = iota + 1
	// OutcomeAlreadyDeclared means the backend already had a winner and nothing was sent
	OutcomeAlreadyDeclared
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDeclared:
		return "declared"
	case OutcomeAlreadyDeclared:
		return "already_declared"
	default:
		return "unknown"
	}
}

// CloseResult is the latched result of the close sequence for one auction
type CloseResult struct {
	Outcome    Outcome
	WinningBid models.Bid
	Err        error // declare-winner failure, nil on success
}

// Closer runs the close sequence: check for an existing winner, then declare
// the winning bid. Each auction is attempted at most once per Closer no matter
// how many triggers race into Close.
type Closer struct {
	winners WinnerAPI
	group   singleflight.Group

	mu      sync.Mutex
	results map[string]CloseResult
}

func NewCloser(winners WinnerAPI) *Closer {
	return &Closer{
		winners: winners,
		results: make(map[string]CloseResult),
	}
}

// WinnerIdempotencyKey is stable per auction so duplicate declarations from
// any client collapse on a first-writer-wins backend.
func WinnerIdempotencyKey(auctionID string) string {
	return uuid.NewSHA1(winnerKeyNamespace, []byte(auctionID)).String()
}

// Close promotes highest to the winning bid and declares it unless a winner
// already exists. Guard failures return an error and latch nothing, so a later
// call with complete data can still proceed.
func (c *Closer) Close(ctx context.Context, auctionID string, item *models.AuctionItem, highest *models.Bid) (CloseResult, error) {
	if highest == nil || highest.BidderID() == 0 {
		return CloseResult{}, ErrNoWinningBid
	}
	if item == nil || item.AuctionItemID == 0 {
		return CloseResult{}, ErrItemNotLoaded
	}

	winning := *highest
	v, _, shared := c.group.Do(auctionID, func() (interface{}, error) {
		if result, ok := c.result(auctionID); ok {
			return result, nil
		}
		result := c.run(ctx, auctionID, item, winning)
		c.mu.Lock()
		c.results[auctionID] = result
		c.mu.Unlock()
		return result, nil
	})

	if shared {
		log.Debug().Str("auction_id", auctionID).Msg("close sequence shared with concurrent trigger")
	}
	return v.(CloseResult), nil
}

// Result returns the latched result for an auction, if its sequence has run
func (c *Closer) Result(auctionID string) (CloseResult, bool) {
	return c.result(auctionID)
}

func (c *Closer) result(auctionID string) (CloseResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	result, ok := c.results[auctionID]
	return result, ok
}

func (c *Closer) run(ctx context.Context, auctionID string, item *models.AuctionItem, winning models.Bid) CloseResult {
	exists, err := c.winners.WinnerExists(ctx, auctionID)
	if err != nil {
		// A failed check counts as "no winner".
		log.Warn().Err(err).Str("auction_id", auctionID).Msg("winner check failed, assuming no winner")
		exists = false
	}
	if exists {
		log.Info().Str("auction_id", auctionID).Msg("winner already recorded, skipping declaration")
		return CloseResult{Outcome: OutcomeAlreadyDeclared, WinningBid: winning}
	}

	req := models.DeclareWinner{
		UserID:         winning.BidderID(),
		AuctionItemID:  item.AuctionItemID,
		WinningPrice:   int64(math.Round(winning.BidAmount)),
		IdempotencyKey: WinnerIdempotencyKey(auctionID),
	}

	err = c.winners.DeclareWinner(ctx, req)
	if err != nil {
		log.Error().
			Err(err).
			Str("auction_id", auctionID).
			Int64("user_id", req.UserID).
			Int64("winning_price", req.WinningPrice).
			Msg("failed to declare winner")
	} else {
		log.Info().
			Str("auction_id", auctionID).
			Int64("user_id", req.UserID).
			Int64("winning_price", req.WinningPrice).
			Msg("winner declared")
	}

	return CloseResult{Outcome: OutcomeDeclared, WinningBid: winning, Err: err}
}
