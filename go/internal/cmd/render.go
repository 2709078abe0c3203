package main

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/mcdev12/bidly/go/internal/auction"
	"github.com/mcdev12/bidly/go/internal/models"
	"github.com/rs/zerolog/log"
)

const textRenderFailed = "Something went wrong. Please refresh the page."

// Renderer prints room views to a terminal. It is safe for concurrent use.
type Renderer struct {
	mu   sync.Mutex
	out  io.Writer
	page func(auction.View) string
	last string
}

func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out, page: renderPage}
}

// Render prints v unless it would look the same as the previous page.
// A panic while building the page is replaced by a fallback page.
func (r *Renderer) Render(v auction.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	page := r.build(v)
	if page == r.last {
		return
	}
	r.last = page
	fmt.Fprint(r.out, page)
}

// RenderResults prints the results page; it is the terminal's Navigator
func (r *Renderer) RenderResults(results models.Results) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "\n== Results for auction %s ==\n", results.AuctionItemID)
	if bid := results.WinningBid; bid != nil {
		fmt.Fprintf(&b, "Winning bid: $%s by %s\n", auction.FormatPrice(bid.BidAmount), bidderName(bid))
	} else {
		b.WriteString("Auction closed.\n")
	}
	fmt.Fprint(r.out, b.String())
}

// Print writes a console line under the renderer lock
func (r *Renderer) Print(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format+"\n", args...)
}

func (r *Renderer) build(v auction.View) (page string) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("auction_id", v.AuctionID).Msg("render failed")
			page = textRenderFailed + "\n"
		}
	}()
	return r.page(v)
}

func renderPage(v auction.View) string {
	var b strings.Builder
	b.WriteString("\n")

	if v.Item == nil {
		if v.ItemError != "" {
			fmt.Fprintf(&b, "Failed to load auction item: %s\n", v.ItemError)
		} else {
			b.WriteString("Loading...\n")
		}
		return b.String()
	}

	item := v.Item
	fmt.Fprintf(&b, "== %s ==\n", item.ItemName)
	if item.ItemDescription != "" {
		fmt.Fprintf(&b, "%s\n", item.ItemDescription)
	}
	fmt.Fprintf(&b, "Starting price: $%s\n", auction.FormatPrice(item.StartingPrice))
	if item.HasBuyNowPrice() {
		fmt.Fprintf(&b, "Buy Now price: $%s\n", auction.FormatPrice(*item.BuyNowPrice))
	}

	if v.HighestBid != nil {
		fmt.Fprintf(&b, "Highest bid: $%s by %s\n", auction.FormatPrice(v.HighestBid.BidAmount), bidderName(v.HighestBid))
	} else {
		b.WriteString("Highest bid: none yet\n")
	}

	fmt.Fprintf(&b, "Time left: %s\n", v.Countdown.Text)

	if v.WinningBid != nil {
		fmt.Fprintf(&b, "Winning bid: $%s by %s\n", auction.FormatPrice(v.WinningBid.BidAmount), bidderName(v.WinningBid))
	}

	if v.Error != "" {
		fmt.Fprintf(&b, "! %s\n", v.Error)
	}
	if v.Success != "" {
		fmt.Fprintf(&b, "* %s\n", v.Success)
	}

	switch {
	case v.IsOwnAuction():
		b.WriteString("This is your auction.\n")
	case v.Ended() || v.Purchased:
	default:
		fmt.Fprintf(&b, "Minimum bid: $%s\n", auction.FormatPrice(math.Ceil(v.MinimumBid())))
		if v.CanBuyNow() {
			b.WriteString("Commands: bid <amount> | buy | quit\n")
		} else {
			b.WriteString("Commands: bid <amount> | quit\n")
		}
	}
	return b.String()
}

func bidderName(bid *models.Bid) string {
	if bid.User != nil && bid.User.Username != "" {
		return bid.User.Username
	}
	return fmt.Sprintf("user %d", bid.BidderID())
}
