package auction

import (
	"math"
	"strconv"
	"strings"

	"github.com/mcdev12/bidly/go/internal/models"
)

// BidContext is the view state a bid or purchase is validated against
type BidContext struct {
	User       *models.User
	Item       *models.AuctionItem
	HighestBid *models.Bid
	Ended      bool
}

// IsOwnAuction reports whether the logged in user listed the item
func (bc BidContext) IsOwnAuction() bool {
	return bc.User != nil && bc.Item != nil && bc.User.UserID == bc.Item.UserID
}

// MinimumBid is the smallest acceptable amount: one above the highest bid,
// never below the starting price.
func MinimumBid(item *models.AuctionItem, highest *models.Bid) float64 {
	if item == nil {
		return 0
	}
	if highest == nil {
		return item.StartingPrice
	}
	return math.Max(highest.BidAmount+1, item.StartingPrice)
}

// ValidateBid checks raw user input and returns the amount to submit.
// Checks short-circuit in a fixed order; every failure is a *BidRejection.
func ValidateBid(bc BidContext, raw string) (int64, error) {
	if bc.Ended {
		return 0, reject(ErrAuctionEnded, "Auction is over. No more bids accepted.")
	}
	if bc.User == nil {
		return 0, reject(ErrNotLoggedIn, "You must be logged in to place a bid.")
	}
	if bc.IsOwnAuction() {
		return 0, reject(ErrOwnAuction, "You cannot bid on your own auction.")
	}
	if bc.Item == nil {
		return 0, reject(ErrItemNotLoaded, "Auction item is still loading.")
	}

	amount, ok := parseAmount(raw)
	if !ok {
		return 0, reject(ErrInvalidAmount, "Please enter a valid bid amount.")
	}

	minBid := MinimumBid(bc.Item, bc.HighestBid)
	if float64(amount) < minBid {
		return 0, reject(ErrBidTooLow, "Your bid must be at least $%s.", FormatPrice(math.Ceil(minBid)))
	}

	if bc.Item.HasBuyNowPrice() && float64(amount) >= *bc.Item.BuyNowPrice {
		return 0, reject(ErrAboveBuyNow,
			"Your bid is above the Buy Now price ($%s). Please click \"Buy Now\" to purchase immediately.",
			FormatPrice(*bc.Item.BuyNowPrice))
	}

	return amount, nil
}

// ValidateBuyNow checks that a purchase may be submitted
func ValidateBuyNow(bc BidContext) error {
	if bc.User == nil {
		return reject(ErrNotLoggedIn, "You must be logged in to purchase.")
	}
	if bc.Ended {
		return reject(ErrAuctionEnded, "Auction is over. No more bids accepted.")
	}
	if bc.Item == nil {
		return reject(ErrItemNotLoaded, "Auction item is still loading.")
	}
	if !bc.Item.IsBuyNowEligible() {
		return reject(ErrNotBuyNowEligible, "This auction does not offer Buy Now.")
	}
	return nil
}

// parseAmount accepts positive whole numbers; "150" and "150.0" are the same bid.
func parseAmount(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	if amount, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return amount, amount > 0
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f <= 0 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// FormatPrice renders a price without trailing zeros
func FormatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
