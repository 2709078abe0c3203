package auction

import "github.com/mcdev12/bidly/go/internal/models"

// View is an immutable snapshot of the room, published after every change
type View struct {
	AuctionID    string
	User         *models.User
	Item         *models.AuctionItem
	ItemError    string // set while the item has never loaded
	Status       *models.AuctionStatus
	HighestBid   *models.Bid
	WinningBid   *models.Bid
	Countdown    Reading
	Error        string
	Success      string
	BidInput     string
	WinnerExists bool
	Purchased    bool
}

func (v View) Ended() bool {
	return v.Countdown.Phase == PhaseEnded
}

func (v View) IsOwnAuction() bool {
	return v.bidContext().IsOwnAuction()
}

// CanBuyNow reports whether the Buy Now action should be offered
func (v View) CanBuyNow() bool {
	return v.Item.IsBuyNowEligible() && !v.Ended() && !v.Purchased
}

func (v View) MinimumBid() float64 {
	return MinimumBid(v.Item, v.HighestBid)
}

// IsUser reports whether userID is the logged in user
func (v View) IsUser(userID int64) bool {
	return v.User != nil && v.User.UserID == userID
}

func (v View) bidContext() BidContext {
	return BidContext{
		User:       v.User,
		Item:       v.Item,
		HighestBid: v.HighestBid,
		Ended:      v.Ended() || v.Purchased,
	}
}
