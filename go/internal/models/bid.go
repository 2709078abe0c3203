package models

// Bid is a bid snapshot as reported by the backend
type Bid struct {
	BidID         int64   `json:"bidId,omitempty"`
	UserID        int64   `json:"userId"`
	User          *User   `json:"user,omitempty"`
	AuctionItemID int64   `json:"auctionItemId,omitempty"`
	BidAmount     float64 `json:"bidAmount"`
}

// BidderID prefers the nested user reference over the flat userId field
func (b *Bid) BidderID() int64 {
	if b == nil {
		return 0
	}
	if b.User != nil && b.User.UserID != 0 {
		return b.User.UserID
	}
	return b.UserID
}

// Results is the payload handed to the results view once bidding is over.
// WinningBid is nil for buy-now purchases.
type Results struct {
	AuctionItemID string `json:"auctionItemId"`
	WinningBid    *Bid   `json:"winningBid,omitempty"`
}
