package models

// Winner is the recorded winner of an auction. The backend keeps at most one per auction item.
type Winner struct {
	WinnerID      int64   `json:"winnerId,omitempty"`
	AuctionItemID int64   `json:"auctionItemId,omitempty"`
	User          *User   `json:"user,omitempty"`
	WinningPrice  float64 `json:"winningPrice"`
}

// DeclareWinner is the write sent when an auction closes with a leading bid
type DeclareWinner struct {
	UserID         int64
	AuctionItemID  int64
	WinningPrice   int64
	IdempotencyKey string
}
