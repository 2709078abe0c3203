package auction

import (
	"errors"
	"fmt"
)

var (
	ErrAuctionEnded      = errors.New("auction has ended")
	ErrNotLoggedIn       = errors.New("user not logged in")
	ErrOwnAuction        = errors.New("bidder owns the auction")
	ErrItemNotLoaded     = errors.New("auction item not loaded")
	ErrInvalidAmount     = errors.New("invalid bid amount")
	ErrBidTooLow         = errors.New("bid amount too low")
	ErrAboveBuyNow       = errors.New("bid at or above buy-now price")
	ErrNotBuyNowEligible = errors.New("auction does not offer buy now")
	ErrNoWinningBid      = errors.New("no winning bid to declare")
	ErrUnmounted         = errors.New("auction room is not running")
	ErrAlreadyRunning    = errors.New("auction room already running")
)

// BidRejection is a validation failure. Error returns the text shown to the
// user; Unwrap exposes the reason for errors.Is.
type BidRejection struct {
	Reason  error
	Message string
}

func (r *BidRejection) Error() string {
	return r.Message
}

func (r *BidRejection) Unwrap() error {
	return r.Reason
}

func reject(reason error, format string, args ...interface{}) error {
	return &BidRejection{Reason: reason, Message: fmt.Sprintf(format, args...)}
}
