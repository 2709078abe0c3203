package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AuctionTypeBuyNow is the auction type id of listings that can be bought outright
const AuctionTypeBuyNow = 2

// AuctionType represents the kind of listing
type AuctionType struct {
	AuctionTypeID int    `json:"auctionTypeId"`
	TypeName      string `json:"typeName,omitempty"`
}

// AuctionItem represents the listing being bid on. It is never mutated after fetch.
type AuctionItem struct {
	AuctionItemID   int64        `json:"auctionItemId"`
	UserID          int64        `json:"userId"` // owner
	ItemName        string       `json:"itemName"`
	ItemDescription string       `json:"itemDescription"`
	StartingPrice   float64      `json:"startingPrice"`
	BuyNowPrice     *float64     `json:"buyNowPrice,omitempty"`
	AuctionType     *AuctionType `json:"auctionType,omitempty"`
}

// IsBuyNowEligible reports whether the item offers an immediate purchase
func (i *AuctionItem) IsBuyNowEligible() bool {
	return i != nil && i.AuctionType != nil && i.AuctionType.AuctionTypeID == AuctionTypeBuyNow
}

// HasBuyNowPrice reports whether a positive buy-now price is set
func (i *AuctionItem) HasBuyNowPrice() bool {
	return i != nil && i.BuyNowPrice != nil && *i.BuyNowPrice > 0
}

// AuctionStatus carries the auction end time in epoch seconds
type AuctionStatus struct {
	EndTimeEpoch *int64 `json:"endTimeEpoch,omitempty"`
}

// EndTime returns the end time, false if the backend did not report one
func (s *AuctionStatus) EndTime() (time.Time, bool) {
	if s == nil || s.EndTimeEpoch == nil || *s.EndTimeEpoch == 0 {
		return time.Time{}, false
	}
	return time.Unix(*s.EndTimeEpoch, 0), true
}

// SameEndTime reports whether both statuses describe the same end time
func (s *AuctionStatus) SameEndTime(other *AuctionStatus) bool {
	a, aok := s.EndTime()
	b, bok := other.EndTime()
	if aok != bok {
		return false
	}
	return a.Equal(b)
}

// UnmarshalJSON accepts endTimeEpoch as a number or a numeric string.
func (s *AuctionStatus) UnmarshalJSON(data []byte) error {
	var raw struct {
		EndTimeEpoch json.RawMessage `json:"endTimeEpoch"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.EndTimeEpoch = nil
	value := strings.Trim(strings.TrimSpace(string(raw.EndTimeEpoch)), `"`)
	if value == "" || value == "null" {
		return nil
	}

	epoch, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid endTimeEpoch %q: %w", value, err)
	}
	seconds := int64(epoch)
	s.EndTimeEpoch = &seconds
	return nil
}
