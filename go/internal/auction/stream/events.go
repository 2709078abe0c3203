package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/bidly/go/internal/auction"
	"github.com/mcdev12/bidly/go/internal/models"
	"github.com/rs/zerolog/log"
)

// AuctionEvent is the envelope pushed for every auction change
type AuctionEvent struct {
	ID        string          `json:"id"`         // Event UUID
	AuctionID string          `json:"auction_id"` // Auction item id
	Type      EventType       `json:"type"`       // Event type
	Timestamp time.Time       `json:"timestamp"`  // Event creation time
	Data      json.RawMessage `json:"data"`       // Event-specific payload
}

// EventType represents the type of auction event
type EventType string

const (
	EventTypeStatusChanged     EventType = "AuctionStatusChanged"
	EventTypeHighestBidChanged EventType = "HighestBidChanged"
)

// NewEvent builds an envelope around payload
func NewEvent(auctionID string, eventType EventType, payload interface{}) (*AuctionEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &AuctionEvent{
		ID:        uuid.NewString(),
		AuctionID: auctionID,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// DecodeEvent parses a raw envelope
func DecodeEvent(raw []byte) (*AuctionEvent, error) {
	var event AuctionEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("unmarshal auction event: %w", err)
	}
	return &event, nil
}

// ToUpdate converts an event into a room update. ok is false for event types
// the room does not consume.
func ToUpdate(event *AuctionEvent) (update auction.Update, ok bool, err error) {
	switch event.Type {
	case EventTypeStatusChanged:
		var status models.AuctionStatus
		if err := json.Unmarshal(event.Data, &status); err != nil {
			return auction.Update{}, false, fmt.Errorf("unmarshal status payload: %w", err)
		}
		return auction.Update{Resource: auction.ResourceStatus, Status: &status}, true, nil

	case EventTypeHighestBidChanged:
		update := auction.Update{Resource: auction.ResourceHighestBid}
		if isNull(event.Data) {
			return update, true, nil
		}
		var bid models.Bid
		if err := json.Unmarshal(event.Data, &bid); err != nil {
			return auction.Update{}, false, fmt.Errorf("unmarshal highest bid payload: %w", err)
		}
		update.HighestBid = &bid
		return update, true, nil

	default:
		return auction.Update{}, false, nil // Unknown event type
	}
}

func isNull(data json.RawMessage) bool {
	s := string(data)
	return len(data) == 0 || s == "null"
}

// deliver decodes raw and forwards it to out. Malformed events and events for
// other auctions are logged and skipped.
func deliver(ctx context.Context, auctionID string, raw []byte, out chan<- auction.Update) error {
	event, err := DecodeEvent(raw)
	if err != nil {
		log.Warn().Err(err).Str("auction_id", auctionID).Msg("skipping malformed auction event")
		return nil
	}
	if event.AuctionID != "" && event.AuctionID != auctionID {
		return nil
	}

	update, ok, err := ToUpdate(event)
	if err != nil {
		log.Warn().Err(err).Str("event_id", event.ID).Str("event_type", string(event.Type)).Msg("skipping auction event")
		return nil
	}
	if !ok {
		return nil
	}

	select {
	case out <- update:
		log.Debug().
			Str("auction_id", auctionID).
			Str("event_type", string(event.Type)).
			Msg("auction event delivered")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
