package bidly_client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mcdev12/bidly/go/internal/models"
)

// GetAuctionItem fetches a listing. Items never change once created, so
// repeated lookups are served from the item cache.
func (c *BidlyClient) GetAuctionItem(ctx context.Context, auctionID string) (*models.AuctionItem, error) {
	if cached, ok := c.items.Get(auctionID); ok {
		item := *cached.(*models.AuctionItem)
		return &item, nil
	}

	body, err := c.Get(ctx, fmt.Sprintf("%s/%s", AuctionItemsEndpoint, url.PathEscape(auctionID)))
	if err != nil {
		return nil, fmt.Errorf("failed to get auction item: %w", err)
	}

	var item models.AuctionItem
	if err := decode(body, &item); err != nil {
		return nil, err
	}

	stored := item
	c.items.Add(auctionID, &stored)
	return &item, nil
}

// GetAuctionStatus fetches the auction's end time
func (c *BidlyClient) GetAuctionStatus(ctx context.Context, auctionID string) (*models.AuctionStatus, error) {
	body, err := c.Get(ctx, fmt.Sprintf("%s/%s", AuctionStatusEndpoint, url.PathEscape(auctionID)))
	if err != nil {
		return nil, fmt.Errorf("failed to get auction status: %w", err)
	}

	var status models.AuctionStatus
	if isEmpty(body) {
		return &status, nil
	}
	if err := decode(body, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
