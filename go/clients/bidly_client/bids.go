package bidly_client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mcdev12/bidly/go/clients"
	"github.com/mcdev12/bidly/go/internal/models"
)

// GetHighestBid returns the leading bid, or nil when nobody has bid yet
func (c *BidlyClient) GetHighestBid(ctx context.Context, auctionID string) (*models.Bid, error) {
	body, err := c.Get(ctx, fmt.Sprintf(HighestBidEndpointFmt, url.PathEscape(auctionID)))
	if err != nil {
		if clients.IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get highest bid: %w", err)
	}

	if isEmpty(body) {
		return nil, nil
	}

	var bid models.Bid
	if err := decode(body, &bid); err != nil {
		return nil, err
	}
	return &bid, nil
}

// PlaceBid submits a bid. Validation is the caller's job; the backend has the final say.
func (c *BidlyClient) PlaceBid(ctx context.Context, userID int64, auctionID string, amount int64) error {
	form := url.Values{}
	form.Set(FieldUserID, strconv.FormatInt(userID, 10))
	form.Set(FieldAuctionItemID, auctionID)
	form.Set(FieldBidAmount, strconv.FormatInt(amount, 10))

	if _, err := c.PostForm(ctx, PlaceBidEndpoint, form, nil); err != nil {
		return fmt.Errorf("failed to place bid: %w", err)
	}
	return nil
}

// BuyNow purchases the item at its buy-now price. The price is implied server side.
func (c *BidlyClient) BuyNow(ctx context.Context, userID int64, auctionID string, idempotencyKey string) error {
	form := url.Values{}
	form.Set(FieldUserID, strconv.FormatInt(userID, 10))
	form.Set(FieldAuctionItemID, auctionID)

	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{IdempotencyKeyHeader: idempotencyKey}
	}

	if _, err := c.PostForm(ctx, BuyNowEndpoint, form, headers); err != nil {
		return fmt.Errorf("failed to buy now: %w", err)
	}
	return nil
}
