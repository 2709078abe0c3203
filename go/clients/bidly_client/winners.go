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

// GetWinner returns the recorded winner, or nil if there is none yet
func (c *BidlyClient) GetWinner(ctx context.Context, auctionID string) (*models.Winner, error) {
	body, err := c.Get(ctx, fmt.Sprintf("%s/%s", WinnersEndpoint, url.PathEscape(auctionID)))
	if err != nil {
		if clients.IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get winner: %w", err)
	}

	if isEmpty(body) {
		return nil, nil
	}

	var winner models.Winner
	if err := decode(body, &winner); err != nil {
		return nil, err
	}
	return &winner, nil
}

// WinnerExists reports whether the backend already recorded a winner
func (c *BidlyClient) WinnerExists(ctx context.Context, auctionID string) (bool, error) {
	winner, err := c.GetWinner(ctx, auctionID)
	if err != nil {
		return false, err
	}
	return winner != nil, nil
}

// DeclareWinner records the winning bid. A non-empty IdempotencyKey lets the
// backend drop duplicates from racing clients.
func (c *BidlyClient) DeclareWinner(ctx context.Context, req models.DeclareWinner) error {
	form := url.Values{}
	form.Set(FieldUserID, strconv.FormatInt(req.UserID, 10))
	form.Set(FieldAuctionItemID, strconv.FormatInt(req.AuctionItemID, 10))
	form.Set(FieldWinningPrice, strconv.FormatInt(req.WinningPrice, 10))

	var headers map[string]string
	if req.IdempotencyKey != "" {
		headers = map[string]string{IdempotencyKeyHeader: req.IdempotencyKey}
	}

	if _, err := c.PostForm(ctx, DeclareWinnerEndpoint, form, headers); err != nil {
		return fmt.Errorf("failed to declare winner: %w", err)
	}
	return nil
}
