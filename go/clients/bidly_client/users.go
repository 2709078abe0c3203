package bidly_client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mcdev12/bidly/go/clients"
	"github.com/mcdev12/bidly/go/internal/models"
)

// sessionResponse covers both spellings the session endpoint has used for the id
type sessionResponse struct {
	UserID      int64 `json:"userId"`
	UserIDSnake int64 `json:"user_id"`
	IsAdmin     bool  `json:"isAdmin"`
}

// CurrentUser returns the user behind the session cookie. ErrNoSession is
// returned when the backend reports no session or no id.
func (c *BidlyClient) CurrentUser(ctx context.Context) (*models.User, error) {
	body, err := c.Get(ctx, UsersMeEndpoint)
	if err != nil {
		if clients.IsStatus(err, http.StatusUnauthorized) || clients.IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNoSession, err)
		}
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	var session sessionResponse
	if err := decode(body, &session); err != nil {
		return nil, err
	}

	id := session.UserID
	if id == 0 {
		id = session.UserIDSnake
	}
	if id == 0 {
		return nil, ErrNoSession
	}

	return &models.User{UserID: id, IsAdmin: session.IsAdmin}, nil
}
