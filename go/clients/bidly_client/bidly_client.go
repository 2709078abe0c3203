package bidly_client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/mcdev12/bidly/go/clients"
)

var (
	// ErrNoSession is returned when the backend has no logged in user for our cookie
	ErrNoSession = errors.New("user session not found")
)

type BidlyClient struct {
	*clients.BaseClient
	items *lru.Cache
}

// Options tune a BidlyClient. Zero values fall back to defaults.
type Options struct {
	Timeout       time.Duration
	ItemCacheSize int
}

func NewBidlyClient(baseURL string, opts Options) (*BidlyClient, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	size := opts.ItemCacheSize
	if size <= 0 {
		size = DefaultItemCacheSize
	}

	items, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create item cache: %w", err)
	}

	client := &BidlyClient{
		BaseClient: clients.NewBaseClient(baseURL),
		items:      items,
	}
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	return client, nil
}

// isEmpty reports whether a 2xx body carries no value (no bids yet, no winner yet).
func isEmpty(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`""`))
}

func decode(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	return nil
}
