package relay

import (
	"context"
	"errors"

	"github.com/mcdev12/bidly/go/internal/auction/stream"
)

// Fanout publishes every event to all of its publishers
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event *stream.AuctionEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
