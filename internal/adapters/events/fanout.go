// Package events delivers poll events to every configured publisher.
package events

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vncsmyrnk/polling-app/internal/core/domain"
	"github.com/vncsmyrnk/polling-app/internal/core/ports"
)

type Fanout struct {
	publishers []ports.EventPublisher
}

var _ ports.EventPublisher = (*Fanout)(nil)

// NewFanout ignores nil publishers so optional transports can be passed
// through unconditionally.
func NewFanout(publishers ...ports.EventPublisher) *Fanout {
	f := &Fanout{}
	for _, p := range publishers {
		if p != nil {
			f.publishers = append(f.publishers, p)
		}
	}
	return f
}

// Publish hands the event to every publisher, even after one fails.
func (f *Fanout) Publish(ctx context.Context, event domain.PollEvent) error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Publish(ctx, event); err != nil {
			slog.Warn("event publisher failed", "type", event.Type, "poll_id", event.PollID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) Len() int {
	return len(f.publishers)
}
