package ports

import (
	"context"

	"github.com/vncsmyrnk/polling-app/internal/core/domain"
)

type EventPublisher interface {
	Publish(ctx context.Context, event domain.PollEvent) error
}
