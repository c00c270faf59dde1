package ports

import (
	"context"

	"github.com/vncsmyrnk/polling-app/internal/core/domain"
)

// PollCache holds the full poll listing. Implementations report a miss as
// ok == false with a nil error.
//
// Every Invalidate advances the generation. SetPolls stores a listing only
// when the generation is still the one read before the listing was loaded,
// so a listing read before a write can never outlive that write.
type PollCache interface {
	GetPolls(ctx context.Context) (polls []*domain.Poll, ok bool, err error)
	Generation(ctx context.Context) (int64, error)
	SetPolls(ctx context.Context, polls []*domain.Poll, generation int64) error
	Invalidate(ctx context.Context) error
}
