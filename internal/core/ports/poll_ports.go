package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/polling-app/internal/core/domain"
)

// PollRepository is the data access boundary for polls and options. It holds
// no business rules.
type PollRepository interface {
	// ListPolls never fails: store errors are logged and yield an empty list.
	ListPolls(ctx context.Context) []*domain.Poll
	GetPoll(ctx context.Context, id uuid.UUID) (*domain.Poll, error)
	ListPollsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Poll, error)
	CreatePoll(ctx context.Context, poll domain.NewPoll) (*domain.Poll, error)
	CreateOptions(ctx context.Context, pollID uuid.UUID, texts []string) ([]domain.PollOption, error)
	GetPollExpiry(ctx context.Context, pollID uuid.UUID) (*time.Time, error)
	// IncrementVote must be a single atomic store operation scoped to pollID.
	IncrementVote(ctx context.Context, pollID, optionID uuid.UUID) error
	DeletePoll(ctx context.Context, pollID uuid.UUID) error
	// GetPollOwner returns nil, nil when the poll does not exist.
	GetPollOwner(ctx context.Context, pollID uuid.UUID) (*domain.Identity, error)
	ListOrphanPolls(ctx context.Context, createdBefore time.Time) ([]uuid.UUID, error)
}

type CreatePollInput struct {
	Title       string
	Description string
	Options     []string
	ExpiresAt   *time.Time
}

type VoteInput struct {
	PollID   string
	OptionID string
}

type PollService interface {
	Create(ctx context.Context, requester *domain.Identity, input CreatePollInput) (*domain.Poll, error)
	ListPolls(ctx context.Context) []*domain.Poll
	GetPoll(ctx context.Context, id string) (*domain.Poll, error)
	ListMyPolls(ctx context.Context, requester *domain.Identity) ([]*domain.Poll, error)
	Vote(ctx context.Context, requester *domain.Identity, input VoteInput) error
	Delete(ctx context.Context, requester *domain.Identity, pollID string) error
}
