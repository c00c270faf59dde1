// Package memory keeps polls, users and refresh tokens in process memory.
// It backs the "memory" store driver and the service and handler tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/polling-app/internal/core/domain"
	"github.com/vncsmyrnk/polling-app/internal/core/ports"
)

type pollRow struct {
	poll    domain.Poll
	options []*domain.PollOption
}

type PollRepository struct {
	mu    sync.RWMutex
	polls map[uuid.UUID]*pollRow
	clock func() time.Time

	// seq breaks createdAt ties so listing order is stable.
	seq  map[uuid.UUID]int
	next int
}

func NewPollRepository() *PollRepository {
	return &PollRepository{
		polls: make(map[uuid.UUID]*pollRow),
		seq:   make(map[uuid.UUID]int),
		clock: time.Now,
	}
}

var _ ports.PollRepository = (*PollRepository)(nil)

func (r *PollRepository) ListPolls(ctx context.Context) []*domain.Poll {
	r.mu.RLock()
	defer r.mu.RUnlock()

	polls := make([]*domain.Poll, 0, len(r.polls))
	for _, row := range r.polls {
		polls = append(polls, r.snapshot(row))
	}
	r.sortNewestFirst(polls)
	return polls
}

func (r *PollRepository) GetPoll(ctx context.Context, id uuid.UUID) (*domain.Poll, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.polls[id]
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	return r.snapshot(row), nil
}

func (r *PollRepository) ListPollsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Poll, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	polls := []*domain.Poll{}
	for _, row := range r.polls {
		if row.poll.CreatedBy.ID == ownerID {
			polls = append(polls, r.snapshot(row))
		}
	}
	r.sortNewestFirst(polls)
	return polls, nil
}

func (r *PollRepository) CreatePoll(ctx context.Context, p domain.NewPoll) (*domain.Poll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := &pollRow{poll: domain.Poll{
		ID:          uuid.New(),
		Title:       p.Title,
		Description: p.Description,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   r.clock(),
		ExpiresAt:   p.ExpiresAt,
	}}
	r.polls[row.poll.ID] = row
	r.next++
	r.seq[row.poll.ID] = r.next

	return r.snapshot(row), nil
}

func (r *PollRepository) CreateOptions(ctx context.Context, pollID uuid.UUID, texts []string) ([]domain.PollOption, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.polls[pollID]
	if !ok {
		return nil, domain.StoreError("insert poll options", fmt.Errorf("poll %s does not exist", pollID))
	}

	created := make([]domain.PollOption, 0, len(texts))
	for _, text := range texts {
		opt := &domain.PollOption{ID: uuid.New(), PollID: pollID, Text: text}
		row.options = append(row.options, opt)
		created = append(created, *opt)
	}
	return created, nil
}

func (r *PollRepository) GetPollExpiry(ctx context.Context, pollID uuid.UUID) (*time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.polls[pollID]
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	return row.poll.ExpiresAt, nil
}

func (r *PollRepository) IncrementVote(ctx context.Context, pollID, optionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.polls[pollID]
	if !ok {
		return domain.ErrOptionNotFound
	}
	for _, opt := range row.options {
		if opt.ID == optionID {
			opt.Votes++
			return nil
		}
	}
	return domain.ErrOptionNotFound
}

func (r *PollRepository) DeletePoll(ctx context.Context, pollID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.polls, pollID)
	delete(r.seq, pollID)
	return nil
}

func (r *PollRepository) GetPollOwner(ctx context.Context, pollID uuid.UUID) (*domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.polls[pollID]
	if !ok {
		return nil, nil
	}
	owner := row.poll.CreatedBy
	return &owner, nil
}

func (r *PollRepository) ListOrphanPolls(ctx context.Context, createdBefore time.Time) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []uuid.UUID
	for id, row := range r.polls {
		if len(row.options) == 0 && row.poll.CreatedAt.Before(createdBefore) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// snapshot copies a row so callers never share memory with the store.
func (r *PollRepository) snapshot(row *pollRow) *domain.Poll {
	p := row.poll
	p.Options = make([]domain.PollOption, 0, len(row.options))
	for _, opt := range row.options {
		p.Options = append(p.Options, *opt)
	}
	p.Tally(r.clock())
	return &p
}

func (r *PollRepository) sortNewestFirst(polls []*domain.Poll) {
	sort.Slice(polls, func(i, j int) bool {
		if !polls[i].CreatedAt.Equal(polls[j].CreatedAt) {
			return polls[i].CreatedAt.After(polls[j].CreatedAt)
		}
		return r.seq[polls[i].ID] > r.seq[polls[j].ID]
	})
}
