package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/vncsmyrnk/polling-app/internal/core/domain"
	"github.com/vncsmyrnk/polling-app/internal/core/ports"
)

type mockPollRepository struct {
	mock.Mock
}

func (m *mockPollRepository) ListPolls(ctx context.Context) []*domain.Poll {
	args := m.Called(ctx)
	return args.Get(0).([]*domain.Poll)
}

func (m *mockPollRepository) GetPoll(ctx context.Context, id uuid.UUID) (*domain.Poll, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*domain.Poll)
	return p, args.Error(1)
}

func (m *mockPollRepository) ListPollsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Poll, error) {
	args := m.Called(ctx, ownerID)
	p, _ := args.Get(0).([]*domain.Poll)
	return p, args.Error(1)
}

func (m *mockPollRepository) CreatePoll(ctx context.Context, poll domain.NewPoll) (*domain.Poll, error) {
	args := m.Called(ctx, poll)
	p, _ := args.Get(0).(*domain.Poll)
	return p, args.Error(1)
}

func (m *mockPollRepository) CreateOptions(ctx context.Context, pollID uuid.UUID, texts []string) ([]domain.PollOption, error) {
	args := m.Called(ctx, pollID, texts)
	o, _ := args.Get(0).([]domain.PollOption)
	return o, args.Error(1)
}

func (m *mockPollRepository) GetPollExpiry(ctx context.Context, pollID uuid.UUID) (*time.Time, error) {
	args := m.Called(ctx, pollID)
	t, _ := args.Get(0).(*time.Time)
	return t, args.Error(1)
}

func (m *mockPollRepository) IncrementVote(ctx context.Context, pollID, optionID uuid.UUID) error {
	return m.Called(ctx, pollID, optionID).Error(0)
}

func (m *mockPollRepository) DeletePoll(ctx context.Context, pollID uuid.UUID) error {
	return m.Called(ctx, pollID).Error(0)
}

func (m *mockPollRepository) GetPollOwner(ctx context.Context, pollID uuid.UUID) (*domain.Identity, error) {
	args := m.Called(ctx, pollID)
	o, _ := args.Get(0).(*domain.Identity)
	return o, args.Error(1)
}

func (m *mockPollRepository) ListOrphanPolls(ctx context.Context, createdBefore time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, createdBefore)
	ids, _ := args.Get(0).([]uuid.UUID)
	return ids, args.Error(1)
}

var _ ports.PollRepository = (*mockPollRepository)(nil)

type mockPollCache struct {
	mock.Mock
}

func (m *mockPollCache) GetPolls(ctx context.Context) ([]*domain.Poll, bool, error) {
	args := m.Called(ctx)
	p, _ := args.Get(0).([]*domain.Poll)
	return p, args.Bool(1), args.Error(2)
}

func (m *mockPollCache) Generation(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

func (m *mockPollCache) SetPolls(ctx context.Context, polls []*domain.Poll, generation int64) error {
	return m.Called(ctx, polls, generation).Error(0)
}

func (m *mockPollCache) Invalidate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// generationCache is an in-process PollCache with the same generation rule
// as the redis adapter.
type generationCache struct {
	mu         sync.Mutex
	polls      []*domain.Poll
	generation int64
}

func (c *generationCache) GetPolls(ctx context.Context) ([]*domain.Poll, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polls, c.polls != nil, nil
}

func (c *generationCache) Generation(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation, nil
}

func (c *generationCache) SetPolls(ctx context.Context, polls []*domain.Poll, generation int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation == c.generation {
		c.polls = polls
	}
	return nil
}

func (c *generationCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.polls = nil
	return nil
}

// listHookRepository runs afterList once, right after the first ListPolls
// read and before the caller sees the result.
type listHookRepository struct {
	ports.PollRepository
	once      sync.Once
	afterList func()
}

func (r *listHookRepository) ListPolls(ctx context.Context) []*domain.Poll {
	polls := r.PollRepository.ListPolls(ctx)
	r.once.Do(r.afterList)
	return polls
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.PollEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event domain.PollEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Events() []domain.PollEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.PollEvent(nil), p.events...)
}

type observation struct {
	operation string
	kind      string
}

type recordingRecorder struct {
	mu  sync.Mutex
	obs []observation
}

func (r *recordingRecorder) Observe(operation string, err error, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{operation: operation, kind: domain.KindName(err)})
}

func (r *recordingRecorder) Last() observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.obs[len(r.obs)-1]
}

type mockTokenVerifier struct {
	mock.Mock
}

func (m *mockTokenVerifier) Verify(ctx context.Context, token string, clientID string) (*ports.TokenPayload, error) {
	args := m.Called(ctx, token, clientID)
	p, _ := args.Get(0).(*ports.TokenPayload)
	return p, args.Error(1)
}
