package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/polling-app/internal/adapters/repository/memory"
	"github.com/vncsmyrnk/polling-app/internal/core/domain"
	"github.com/vncsmyrnk/polling-app/internal/core/ports"
)

var (
	ana   = &domain.Identity{ID: uuid.New(), DisplayName: "Ana"}
	bruno = &domain.Identity{ID: uuid.New(), DisplayName: "Bruno"}
)

func newTestPollService(repo ports.PollRepository) *pollService {
	return NewPollService(repo, nil, nil, nil).(*pollService)
}

func createLunchSpot(t *testing.T, svc ports.PollService) *domain.Poll {
	t.Helper()
	poll, err := svc.Create(context.Background(), ana, ports.CreatePollInput{
		Title:   "Lunch Spot",
		Options: []string{"Pizza", "Sushi", "Tacos"},
	})
	require.NoError(t, err)
	return poll
}

func TestCreatePoll(t *testing.T) {
	svc := newTestPollService(memory.NewPollRepository())

	poll, err := svc.Create(context.Background(), ana, ports.CreatePollInput{
		Title:       "  Lunch Spot  ",
		Description: " Where do we eat? ",
		Options:     []string{" Pizza ", "", "   ", "Sushi", "Tacos"},
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, poll.ID)
	assert.Equal(t, "Lunch Spot", poll.Title)
	assert.Equal(t, "Where do we eat?", poll.Description)
	assert.Equal(t, ana.ID, poll.CreatedBy.ID)
	assert.Equal(t, int64(0), poll.TotalVotes)
	assert.True(t, poll.IsActive)
	require.Len(t, poll.Options, 3)
	assert.Equal(t, "Pizza", poll.Options[0].Text)
	assert.Equal(t, "Tacos", poll.Options[2].Text)
	for _, o := range poll.Options {
		assert.Equal(t, poll.ID, o.PollID)
		assert.Equal(t, int64(0), o.Votes)
	}
}

func TestCreatePollValidation(t *testing.T) {
	past := time.Now().Add(-time.Minute)

	tests := []struct {
		name      string
		requester *domain.Identity
		input     ports.CreatePollInput
		wantKind  error
		wantErr   error
	}{
		{
			name:     "anonymous requester",
			input:    ports.CreatePollInput{Title: "Lunch Spot", Options: []string{"A", "B"}},
			wantKind: domain.ErrUnauthenticated,
			wantErr:  domain.ErrLoginRequired,
		},
		{
			name:      "blank title",
			requester: ana,
			input:     ports.CreatePollInput{Title: "   ", Options: []string{"A", "B"}},
			wantKind:  domain.ErrValidation,
			wantErr:   domain.ErrTitleRequired,
		},
		{
			name:      "title shorter than five characters after trimming",
			requester: ana,
			input:     ports.CreatePollInput{Title: "  Hi!  ", Options: []string{"A", "B"}},
			wantKind:  domain.ErrValidation,
			wantErr:   domain.ErrTitleTooShort,
		},
		{
			name:      "title length counts characters not bytes",
			requester: ana,
			input:     ports.CreatePollInput{Title: "Café", Options: []string{"A", "B"}},
			wantKind:  domain.ErrValidation,
			wantErr:   domain.ErrTitleTooShort,
		},
		{
			name:      "one option",
			requester: ana,
			input:     ports.CreatePollInput{Title: "Lunch Spot", Options: []string{"Pizza"}},
			wantKind:  domain.ErrValidation,
			wantErr:   domain.ErrNotEnoughOptions,
		},
		{
			name:      "blank options do not count",
			requester: ana,
			input:     ports.CreatePollInput{Title: "Lunch Spot", Options: []string{"Pizza", " ", ""}},
			wantKind:  domain.ErrValidation,
			wantErr:   domain.ErrNotEnoughOptions,
		},
		{
			name:      "expiry in the past",
			requester: ana,
			input:     ports.CreatePollInput{Title: "Lunch Spot", Options: []string{"A", "B"}, ExpiresAt: &past},
			wantKind:  domain.ErrValidation,
			wantErr:   domain.ErrExpiryInPast,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockPollRepository{}
			svc := newTestPollService(repo)

			poll, err := svc.Create(context.Background(), tt.requester, tt.input)
			assert.Nil(t, poll)
			assert.ErrorIs(t, err, tt.wantKind)
			assert.ErrorIs(t, err, tt.wantErr)
			repo.AssertNotCalled(t, "CreatePoll", mock.Anything, mock.Anything)
			repo.AssertNotCalled(t, "CreateOptions", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCreatePollAcceptsFiveCharacterTitle(t *testing.T) {
	svc := newTestPollService(memory.NewPollRepository())

	poll, err := svc.Create(context.Background(), ana, ports.CreatePollInput{Title: "Cafés", Options: []string{"A", "B"}})
	require.NoError(t, err)
	assert.Equal(t, "Cafés", poll.Title)
}

func TestCreatePollStoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	repo := &mockPollRepository{}
	repo.On("CreatePoll", mock.Anything, mock.Anything).Return(nil, boom)
	svc := newTestPollService(repo)

	_, err := svc.Create(context.Background(), ana, ports.CreatePollInput{Title: "Lunch Spot", Options: []string{"A", "B"}})
	assert.ErrorIs(t, err, domain.ErrStore)
	assert.ErrorIs(t, err, boom)
	repo.AssertNotCalled(t, "CreateOptions", mock.Anything, mock.Anything, mock.Anything)
}

// optionlessRepository fails every option insert, leaving orphan polls.
type optionlessRepository struct {
	*memory.PollRepository
}

func (r optionlessRepository) CreateOptions(ctx context.Context, pollID uuid.UUID, texts []string) ([]domain.PollOption, error) {
	return nil, domain.StoreError("create poll options", errors.New("disk full"))
}

func TestCreatePollOptionFailureLeavesOrphan(t *testing.T) {
	store := memory.NewPollRepository()
	svc := newTestPollService(optionlessRepository{store})

	poll, err := svc.Create(context.Background(), ana, ports.CreatePollInput{Title: "Lunch Spot", Options: []string{"A", "B"}})
	assert.Nil(t, poll)
	assert.ErrorIs(t, err, domain.ErrStore)

	polls := store.ListPolls(context.Background())
	require.Len(t, polls, 1, "no compensating delete")
	assert.Empty(t, polls[0].Options)
	assert.Equal(t, int64(0), polls[0].TotalVotes)

	sweep := NewSweepService(store, nil).(*sweepService)
	sweep.now = func() time.Time { return time.Now().Add(time.Hour) }

	report, err := sweep.SweepOrphans(context.Background(), ports.SweepInput{})
	require.NoError(t, err)
	assert.Equal(t, ports.SweepReport{Found: 1, Deleted: 1}, report)
	assert.Empty(t, store.ListPolls(context.Background()))
}

func TestVoteLunchSpot(t *testing.T) {
	svc := newTestPollService(memory.NewPollRepository())
	ctx := context.Background()
	poll := createLunchSpot(t, svc)
	pizza, sushi := poll.Options[0].ID.String(), poll.Options[1].ID.String()

	require.NoError(t, svc.Vote(ctx, ana, ports.VoteInput{PollID: poll.ID.String(), OptionID: pizza}))
	require.NoError(t, svc.Vote(ctx, bruno, ports.VoteInput{PollID: poll.ID.String(), OptionID: pizza}))
	require.NoError(t, svc.Vote(ctx, bruno, ports.VoteInput{PollID: poll.ID.String(), OptionID: sushi}))

	polls := svc.ListPolls(ctx)
	require.Len(t, polls, 1)
	got := polls[0]
	assert.Equal(t, int64(3), got.TotalVotes)
	assert.Equal(t, int64(2), got.Options[0].Votes)
	assert.Equal(t, int64(1), got.Options[1].Votes)
	assert.Equal(t, int64(0), got.Options[2].Votes)
}

func TestVoteTwiceCountsTwice(t *testing.T) {
	svc := newTestPollService(memory.NewPollRepository())
	ctx := context.Background()
	poll := createLunchSpot(t, svc)
	input := ports.VoteInput{PollID: poll.ID.String(), OptionID: poll.Options[0].ID.String()}

	require.NoError(t, svc.Vote(ctx, ana, input))
	require.NoError(t, svc.Vote(ctx, ana, input))

	got, err := svc.GetPoll(ctx, poll.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Options[0].Votes)
	assert.Equal(t, int64(2), got.TotalVotes)
}

func TestVoteConcurrent(t *testing.T) {
	svc := newTestPollService(memory.NewPollRepository())
	ctx := context.Background()
	poll := createLunchSpot(t, svc)
	input := ports.VoteInput{PollID: poll.ID.String(), OptionID: poll.Options[1].ID.String()}

	const voters = 100
	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.Vote(ctx, bruno, input))
		}()
	}
	wg.Wait()

	got, err := svc.GetPoll(ctx, poll.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(voters), got.Options[1].Votes)
	assert.Equal(t, int64(voters), got.TotalVotes)
}

func TestVoteOnClosedPoll(t *testing.T) {
	svc := newTestPollService(memory.NewPollRepository())
	ctx := context.Background()
	base := time.Now()
	svc.now = func() time.Time { return base }

	expiry := base.Add(time.Hour)
	poll, err := svc.Create(ctx, ana, ports.CreatePollInput{Title: "Lunch Spot", Options: []string{"A", "B"}, ExpiresAt: &expiry})
	require.NoError(t, err)
	input := ports.VoteInput{PollID: poll.ID.String(), OptionID: poll.Options[0].ID.String()}

	t.Run("expiry equal to now is still open", func(t *testing.T) {
		svc.now = func() time.Time { return expiry }
		require.NoError(t, svc.Vote(ctx, bruno, input))
	})

	t.Run("after expiry", func(t *testing.T) {
		svc.now = func() time.Time { return expiry.Add(time.Nanosecond) }

		err := svc.Vote(ctx, bruno, input)
		assert.ErrorIs(t, err, domain.ErrPollClosed)
		assert.Equal(t, "This poll has closed.", domain.UserMessage(err))

		got, err := svc.GetPoll(ctx, poll.ID.String())
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.TotalVotes, "closed poll counts stay unchanged")
		assert.False(t, got.IsActive)
	})

	t.Run("closed polls are still listed", func(t *testing.T) {
		polls := svc.ListPolls(ctx)
		require.Len(t, polls, 1)
		assert.False(t, polls[0].IsActive)
	})
}

func TestVoteErrors(t *testing.T) {
	svc := newTestPollService(memory.NewPollRepository())
	ctx := context.Background()
	poll := createLunchSpot(t, svc)
	other := createLunchSpot(t, svc)
	pollID, optionID := poll.ID.String(), poll.Options[0].ID.String()

	tests := []struct {
		name      string
		requester *domain.Identity
		input     ports.VoteInput
		wantKind  error
	}{
		{"anonymous requester", nil, ports.VoteInput{PollID: pollID, OptionID: optionID}, domain.ErrUnauthenticated},
		{"missing poll id", ana, ports.VoteInput{OptionID: optionID}, domain.ErrValidation},
		{"missing option id", ana, ports.VoteInput{PollID: pollID}, domain.ErrValidation},
		{"malformed poll id", ana, ports.VoteInput{PollID: "poll-1", OptionID: optionID}, domain.ErrValidation},
		{"malformed option id", ana, ports.VoteInput{PollID: pollID, OptionID: "nope"}, domain.ErrValidation},
		{"unknown poll", ana, ports.VoteInput{PollID: uuid.NewString(), OptionID: optionID}, domain.ErrNotFound},
		{"unknown option", ana, ports.VoteInput{PollID: pollID, OptionID: uuid.NewString()}, domain.ErrNotFound},
		{"option of another poll", ana, ports.VoteInput{PollID: pollID, OptionID: other.Options[0].ID.String()}, domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Vote(ctx, tt.requester, tt.input)
			assert.ErrorIs(t, err, tt.wantKind)
		})
	}

	for _, id := range []uuid.UUID{poll.ID, other.ID} {
		got, err := svc.GetPoll(ctx, id.String())
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.TotalVotes)
	}
}

func TestVoteValidationPrecedesStore(t *testing.T) {
	repo := &mockPollRepository{}
	svc := newTestPollService(repo)

	err := svc.Vote(context.Background(), ana, ports.VoteInput{PollID: "x", OptionID: "y"})
	assert.ErrorIs(t, err, domain.ErrInvalidPollID)
	repo.AssertNotCalled(t, "GetPollExpiry", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "IncrementVote", mock.Anything, mock.Anything, mock.Anything)
}

func TestVoteIncrementStoreFailure(t *testing.T) {
	boom := errors.New("deadlock detected")
	pollID, optionID := uuid.New(), uuid.New()

	repo := &mockPollRepository{}
	repo.On("GetPollExpiry", mock.Anything, pollID).Return(nil, nil)
	repo.On("IncrementVote", mock.Anything, pollID, optionID).Return(boom)
	svc := newTestPollService(repo)

	err := svc.Vote(context.Background(), ana, ports.VoteInput{PollID: pollID.String(), OptionID: optionID.String()})
	assert.ErrorIs(t, err, domain.ErrStore)
	assert.ErrorIs(t, err, boom)
	repo.AssertExpectations(t)
}

func TestDeletePoll(t *testing.T) {
	ctx := context.Background()

	t.Run("owner deletes", func(t *testing.T) {
		svc := newTestPollService(memory.NewPollRepository())
		poll := createLunchSpot(t, svc)

		require.NoError(t, svc.Delete(ctx, ana, poll.ID.String()))

		_, err := svc.GetPoll(ctx, poll.ID.String())
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Empty(t, svc.ListPolls(ctx))

		err = svc.Vote(ctx, ana, ports.VoteInput{PollID: poll.ID.String(), OptionID: poll.Options[0].ID.String()})
		assert.ErrorIs(t, err, domain.ErrNotFound, "deleted polls accept no votes")

		err = svc.Delete(ctx, ana, poll.ID.String())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		svc := newTestPollService(memory.NewPollRepository())
		poll := createLunchSpot(t, svc)

		err := svc.Delete(ctx, bruno, poll.ID.String())
		assert.ErrorIs(t, err, domain.ErrForbidden)
		assert.Equal(t, "You are not authorized to delete this poll.", domain.UserMessage(err))

		got, err := svc.GetPoll(ctx, poll.ID.String())
		require.NoError(t, err)
		assert.Equal(t, poll.ID, got.ID)
	})

	t.Run("errors", func(t *testing.T) {
		repo := &mockPollRepository{}
		svc := newTestPollService(repo)
		missing := uuid.New()
		repo.On("GetPollOwner", mock.Anything, missing).Return(nil, nil)

		assert.ErrorIs(t, svc.Delete(ctx, nil, missing.String()), domain.ErrUnauthenticated)
		assert.ErrorIs(t, svc.Delete(ctx, ana, ""), domain.ErrValidation)
		assert.ErrorIs(t, svc.Delete(ctx, ana, "not-a-uuid"), domain.ErrValidation)
		assert.ErrorIs(t, svc.Delete(ctx, ana, missing.String()), domain.ErrNotFound)
		repo.AssertNotCalled(t, "DeletePoll", mock.Anything, mock.Anything)
	})

	t.Run("store failure", func(t *testing.T) {
		repo := &mockPollRepository{}
		svc := newTestPollService(repo)
		id := uuid.New()
		repo.On("GetPollOwner", mock.Anything, id).Return(ana, nil)
		repo.On("DeletePoll", mock.Anything, id).Return(errors.New("timeout"))

		assert.ErrorIs(t, svc.Delete(ctx, ana, id.String()), domain.ErrStore)
	})
}

func TestGetPoll(t *testing.T) {
	svc := newTestPollService(memory.NewPollRepository())
	ctx := context.Background()
	poll := createLunchSpot(t, svc)

	got, err := svc.GetPoll(ctx, poll.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Lunch Spot", got.Title)
	assert.Equal(t, "Ana", got.CreatedBy.DisplayName)

	_, err = svc.GetPoll(ctx, "bad")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.GetPoll(ctx, uuid.Nil.String())
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.GetPoll(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListMyPolls(t *testing.T) {
	svc := newTestPollService(memory.NewPollRepository())
	ctx := context.Background()
	createLunchSpot(t, svc)
	_, err := svc.Create(ctx, bruno, ports.CreatePollInput{Title: "Movie night", Options: []string{"Drama", "Comedy"}})
	require.NoError(t, err)

	mine, err := svc.ListMyPolls(ctx, bruno)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Movie night", mine[0].Title)

	_, err = svc.ListMyPolls(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestListPollsEmptyAndDegraded(t *testing.T) {
	repo := &mockPollRepository{}
	repo.On("ListPolls", mock.Anything).Return([]*domain.Poll{})
	svc := newTestPollService(repo)

	polls := svc.ListPolls(context.Background())
	assert.NotNil(t, polls)
	assert.Empty(t, polls)
}

func TestListPollsUsesCache(t *testing.T) {
	ctx := context.Background()
	cached := []*domain.Poll{{
		ID:      uuid.New(),
		Title:   "Cached poll",
		Options: []domain.PollOption{{Votes: 2}, {Votes: 3}},
	}}

	t.Run("hit skips the store and recomputes totals", func(t *testing.T) {
		repo := &mockPollRepository{}
		cache := &mockPollCache{}
		cache.On("GetPolls", mock.Anything).Return(cached, true, nil)
		svc := NewPollService(repo, cache, nil, nil)

		polls := svc.ListPolls(ctx)
		require.Len(t, polls, 1)
		assert.Equal(t, int64(5), polls[0].TotalVotes)
		assert.Equal(t, domain.AnonymousName, polls[0].CreatedBy.DisplayName)
		repo.AssertNotCalled(t, "ListPolls", mock.Anything)
	})

	t.Run("miss fills the cache", func(t *testing.T) {
		repo := &mockPollRepository{}
		repo.On("ListPolls", mock.Anything).Return(cached)
		cache := &mockPollCache{}
		cache.On("GetPolls", mock.Anything).Return(nil, false, nil)
		cache.On("Generation", mock.Anything).Return(int64(4), nil)
		cache.On("SetPolls", mock.Anything, cached, int64(4)).Return(nil)
		svc := NewPollService(repo, cache, nil, nil)

		assert.Len(t, svc.ListPolls(ctx), 1)
		cache.AssertExpectations(t)
	})

	t.Run("empty listing is not cached", func(t *testing.T) {
		repo := &mockPollRepository{}
		repo.On("ListPolls", mock.Anything).Return([]*domain.Poll{})
		cache := &mockPollCache{}
		cache.On("GetPolls", mock.Anything).Return(nil, false, nil)
		cache.On("Generation", mock.Anything).Return(int64(0), nil)
		svc := NewPollService(repo, cache, nil, nil)

		assert.Empty(t, svc.ListPolls(ctx))
		cache.AssertNotCalled(t, "SetPolls", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("cache error falls back to the store", func(t *testing.T) {
		repo := &mockPollRepository{}
		repo.On("ListPolls", mock.Anything).Return(cached)
		cache := &mockPollCache{}
		cache.On("GetPolls", mock.Anything).Return(nil, false, errors.New("redis down"))
		cache.On("Generation", mock.Anything).Return(int64(0), errors.New("redis down"))
		svc := NewPollService(repo, cache, nil, nil)

		assert.Len(t, svc.ListPolls(ctx), 1)
		repo.AssertExpectations(t)
		cache.AssertNotCalled(t, "SetPolls", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestListPollsCacheFillLosesToConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	repo := &listHookRepository{PollRepository: memory.NewPollRepository()}
	cache := &generationCache{}
	svc := NewPollService(repo, cache, nil, nil)

	poll := createLunchSpot(t, svc)

	// The vote commits after the listing was read from the store but
	// before that listing is written to the cache.
	repo.afterList = func() {
		err := svc.Vote(ctx, bruno, ports.VoteInput{PollID: poll.ID.String(), OptionID: poll.Options[0].ID.String()})
		require.NoError(t, err)
	}

	first := svc.ListPolls(ctx)
	require.Len(t, first, 1)
	assert.Equal(t, int64(0), first[0].TotalVotes, "the racing read saw the store before the vote")

	second := svc.ListPolls(ctx)
	require.Len(t, second, 1)
	assert.Equal(t, int64(1), second[0].TotalVotes)
	assert.Equal(t, int64(1), second[0].Options[0].Votes)

	// The second read refilled the cache with the fresh listing.
	cached, ok, err := cache.GetPolls(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), cached[0].TotalVotes)
}

func TestListPollsCacheFillLosesToConcurrentDelete(t *testing.T) {
	ctx := context.Background()
	repo := &listHookRepository{PollRepository: memory.NewPollRepository()}
	cache := &generationCache{}
	svc := NewPollService(repo, cache, nil, nil)

	poll := createLunchSpot(t, svc)
	repo.afterList = func() {
		require.NoError(t, svc.Delete(ctx, ana, poll.ID.String()))
	}

	require.Len(t, svc.ListPolls(ctx), 1)
	assert.Empty(t, svc.ListPolls(ctx))
}

func TestWritesInvalidateCacheAndPublish(t *testing.T) {
	ctx := context.Background()
	cache := &mockPollCache{}
	cache.On("Invalidate", mock.Anything).Return(nil)
	events := &recordingPublisher{}
	svc := NewPollService(memory.NewPollRepository(), cache, events, nil)

	poll := createLunchSpot(t, svc)
	optionID := poll.Options[0].ID
	require.NoError(t, svc.Vote(ctx, bruno, ports.VoteInput{PollID: poll.ID.String(), OptionID: optionID.String()}))
	require.NoError(t, svc.Delete(ctx, ana, poll.ID.String()))

	cache.AssertNumberOfCalls(t, "Invalidate", 3)

	got := events.Events()
	require.Len(t, got, 3)
	assert.Equal(t, domain.EventPollCreated, got[0].Type)
	assert.Equal(t, ana.ID, got[0].ActorID)

	assert.Equal(t, domain.EventVoteCast, got[1].Type)
	assert.Equal(t, bruno.ID, got[1].ActorID)
	require.NotNil(t, got[1].OptionID)
	assert.Equal(t, optionID, *got[1].OptionID)

	assert.Equal(t, domain.EventPollDeleted, got[2].Type)
	for _, e := range got {
		assert.Equal(t, poll.ID, e.PollID)
		assert.False(t, e.OccurredAt.IsZero())
	}
}

func TestFailedWritesDoNotPublish(t *testing.T) {
	events := &recordingPublisher{}
	svc := NewPollService(memory.NewPollRepository(), nil, events, nil)

	err := svc.Vote(context.Background(), ana, ports.VoteInput{PollID: uuid.NewString(), OptionID: uuid.NewString()})
	require.Error(t, err)
	assert.Empty(t, events.Events())
}

func TestPublishFailureDoesNotFailVote(t *testing.T) {
	ctx := context.Background()
	cache := &mockPollCache{}
	cache.On("Invalidate", mock.Anything).Return(errors.New("redis down"))
	events := &recordingPublisher{err: errors.New("broker down")}
	svc := NewPollService(memory.NewPollRepository(), cache, events, nil)

	poll := createLunchSpot(t, svc)
	err := svc.Vote(ctx, ana, ports.VoteInput{PollID: poll.ID.String(), OptionID: poll.Options[0].ID.String()})
	assert.NoError(t, err)
}

func TestOperationsAreRecorded(t *testing.T) {
	recorder := &recordingRecorder{}
	svc := NewPollService(memory.NewPollRepository(), nil, nil, recorder)
	ctx := context.Background()

	poll := createLunchSpot(t, svc)
	assert.Equal(t, observation{"create", "ok"}, recorder.Last())

	_ = svc.Delete(ctx, bruno, poll.ID.String())
	assert.Equal(t, observation{"delete", "forbidden"}, recorder.Last())

	_ = svc.Vote(ctx, nil, ports.VoteInput{})
	assert.Equal(t, observation{"vote", "unauthenticated"}, recorder.Last())

	svc.ListPolls(ctx)
	assert.Equal(t, observation{"list", "ok"}, recorder.Last())
}
