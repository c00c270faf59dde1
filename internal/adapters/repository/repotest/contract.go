// Package repotest holds the behavior every poll repository adapter shares,
// so each adapter's tests can run the same suite against its own store.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/polling-app/internal/core/domain"
	"github.com/vncsmyrnk/polling-app/internal/core/ports"
)

// PollRepositoryContract runs the shared suite. newRepo must return an empty
// repository for every call.
func PollRepositoryContract(t *testing.T, newRepo func(t *testing.T) ports.PollRepository) {
	t.Run("CreatePollAndOptions", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := NewIdentity("Ana")

		poll, err := repo.CreatePoll(ctx, domain.NewPoll{Title: "Lunch Spot", CreatedBy: owner})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, poll.ID)
		assert.Equal(t, "Lunch Spot", poll.Title)
		assert.False(t, poll.CreatedAt.IsZero())

		options, err := repo.CreateOptions(ctx, poll.ID, []string{"Pizza", "Sushi", "Tacos"})
		require.NoError(t, err)
		require.Len(t, options, 3)
		for i, text := range []string{"Pizza", "Sushi", "Tacos"} {
			assert.Equal(t, text, options[i].Text)
			assert.Equal(t, poll.ID, options[i].PollID)
			assert.Equal(t, int64(0), options[i].Votes)
		}

		fetched, err := repo.GetPoll(ctx, poll.ID)
		require.NoError(t, err)
		assert.Equal(t, OptionTexts(fetched), []string{"Pizza", "Sushi", "Tacos"})
		assert.Equal(t, int64(0), fetched.TotalVotes)
		assert.Equal(t, owner.ID, fetched.CreatedBy.ID)
		assert.Equal(t, "Ana", fetched.CreatedBy.DisplayName)
		assert.True(t, fetched.IsActive)
	})

	t.Run("GetPollMissing", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.GetPoll(context.Background(), uuid.New())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("ListPollsNewestFirst", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := NewIdentity("Ana")

		var ids []uuid.UUID
		for i := 1; i <= 3; i++ {
			p := MustCreatePoll(t, repo, owner, fmt.Sprintf("Poll number %d", i), "A", "B")
			ids = append(ids, p.ID)
			// Distinct creation timestamps for stores with coarse clocks.
			time.Sleep(10 * time.Millisecond)
		}
		orphan, err := repo.CreatePoll(ctx, domain.NewPoll{Title: "Orphan poll", CreatedBy: owner})
		require.NoError(t, err)

		polls := repo.ListPolls(ctx)
		require.Len(t, polls, 4)

		assert.Equal(t, orphan.ID, polls[0].ID)
		assert.NotNil(t, polls[0].Options)
		assert.Empty(t, polls[0].Options)
		assert.Equal(t, int64(0), polls[0].TotalVotes)

		assert.Equal(t, []uuid.UUID{ids[2], ids[1], ids[0]}, []uuid.UUID{polls[1].ID, polls[2].ID, polls[3].ID})
		for _, p := range polls[1:] {
			assert.Equal(t, []string{"A", "B"}, OptionTexts(p))
		}
	})

	t.Run("ListPollsEmpty", func(t *testing.T) {
		repo := newRepo(t)

		polls := repo.ListPolls(context.Background())
		assert.NotNil(t, polls)
		assert.Empty(t, polls)
	})

	t.Run("IncrementVoteKeepsTotals", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		poll := MustCreatePoll(t, repo, NewIdentity("Ana"), "Lunch Spot", "Pizza", "Sushi")

		require.NoError(t, repo.IncrementVote(ctx, poll.ID, poll.Options[0].ID))
		require.NoError(t, repo.IncrementVote(ctx, poll.ID, poll.Options[0].ID))
		require.NoError(t, repo.IncrementVote(ctx, poll.ID, poll.Options[1].ID))

		fetched, err := repo.GetPoll(ctx, poll.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), fetched.Options[0].Votes)
		assert.Equal(t, int64(1), fetched.Options[1].Votes)
		assert.Equal(t, int64(3), fetched.TotalVotes)

		listed := repo.ListPolls(ctx)
		require.Len(t, listed, 1)
		assert.Equal(t, int64(3), listed[0].TotalVotes)
	})

	t.Run("IncrementVoteConcurrent", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		poll := MustCreatePoll(t, repo, NewIdentity("Ana"), "Lunch Spot", "Pizza", "Sushi")

		const voters = 40
		var wg sync.WaitGroup
		errs := make(chan error, voters)
		for i := 0; i < voters; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- repo.IncrementVote(ctx, poll.ID, poll.Options[1].ID)
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		fetched, err := repo.GetPoll(ctx, poll.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(voters), fetched.Options[1].Votes, "no increment may be lost")
		assert.Equal(t, int64(voters), fetched.TotalVotes)
	})

	t.Run("IncrementVoteScopedToPoll", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := NewIdentity("Ana")
		a := MustCreatePoll(t, repo, owner, "First poll", "A1", "A2")
		b := MustCreatePoll(t, repo, owner, "Second poll", "B1", "B2")

		err := repo.IncrementVote(ctx, b.ID, a.Options[0].ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		err = repo.IncrementVote(ctx, a.ID, uuid.New())
		assert.ErrorIs(t, err, domain.ErrNotFound)

		for _, id := range []uuid.UUID{a.ID, b.ID} {
			p, err := repo.GetPoll(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, int64(0), p.TotalVotes)
		}
	})

	t.Run("GetPollExpiry", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		expiry := time.Now().Add(24 * time.Hour).UTC()

		withExpiry, err := repo.CreatePoll(ctx, domain.NewPoll{Title: "Expiring poll", CreatedBy: NewIdentity("Ana"), ExpiresAt: &expiry})
		require.NoError(t, err)
		open, err := repo.CreatePoll(ctx, domain.NewPoll{Title: "Open ended poll", CreatedBy: NewIdentity("Ana")})
		require.NoError(t, err)

		got, err := repo.GetPollExpiry(ctx, withExpiry.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.WithinDuration(t, expiry, *got, time.Millisecond)

		got, err = repo.GetPollExpiry(ctx, open.ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		_, err = repo.GetPollExpiry(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("GetPollOwner", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := NewIdentity("Ana")
		poll := MustCreatePoll(t, repo, owner, "Lunch Spot", "Pizza", "Sushi")

		got, err := repo.GetPollOwner(ctx, poll.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, owner.ID, got.ID)

		got, err = repo.GetPollOwner(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("DeletePollRemovesOptions", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := NewIdentity("Ana")
		poll := MustCreatePoll(t, repo, owner, "Lunch Spot", "Pizza", "Sushi")
		other := MustCreatePoll(t, repo, owner, "Dinner Spot", "Ramen", "Curry")

		require.NoError(t, repo.DeletePoll(ctx, poll.ID))

		_, err := repo.GetPoll(ctx, poll.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		err = repo.IncrementVote(ctx, poll.ID, poll.Options[0].ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		owner2, err := repo.GetPollOwner(ctx, poll.ID)
		require.NoError(t, err)
		assert.Nil(t, owner2)

		polls := repo.ListPolls(ctx)
		require.Len(t, polls, 1)
		assert.Equal(t, other.ID, polls[0].ID)
		assert.Len(t, polls[0].Options, 2)
	})

	t.Run("ListPollsByOwner", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ana := NewIdentity("Ana")
		bruno := NewIdentity("Bruno")
		MustCreatePoll(t, repo, ana, "Ana first poll", "A", "B")
		MustCreatePoll(t, repo, bruno, "Bruno only poll", "A", "B")
		MustCreatePoll(t, repo, ana, "Ana second poll", "A", "B")

		polls, err := repo.ListPollsByOwner(ctx, ana.ID)
		require.NoError(t, err)
		require.Len(t, polls, 2)
		for _, p := range polls {
			assert.Equal(t, ana.ID, p.CreatedBy.ID)
			assert.Len(t, p.Options, 2)
		}

		polls, err = repo.ListPollsByOwner(ctx, uuid.New())
		require.NoError(t, err)
		assert.Empty(t, polls)
	})

	t.Run("ListOrphanPolls", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := NewIdentity("Ana")
		MustCreatePoll(t, repo, owner, "Complete poll", "A", "B")
		orphan, err := repo.CreatePoll(ctx, domain.NewPoll{Title: "Orphan poll", CreatedBy: owner})
		require.NoError(t, err)

		ids, err := repo.ListOrphanPolls(ctx, time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{orphan.ID}, ids)

		ids, err = repo.ListOrphanPolls(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Empty(t, ids, "polls younger than the cutoff are left alone")
	})
}

func NewIdentity(name string) domain.Identity {
	return domain.Identity{ID: uuid.New(), DisplayName: name}
}

// MustCreatePoll creates a poll and its options directly through the
// repository.
func MustCreatePoll(t *testing.T, repo ports.PollRepository, owner domain.Identity, title string, options ...string) *domain.Poll {
	t.Helper()
	ctx := context.Background()

	poll, err := repo.CreatePoll(ctx, domain.NewPoll{Title: title, CreatedBy: owner})
	require.NoError(t, err)

	poll.Options, err = repo.CreateOptions(ctx, poll.ID, options)
	require.NoError(t, err)
	return poll
}

func OptionTexts(p *domain.Poll) []string {
	texts := make([]string, 0, len(p.Options))
	for _, o := range p.Options {
		texts = append(texts, o.Text)
	}
	return texts
}
