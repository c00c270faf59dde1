package redis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/vncsmyrnk/polling-app/internal/core/domain"
)

func setupRedis(t *testing.T, ttl time.Duration) *PollCache {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	cache, err := Connect(ctx, url, ttl)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestPollCache(t *testing.T) {
	cache := setupRedis(t, time.Minute)
	ctx := context.Background()

	_, ok, err := cache.GetPolls(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "empty cache is a miss")

	pollID := uuid.New()
	polls := []*domain.Poll{{
		ID:    pollID,
		Title: "Lunch Spot",
		Options: []domain.PollOption{
			{ID: uuid.New(), PollID: pollID, Text: "Pizza", Votes: 2},
			{ID: uuid.New(), PollID: pollID, Text: "Sushi", Votes: 1},
		},
		TotalVotes: 3,
		CreatedBy:  domain.Identity{ID: uuid.New(), DisplayName: "Ana"},
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
		IsActive:   true,
	}}
	generation, err := cache.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, cache.SetPolls(ctx, polls, generation))

	got, ok, err := cache.GetPolls(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, polls[0].ID, got[0].ID)
	assert.Equal(t, int64(3), got[0].TotalVotes)
	assert.Equal(t, []string{"Pizza", "Sushi"}, []string{got[0].Options[0].Text, got[0].Options[1].Text})

	require.NoError(t, cache.Invalidate(ctx))
	_, ok, err = cache.GetPolls(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPollCacheDropsListingReadBeforeInvalidate(t *testing.T) {
	cache := setupRedis(t, time.Minute)
	ctx := context.Background()

	before, err := cache.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), before)

	// A write lands after the listing was loaded but before it is cached.
	require.NoError(t, cache.Invalidate(ctx))

	stale := []*domain.Poll{{ID: uuid.New(), Title: "Lunch Spot", TotalVotes: 0}}
	require.NoError(t, cache.SetPolls(ctx, stale, before))

	_, ok, err := cache.GetPolls(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "a listing older than the last invalidation must not be cached")

	after, err := cache.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	fresh := []*domain.Poll{{ID: stale[0].ID, Title: "Lunch Spot", TotalVotes: 1}}
	require.NoError(t, cache.SetPolls(ctx, fresh, after))

	got, ok, err := cache.GetPolls(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), got[0].TotalVotes)
}

func TestPollCacheExpires(t *testing.T) {
	cache := setupRedis(t, time.Second)
	ctx := context.Background()

	require.NoError(t, cache.SetPolls(ctx, []*domain.Poll{{ID: uuid.New(), Title: "Short lived"}}, 0))

	assert.Eventually(t, func() bool {
		_, ok, err := cache.GetPolls(ctx)
		return err == nil && !ok
	}, 5*time.Second, 100*time.Millisecond)
}

func TestConnectRejectsBadURL(t *testing.T) {
	_, err := Connect(context.Background(), "not-a-redis-url", time.Second)
	assert.Error(t, err)
}

func TestNewPollCacheDefaultsTTL(t *testing.T) {
	cache := NewPollCache(nil, 0)
	assert.Equal(t, DefaultTTL, cache.ttl)
}
