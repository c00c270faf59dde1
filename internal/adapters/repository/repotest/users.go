package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/polling-app/internal/core/domain"
	"github.com/vncsmyrnk/polling-app/internal/core/ports"
)

// UserStores bundles the user and refresh token repositories of one store.
// Refresh tokens reference users, so both must share the same backend.
type UserStores struct {
	Users ports.UserRepository
	Auth  ports.AuthRepository
}

func UserRepositoryContract(t *testing.T, newStores func(t *testing.T) UserStores) {
	t.Run("CreateAndGet", func(t *testing.T) {
		repo := newStores(t).Users
		ctx := context.Background()

		user := &domain.User{Email: "ana@example.com", Name: "Ana"}
		require.NoError(t, repo.Create(ctx, user))
		assert.NotEqual(t, uuid.Nil, user.ID)
		assert.False(t, user.CreatedAt.IsZero())

		byEmail, err := repo.GetByEmail(ctx, "ana@example.com")
		require.NoError(t, err)
		require.NotNil(t, byEmail)
		assert.Equal(t, user.ID, byEmail.ID)
		assert.Equal(t, "Ana", byEmail.Name)

		byID, err := repo.GetByID(ctx, user.ID.String())
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, "ana@example.com", byID.Email)
	})

	t.Run("MissingUserIsNil", func(t *testing.T) {
		repo := newStores(t).Users
		ctx := context.Background()

		user, err := repo.GetByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.Nil(t, user)

		user, err = repo.GetByID(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, user)
	})
}

func AuthRepositoryContract(t *testing.T, newStores func(t *testing.T) UserStores) {
	t.Run("StoreLookupRevoke", func(t *testing.T) {
		stores := newStores(t)
		ctx := context.Background()

		user := &domain.User{Email: "ana@example.com", Name: "Ana"}
		require.NoError(t, stores.Users.Create(ctx, user))

		token := &domain.RefreshToken{
			UserID:    user.ID,
			TokenHash: "hash-1",
			ExpiresAt: time.Now().Add(time.Hour),
		}
		require.NoError(t, stores.Auth.StoreRefreshToken(ctx, token))
		assert.NotEqual(t, uuid.Nil, token.ID)

		got, err := stores.Auth.GetRefreshTokenByHash(ctx, "hash-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, token.ID, got.ID)
		assert.Equal(t, user.ID, got.UserID)
		assert.False(t, got.Revoked)

		require.NoError(t, stores.Auth.RevokeRefreshToken(ctx, token.ID.String()))

		got, err = stores.Auth.GetRefreshTokenByHash(ctx, "hash-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.Revoked)
	})

	t.Run("UnknownHashIsNil", func(t *testing.T) {
		stores := newStores(t)

		got, err := stores.Auth.GetRefreshTokenByHash(context.Background(), "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
