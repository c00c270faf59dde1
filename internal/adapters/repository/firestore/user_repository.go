package firestore

import (
	"context"
	"fmt"
	"time"

	gcfirestore "cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/polling-app/internal/core/domain"
	"github.com/vncsmyrnk/polling-app/internal/core/ports"
)

type userDoc struct {
	Email     string     `firestore:"email"`
	Name      string     `firestore:"name"`
	CreatedAt time.Time  `firestore:"createdAt"`
	DeletedAt *time.Time `firestore:"deletedAt"`
}

type UserRepository struct {
	client *gcfirestore.Client
}

func NewUserRepository(client *gcfirestore.Client) ports.UserRepository {
	return &UserRepository{client: client}
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	docs, err := r.client.Collection(usersCollection).Where("email", "==", email).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return decodeUser(docs[0])
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	doc, err := r.client.Collection(usersCollection).Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return decodeUser(doc)
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	user.ID = uuid.New()
	user.CreatedAt = time.Now().UTC()

	_, err := r.client.Collection(usersCollection).Doc(user.ID.String()).Create(ctx, userDoc{
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func decodeUser(doc *gcfirestore.DocumentSnapshot) (*domain.User, error) {
	var d userDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", doc.Ref.ID, err)
	}
	if d.DeletedAt != nil {
		return nil, nil
	}
	id, err := uuid.Parse(doc.Ref.ID)
	if err != nil {
		return nil, fmt.Errorf("malformed user id %q: %w", doc.Ref.ID, err)
	}
	return &domain.User{ID: id, Email: d.Email, Name: d.Name, CreatedAt: d.CreatedAt}, nil
}

type refreshTokenDoc struct {
	UserID    string    `firestore:"userId"`
	TokenHash string    `firestore:"tokenHash"`
	ExpiresAt time.Time `firestore:"expiresAt"`
	Revoked   bool      `firestore:"revoked"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type AuthRepository struct {
	client *gcfirestore.Client
}

func NewAuthRepository(client *gcfirestore.Client) ports.AuthRepository {
	return &AuthRepository{client: client}
}

func (r *AuthRepository) StoreRefreshToken(ctx context.Context, token *domain.RefreshToken) error {
	token.ID = uuid.New()
	token.CreatedAt = time.Now().UTC()

	_, err := r.client.Collection(refreshTokensCollection).Doc(token.ID.String()).Create(ctx, refreshTokenDoc{
		UserID:    token.UserID.String(),
		TokenHash: token.TokenHash,
		ExpiresAt: token.ExpiresAt,
		Revoked:   token.Revoked,
		CreatedAt: token.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

func (r *AuthRepository) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	docs, err := r.client.Collection(refreshTokensCollection).Where("tokenHash", "==", tokenHash).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	var d refreshTokenDoc
	if err := docs[0].DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to decode refresh token: %w", err)
	}
	id, err := uuid.Parse(docs[0].Ref.ID)
	if err != nil {
		return nil, fmt.Errorf("malformed refresh token id %q: %w", docs[0].Ref.ID, err)
	}
	userID, err := uuid.Parse(d.UserID)
	if err != nil {
		return nil, fmt.Errorf("malformed user id %q: %w", d.UserID, err)
	}
	return &domain.RefreshToken{
		ID:        id,
		UserID:    userID,
		TokenHash: d.TokenHash,
		ExpiresAt: d.ExpiresAt,
		Revoked:   d.Revoked,
		CreatedAt: d.CreatedAt,
	}, nil
}

func (r *AuthRepository) RevokeRefreshToken(ctx context.Context, id string) error {
	_, err := r.client.Collection(refreshTokensCollection).Doc(id).Update(ctx, []gcfirestore.Update{
		{Path: "revoked", Value: true},
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}
