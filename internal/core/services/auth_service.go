package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/polling-app/internal/core/domain"
	"github.com/vncsmyrnk/polling-app/internal/core/ports"
)

const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
)

var (
	errRefreshUnknown = fmt.Errorf("%w: refresh token not found", domain.ErrUnauthenticated)
	errRefreshRevoked = fmt.Errorf("%w: refresh token revoked", domain.ErrUnauthenticated)
	errRefreshExpired = fmt.Errorf("%w: refresh token expired", domain.ErrUnauthenticated)
)

// accessClaims is the payload of a signed access token. The subject carries
// the user id.
type accessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// AuthService exchanges Google ID tokens for sessions: a short-lived HS256
// access token and an opaque refresh token stored only as its SHA-256 digest.
type AuthService struct {
	users    ports.UserRepository
	sessions ports.AuthRepository
	google   ports.TokenVerifier
	audience string
	secret   []byte
	now      func() time.Time
}

func NewAuthService(users ports.UserRepository, sessions ports.AuthRepository, google ports.TokenVerifier, jwtSecret, googleClientID string) *AuthService {
	if jwtSecret == "" {
		slog.Warn("JWT secret not set; access tokens are signed with an empty key")
	}

	return &AuthService{
		users:    users,
		sessions: sessions,
		google:   google,
		audience: googleClientID,
		secret:   []byte(jwtSecret),
		now:      time.Now,
	}
}

// LoginWithGoogle verifies the Google credential, registers the account on
// first sight and opens a new session.
func (s *AuthService) LoginWithGoogle(ctx context.Context, googleToken string) (access, refresh string, err error) {
	payload, err := s.google.Verify(ctx, googleToken, s.audience)
	if err != nil {
		return "", "", fmt.Errorf("invalid google token: %w", err)
	}

	user, err := s.findOrRegister(ctx, payload.Email, payload.Name)
	if err != nil {
		return "", "", err
	}

	return s.openSession(ctx, user)
}

// RefreshAccessToken signs a new access token for a live refresh token. The
// refresh token itself is not rotated.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (access, refresh string, err error) {
	stored, err := s.lookupRefreshToken(ctx, refreshToken)
	if err != nil {
		return "", "", err
	}
	switch {
	case stored == nil:
		return "", "", errRefreshUnknown
	case stored.Revoked:
		return "", "", errRefreshRevoked
	case !stored.ExpiresAt.After(s.now()):
		return "", "", errRefreshExpired
	}

	user, err := s.users.GetByID(ctx, stored.UserID.String())
	if err != nil {
		return "", "", fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return "", "", fmt.Errorf("%w: user %s no longer exists", domain.ErrUnauthenticated, stored.UserID)
	}

	access, err = s.signAccessToken(user)
	if err != nil {
		return "", "", err
	}
	return access, refreshToken, nil
}

// Logout revokes the refresh token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	stored, err := s.lookupRefreshToken(ctx, refreshToken)
	if err != nil || stored == nil {
		return err
	}
	return s.sessions.RevokeRefreshToken(ctx, stored.ID.String())
}

// ParseAccessToken validates a signed access token and returns the identity
// it was issued to.
func (s *AuthService) ParseAccessToken(token string) (*domain.Identity, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: invalid access token: %v", domain.ErrUnauthenticated, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed subject", domain.ErrUnauthenticated)
	}
	return &domain.Identity{ID: userID, DisplayName: claims.Name}, nil
}

func (s *AuthService) findOrRegister(ctx context.Context, email, name string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user != nil {
		return user, nil
	}

	user = &domain.User{Email: email, Name: name}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	slog.Info("user registered", "user_id", user.ID)
	return user, nil
}

func (s *AuthService) openSession(ctx context.Context, user *domain.User) (access, refresh string, err error) {
	access, err = s.signAccessToken(user)
	if err != nil {
		return "", "", err
	}

	refresh, err = newRefreshToken()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	err = s.sessions.StoreRefreshToken(ctx, &domain.RefreshToken{
		UserID:    user.ID,
		TokenHash: tokenDigest(refresh),
		ExpiresAt: s.now().Add(RefreshTokenTTL),
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to store refresh token: %w", err)
	}
	return access, refresh, nil
}

func (s *AuthService) lookupRefreshToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	if token == "" {
		return nil, nil
	}
	stored, err := s.sessions.GetRefreshTokenByHash(ctx, tokenDigest(token))
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	return stored, nil
}

func (s *AuthService) signAccessToken(user *domain.User) (string, error) {
	now := s.now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL)),
			ID:        uuid.NewString(),
		},
		Email: user.Email,
		Name:  user.Name,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

func newRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// tokenDigest is the form refresh tokens are stored and looked up in.
func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
