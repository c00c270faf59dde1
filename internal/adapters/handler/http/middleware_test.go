package http_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	handler "github.com/vncsmyrnk/polling-app/internal/adapters/handler/http"
	"github.com/vncsmyrnk/polling-app/internal/core/domain"
)

type tokenParser map[string]*domain.Identity

func (p tokenParser) ParseAccessToken(token string) (*domain.Identity, error) {
	if identity, ok := p[token]; ok {
		return identity, nil
	}
	return nil, errors.New("invalid token")
}

func TestAuthenticate(t *testing.T) {
	alice := &domain.Identity{ID: uuid.New(), DisplayName: "Alice"}
	parser := tokenParser{"good": alice}

	var seen *domain.Identity
	h := handler.Authenticate(parser)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = handler.IdentityFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name    string
		prepare func(r *http.Request)
		want    *domain.Identity
	}{
		{
			name:    "bearer token",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") },
			want:    alice,
		},
		{
			name:    "cookie token",
			prepare: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "access_token", Value: "good"}) },
			want:    alice,
		},
		{
			name:    "invalid token passes through anonymously",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer forged") },
		},
		{
			name:    "no token",
			prepare: func(r *http.Request) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/polls", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Equal(t, tt.want, seen)
		})
	}
}
