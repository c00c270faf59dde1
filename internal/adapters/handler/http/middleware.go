package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vncsmyrnk/polling-app/internal/core/domain"
)

type contextKey string

const (
	IdentityKey contextKey = "identity"

	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"
)

// AccessTokenParser turns a signed access token into the identity it was
// issued to.
type AccessTokenParser interface {
	ParseAccessToken(token string) (*domain.Identity, error)
}

// Authenticate attaches the requester identity to the context when the
// request carries a valid access token, in the access_token cookie or as a
// Bearer token. Requests without one pass through anonymously; the service
// decides whether an operation needs a requester.
func Authenticate(parser AccessTokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := accessToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := parser.ParseAccessToken(token)
			if err != nil {
				slog.Debug("ignoring invalid access token", "path", r.URL.Path, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func accessToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(accessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// IdentityFrom returns the authenticated requester, or nil.
func IdentityFrom(ctx context.Context) *domain.Identity {
	identity, _ := ctx.Value(IdentityKey).(*domain.Identity)
	return identity
}
