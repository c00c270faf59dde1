package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Handlers groups everything the router mounts. Poll is required; the rest
// are optional and their routes are skipped when nil.
type Handlers struct {
	Poll    *PollHandler
	User    *UserHandler
	Auth    *AuthHandler
	Live    *LiveHandler
	Metrics http.Handler

	// Tokens authenticates requests before they reach the handlers.
	Tokens AccessTokenParser
}

func NewHandler(h Handlers, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if h.Tokens != nil {
		r.Use(Authenticate(h.Tokens))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/polls", func(r chi.Router) {
			r.Get("/", h.Poll.ListPolls)
			r.Post("/", h.Poll.CreatePoll)
			r.Get("/mine", h.Poll.ListMyPolls)
			r.Post("/vote", h.Poll.Vote)
			r.Get("/{id}", h.Poll.GetPoll)
			r.Delete("/{id}", h.Poll.DeletePoll)
		})

		if h.User != nil {
			r.Get("/me", h.User.GetMe)
		}
	})

	if h.Auth != nil {
		r.Route("/oauth", func(r chi.Router) {
			r.Post("/callback", h.Auth.GoogleCallback)
			r.Post("/refresh", h.Auth.Refresh)
			r.Post("/logout", h.Auth.Logout)
		})
	}

	if h.Live != nil {
		r.Get("/ws/polls/{id}", h.Live.Subscribe)
	}

	return r
}
