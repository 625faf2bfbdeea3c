package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/FACorreiaa/go-eat-today/internal/api/auth"
	"github.com/FACorreiaa/go-eat-today/internal/api/bookmark"
	"github.com/FACorreiaa/go-eat-today/internal/api/poi"
	"github.com/FACorreiaa/go-eat-today/internal/api/recommend"
	"github.com/FACorreiaa/go-eat-today/internal/api/session"
)

// Config contains dependencies needed for the router setup
type Config struct {
	AuthHandler      *auth.HandlerImpl
	POIHandler       *poi.HandlerImpl
	RecommendHandler *recommend.HandlerImpl
	BookmarkHandler  *bookmark.HandlerImpl
	SessionHandler   *session.HandlerImpl

	// AuthenticateMiddleware rejects anonymous requests.
	AuthenticateMiddleware func(http.Handler) http.Handler
	// OptionalAuthMiddleware attaches the user when a token is present.
	OptionalAuthMiddleware func(http.Handler) http.Handler

	AllowedOrigins []string
	RequestTimeout time.Duration
}

// SetupRouter initializes the API routes. Server-wide middleware (request
// id, logging, recovery) is applied by the caller before mounting it.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:8081", "http://localhost:19006", "http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", session.HeaderSessionID},
		ExposedHeaders:   []string{session.HeaderSessionID},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Long-lived streams are exempt from the request timeout.
		r.With(cfg.AuthenticateMiddleware).Get("/bookmarks/stream", cfg.BookmarkHandler.StreamBookmarks)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))

			r.Post("/auth/register", cfg.AuthHandler.Register)
			r.Post("/auth/login", cfg.AuthHandler.Login)
			r.Post("/auth/refresh", cfg.AuthHandler.RefreshToken)
			r.Post("/auth/logout", cfg.AuthHandler.Logout)

			r.Get("/places/nearby", cfg.POIHandler.NearbyPlaces)
			r.Get("/places/search", cfg.POIHandler.SearchPlaces)
			r.Post("/recommendations", cfg.RecommendHandler.Recommend)

			r.Group(func(r chi.Router) {
				r.Use(cfg.AuthenticateMiddleware)
				r.Get("/auth/me", cfg.AuthHandler.Me)
				r.Get("/bookmarks", cfg.BookmarkHandler.ListBookmarks)
				r.Post("/bookmarks", cfg.BookmarkHandler.AddBookmark)
				r.Delete("/bookmarks", cfg.BookmarkHandler.ClearBookmarks)
				r.Get("/bookmarks/recommend", cfg.BookmarkHandler.RecommendBookmark)
				r.Get("/bookmarks/nearby", cfg.BookmarkHandler.NearbyBookmarks)
				r.Delete("/bookmarks/{placeID}", cfg.BookmarkHandler.RemoveBookmark)
				r.Put("/bookmarks/{placeID}/like", cfg.BookmarkHandler.SetLiked)
			})

			r.Route("/session", func(r chi.Router) {
				r.Use(cfg.OptionalAuthMiddleware)
				r.Get("/", cfg.SessionHandler.GetSession)
				r.Post("/locate", cfg.SessionHandler.Locate)
				r.Post("/center", cfg.SessionHandler.SelectCenter)
				r.Put("/settings", cfg.SessionHandler.UpdateSettings)
				r.Put("/mode", cfg.SessionHandler.SetMode)
				r.Post("/spin", cfg.SessionHandler.Spin)
				r.Post("/bookmarks/{placeID}/toggle", cfg.SessionHandler.ToggleBookmark)
			})
		})
	})

	return r
}
