package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"seolab-api/internal/handlers"
	"seolab-api/internal/middleware"
	"seolab-api/internal/websocket"
)

type Options struct {
	APIKey         string
	AllowedOrigins []string
	Limiter        *middleware.RateLimiter
	Logger         *zap.Logger
}

func New(
	seoHandler *handlers.SEOHandler,
	jobHandler *handlers.JobHandler,
	generationHandler *handlers.GenerationHandler,
	wsHub *websocket.Hub,
	opts Options,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.CORS(opts.AllowedOrigins))

	r.Get("/", handlers.Root)
	r.Get("/health", handlers.Health)

	r.Route("/api/seo", func(r chi.Router) {
		r.Get("/", seoHandler.Index)
		r.Get("/health", seoHandler.Health)

		// Job progress stream, authenticated by its stream token
		if wsHub != nil {
			r.Get("/ws", wsHub.HandleWebSocket)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKey(opts.APIKey))

			r.Group(func(r chi.Router) {
				if opts.Limiter != nil {
					r.Use(opts.Limiter.Middleware)
				}
				r.Post("/generate", seoHandler.Generate)
				r.Post("/jobs", jobHandler.Create)
			})

			r.Get("/jobs/{id}", jobHandler.Get)
			r.Get("/generations", generationHandler.List)
			r.Get("/generations/{traceId}", generationHandler.Get)
		})
	})

	return r
}
