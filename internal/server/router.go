package server

import (
	"net/http"

	"github.com/cloo-solutions/knowpool/internal/api"
	"github.com/cloo-solutions/knowpool/internal/api/handlers"
	"github.com/cloo-solutions/knowpool/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	// APIKeys are the accepted bearer tokens. Empty disables auth.
	APIKeys          []string
	KnowledgeHandler *handlers.KnowledgeHandler
	ContextHandler   *handlers.ContextHandler
	SessionHandler   *handlers.SessionHandler
	SnapshotHandler  *handlers.SnapshotHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKeys))

		r.Route("/knowledge/{industry}", func(r chi.Router) {
			r.Get("/", cfg.KnowledgeHandler.Rank)
			r.Get("/hierarchy", cfg.KnowledgeHandler.Hierarchy)
		})
		r.Post("/classify", cfg.KnowledgeHandler.Classify)

		r.Route("/context/{industry}", func(r chi.Router) {
			r.Get("/", cfg.ContextHandler.Get)
			r.Post("/patterns", cfg.ContextHandler.Patterns)
		})

		r.Post("/accumulate", cfg.SessionHandler.Accumulate)
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", cfg.SessionHandler.Enqueue)
			r.Get("/{id}", cfg.SessionHandler.GetJob)
		})

		r.Route("/snapshots", func(r chi.Router) {
			r.Post("/import", cfg.SnapshotHandler.Import)
			r.Post("/{industry}", cfg.SnapshotHandler.Export)
		})
	})

	return r
}
