package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handlers, hub *Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/", h.Index)
	r.Get("/health", h.Health)

	// Push channel
	r.Get("/ws", hub.HandleWS)

	// Crawl API
	r.Post("/api/start", h.Start)
	r.Post("/api/stop", h.Stop)
	r.Get("/api/status", h.Status)
	r.Get("/api/crawl-results/", h.Results)
	r.Get("/api/results/download", h.Download)

	// Run history
	r.Get("/api/runs", h.ListRuns)
	r.Get("/api/runs/{id}", h.GetRun)

	return r
}
