package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter mounts the monitor API. metricsHandler may be nil.
func NewRouter(h *Handler, metricsHandler http.Handler, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/", h.RootHandler)
	r.Get("/health", h.HealthHandler)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/monitor", func(r chi.Router) {
		r.Get("/status", h.StatusHandler)
		r.Post("/start", h.StartMonitorHandler)
		r.Post("/stop", h.StopMonitorHandler)
		r.Put("/config", h.ConfigHandler)
	})

	r.Route("/api/tables/{table}", func(r chi.Router) {
		r.Post("/check", h.CheckTableHandler)
		r.Post("/snapshot", h.TakeSnapshotHandler)
		r.Get("/snapshot", h.LatestSnapshotHandler)
		r.Get("/changes", h.PendingChangesHandler)
	})

	return r
}
