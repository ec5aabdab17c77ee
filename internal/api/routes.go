package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router builds the chi router for all API endpoints.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: h.Logger, NoColor: true}))
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.HandleHealth)
		r.Get("/privacy", h.HandlePrivacy)
		r.Get("/cookies", h.HandleCookies)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/", h.HandleListReports)
			r.Post("/", h.HandleCreateReport)
			r.Delete("/", h.HandleClearReports)
			r.Get("/{id}", h.HandleGetReport)
			r.Get("/{id}/export", h.HandleExportReport)
		})

		r.Post("/settings/apply", h.HandleApplySetting)
		r.Get("/preferences", h.HandleGetPreferences)
		r.Put("/preferences", h.HandlePutPreferences)
		r.Post("/scan", h.HandleScan)
	})

	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics.Handler())
	}
	return r
}
