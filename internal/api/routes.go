package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/evaluate", h.HandleEvaluate)
		r.Post("/diff", h.HandleDiff)

		r.Route("/sync/{subjectID}", func(r chi.Router) {
			r.Get("/plan", h.HandleSyncPlan)
			r.Post("/plan", h.HandleSyncPlan)
			r.Post("/", h.HandleSync)
		})

		r.Route("/subjects/{subjectID}", func(r chi.Router) {
			r.Get("/snapshot", h.HandleGetSnapshot)
			r.Post("/can-remove", h.HandleCanRemove)
		})

		r.Post("/monitor/run", h.HandleRunMonitor)

		r.Route("/critical-labels", func(r chi.Router) {
			r.Get("/", h.HandleListCriticalLabels)
			r.Post("/", h.HandleCreateCriticalLabel)
			r.Put("/{id}", h.HandleUpdateCriticalLabel)
			r.Delete("/{id}", h.HandleDeleteCriticalLabel)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.HandleListNotifications)
			r.Get("/{id}", h.HandleGetNotification)
			r.Post("/{id}/read", h.HandleMarkNotificationRead)
		})
	})

	return r
}
