package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health", h.Health)

		// Protected routes (service key required)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))

			r.Get("/admin/snapshot", h.Snapshot)

			// User-scoped routes
			r.Group(func(r chi.Router) {
				r.Use(IdentityMiddleware)

				r.Get("/profile", h.GetProfile)
				r.Put("/profile", h.UpdateProfile)

				r.Get("/days", h.History)
				r.Get("/days/{date}", h.OpenDay)
				r.Get("/days/{date}/gate", h.Gate)
				r.Get("/days/{date}/reschedules", h.Reschedules)

				r.Route("/plans/{planID}", func(r chi.Router) {
					r.Get("/goals", h.ListGoals)
					r.Put("/goals", h.SaveGoals)
					r.Post("/submit", h.SubmitPlan)
					r.Post("/awards/awareness", h.AwardAwareness)
					r.Post("/awards/closure", h.AwardClosure)
					r.Post("/reopen", h.ReopenPlan)
					r.Get("/audit", h.AuditTrail)
				})

				r.Route("/goals/{goalID}", func(r chi.Router) {
					r.Delete("/", h.DeleteGoal)
					r.Post("/review", h.ToggleReview)
					r.Put("/status", h.SetStatus)
					r.Put("/priority", h.SetPriority)
					r.Post("/reschedule", h.Reschedule)
					r.Get("/notes", h.ListNotes)
					r.Post("/notes", h.AddNote)
				})
			})
		})
	})

	return r
}
