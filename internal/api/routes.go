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

		// Protected routes (auth required)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))

			r.Post("/customers", h.CreateCustomer)
			r.Get("/customers", h.ListCustomers)
			r.Get("/customers/{customerID}", h.GetCustomer)

			r.Post("/onboardings", h.CreateOnboarding)
			r.Route("/onboardings/{onboardingID}", func(r chi.Router) {
				r.Use(h.OnboardingCtx)
				r.Get("/", h.GetOnboarding)
				r.Patch("/", h.UpdateOnboarding)
				r.Get("/{category}", h.ListChildren)
				r.Post("/{category}", h.CreateChild)
			})

			r.Patch("/{category}/{rowID}", h.UpdateChild)
			r.Delete("/{category}/{rowID}", h.DeleteChild)
		})
	})

	return r
}
