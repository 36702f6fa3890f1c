package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/unfaced/unfaced/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	identitiesHandler := handlers.NewIdentitiesHandler(s.registry)
	submissionsHandler := handlers.NewSubmissionsHandler(s.consent)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes. Every operation names the acting identity explicitly, so
	// there is no session layer.
	s.router.Route("/api/v1", func(r chi.Router) {
		// Identities
		r.Post("/identities", identitiesHandler.Enroll)
		r.Get("/identities", identitiesHandler.List)
		r.Post("/auth/login", identitiesHandler.Login)

		// Submissions
		r.Post("/submissions", submissionsHandler.Submit)
		r.Get("/submissions/pending", submissionsHandler.Pending)
		r.Get("/submissions/approved", submissionsHandler.Approved)
		r.Post("/submissions/{id}/approve", submissionsHandler.Approve)
		r.Post("/submissions/{id}/reject", submissionsHandler.Reject)
		r.Delete("/submissions/{id}", submissionsHandler.Delete)
		r.Get("/submissions/{id}/media", submissionsHandler.Media)
	})
}
