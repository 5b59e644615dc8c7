package schema

import (
	"github.com/go-chi/chi/v5"
)

// SetupRoutes registers the schema routes on the router.
func SetupRoutes(router chi.Router, handlers *Handlers) {
	router.Get("/api/health", handlers.Health)
	router.Get("/api/schema", handlers.Schema)
	router.Get("/api/suggestions", handlers.Suggestions)
}
