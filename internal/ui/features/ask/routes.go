package ask

import (
	"github.com/go-chi/chi/v5"
)

// SetupRoutes registers the ask routes on the router.
func SetupRoutes(router chi.Router, handlers *Handlers) {
	router.Post("/api/ask", handlers.Ask)
	router.Post("/api/cells/{id}/sql", handlers.EditSQL)
}
