package cells

import (
	"github.com/go-chi/chi/v5"
)

// SetupRoutes registers the cells routes on the router.
func SetupRoutes(router chi.Router, handlers *Handlers) {
	router.Get("/api/updates", handlers.Updates)
	router.Route("/api/cells", func(r chi.Router) {
		r.Get("/", handlers.List)
		r.Get("/{id}", handlers.Get)
		r.Delete("/{id}", handlers.Delete)
		r.Patch("/{id}", handlers.Patch)
	})
}
