// Package router sets up HTTP routes for the lumen server.
package router

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/leapstack-labs/lumen/internal/schema"
	"github.com/leapstack-labs/lumen/internal/suggest"
	askFeature "github.com/leapstack-labs/lumen/internal/ui/features/ask"
	cellsFeature "github.com/leapstack-labs/lumen/internal/ui/features/cells"
	schemaFeature "github.com/leapstack-labs/lumen/internal/ui/features/schema"
	"github.com/leapstack-labs/lumen/internal/ui/notifier"
)

// Deps are the services the routes are built on.
type Deps struct {
	Pipeline     askFeature.Pipeline
	Store        cellsFeature.Store
	Schema       schema.Provider
	Suggest      *suggest.Service
	Model        string
	SessionStore sessions.Store
	Notifier     *notifier.Notifier
	Logger       *slog.Logger
}

// SetupRoutes configures all routes for the server.
func SetupRoutes(router chi.Router, deps Deps) {
	schemaFeature.SetupRoutes(router, schemaFeature.NewHandlers(deps.Schema, deps.Suggest, deps.Notifier, deps.Model))
	cellsFeature.SetupRoutes(router, cellsFeature.NewHandlers(deps.Store, deps.Notifier))
	askFeature.SetupRoutes(router, askFeature.NewHandlers(deps.Pipeline, deps.Store, deps.SessionStore, deps.Notifier, deps.Logger))
}
