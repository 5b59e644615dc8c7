// Package schema provides the health, schema and suggestion endpoints.
package schema

import (
	"net/http"

	"github.com/leapstack-labs/lumen/internal/schema"
	"github.com/leapstack-labs/lumen/internal/suggest"
	"github.com/leapstack-labs/lumen/internal/ui/features/common"
	"github.com/leapstack-labs/lumen/internal/ui/notifier"
	"github.com/leapstack-labs/lumen/pkg/core"
)

// Handlers provides HTTP handlers for the schema feature.
type Handlers struct {
	provider schema.Provider
	suggest  *suggest.Service
	notifier *notifier.Notifier
	model    string
}

// NewHandlers creates a new Handlers instance. suggestions may be nil, in
// which case the suggestions endpoint reports a configuration error.
func NewHandlers(provider schema.Provider, suggestions *suggest.Service, notify *notifier.Notifier, model string) *Handlers {
	return &Handlers{provider: provider, suggest: suggestions, notifier: notify, model: model}
}

// Health reports liveness with the current schema hash.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, hash := h.provider.Current()
	common.WriteJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"schema_hash": hash,
		"model":       h.model,
	})
}

// Schema returns the schema context. ?refresh=true rebuilds it first.
func (h *Handlers) Schema(w http.ResponseWriter, r *http.Request) {
	sc, diags := h.current(r, r.URL.Query().Get("refresh") == "true")
	if sc == nil {
		common.WriteDiagnostics(w, diags)
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]any{"schema": sc, "diagnostics": diags})
}

// Suggestions returns starter questions. ?refresh=true bypasses the cache.
func (h *Handlers) Suggestions(w http.ResponseWriter, r *http.Request) {
	if h.suggest == nil {
		common.WriteError(w, core.Errorf(core.CodeConfigError, "suggestions are not configured"))
		return
	}
	sc, diags := h.current(r, false)
	if sc == nil {
		common.WriteDiagnostics(w, diags)
		return
	}
	res := h.suggest.Suggestions(r.Context(), sc, r.URL.Query().Get("refresh") == "true")
	if !res.OK() {
		common.WriteDiagnostics(w, res.Diagnostics)
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]any{"suggestions": res.Value, "schema_hash": sc.Hash})
}

// current returns the published snapshot, refreshing when asked or when
// none exists yet.
func (h *Handlers) current(r *http.Request, refresh bool) (*schema.Context, []core.Diagnostic) {
	if !refresh {
		if sc, _ := h.provider.Current(); sc != nil {
			return sc, nil
		}
	}
	res := h.provider.Refresh(r.Context())
	if res.Value != nil {
		h.notifier.Publish(notifier.TopicSchema)
	}
	return res.Value, res.Diagnostics
}
