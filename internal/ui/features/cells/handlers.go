// Package cells provides the JSON endpoints for browsing and managing
// stored cells, and the update stream that tells clients to re-fetch.
package cells

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/lumen/internal/state"
	"github.com/leapstack-labs/lumen/internal/ui/features/common"
	"github.com/leapstack-labs/lumen/internal/ui/notifier"
	"github.com/leapstack-labs/lumen/pkg/core"
)

// Store is the cell store as seen by the handlers.
type Store interface {
	state.CellStore
	ListConversations(ctx context.Context) ([]state.Conversation, error)
}

// TitlePatch is the request body of PATCH /api/cells/{id}.
type TitlePatch struct {
	Title *string `json:"title"`
}

// Handlers provides HTTP handlers for the cells feature.
type Handlers struct {
	store    Store
	notifier *notifier.Notifier
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store Store, notify *notifier.Notifier) *Handlers {
	return &Handlers{store: store, notifier: notify}
}

// List returns the conversations, or the cells of ?conversation=.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	if conv := r.URL.Query().Get("conversation"); conv != "" {
		cells, err := h.store.LatestForConversation(r.Context(), conv, 0)
		if err != nil {
			common.WriteError(w, core.Errorf(core.CodeStoreError, "failed to list cells: %v", err))
			return
		}
		common.WriteJSON(w, http.StatusOK, map[string]any{"conversation_id": conv, "cells": cells})
		return
	}

	convs, err := h.store.ListConversations(r.Context())
	if err != nil {
		common.WriteError(w, core.Errorf(core.CodeStoreError, "failed to list conversations: %v", err))
		return
	}
	if convs == nil {
		convs = []state.Conversation{}
	}
	common.WriteJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

// Get returns one cell.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.storeError(w, id, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, c)
}

// Delete removes one cell.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.storeError(w, id, err)
		return
	}
	h.notifier.Publish(notifier.TopicCells)
	w.WriteHeader(http.StatusNoContent)
}

// Patch updates the mutable fields of a cell.
func (h *Handlers) Patch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body TitlePatch
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.WriteError(w, core.Errorf(core.CodeValidationError, "invalid request body: %v", err))
		return
	}
	if body.Title == nil || strings.TrimSpace(*body.Title) == "" {
		common.WriteError(w, core.Errorf(core.CodeValidationError, "title must not be empty"))
		return
	}
	title := strings.TrimSpace(*body.Title)

	c, err := h.store.Update(r.Context(), id, state.Patch{Title: &title})
	if err != nil {
		h.storeError(w, id, err)
		return
	}
	h.notifier.Publish(notifier.TopicCells)
	common.WriteJSON(w, http.StatusOK, c)
}

// Updates is the long-lived SSE endpoint. It patches the "updated" signal
// with the changed topic (cells or schema); clients re-fetch on change.
func (h *Handlers) Updates(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	updates := h.notifier.Subscribe()
	defer h.notifier.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case topic := <-updates:
			if err := sse.MarshalAndPatchSignals(map[string]any{
				"updated":    topic,
				"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
			}); err != nil {
				return
			}
		}
	}
}

func (h *Handlers) storeError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, state.ErrCellNotFound) {
		common.CellNotFound(w, id)
		return
	}
	common.WriteError(w, core.Errorf(core.CodeStoreError, "cell %s: %v", id, err))
}
