// Package ask provides the question and SQL edit endpoints. Both stream the
// pipeline's stage events to the client as datastar signal patches.
package ask

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/lumen/internal/agent"
	"github.com/leapstack-labs/lumen/internal/cell"
	"github.com/leapstack-labs/lumen/internal/state"
	"github.com/leapstack-labs/lumen/internal/ui/features/common"
	"github.com/leapstack-labs/lumen/internal/ui/notifier"
	"github.com/leapstack-labs/lumen/pkg/core"
)

// SessionName is the cookie holding the current conversation.
const SessionName = "lumen"

const conversationKey = "conversation_id"

// Pipeline is the part of the orchestrator the handlers drive.
type Pipeline interface {
	Ask(ctx context.Context, req agent.AskRequest, emit agent.Emitter) core.Result[*cell.Cell]
	RunEdited(ctx context.Context, req agent.EditRequest, emit agent.Emitter) core.Result[*cell.Cell]
}

// Conversations resolves the conversation a cell belongs to.
type Conversations interface {
	ConversationOf(ctx context.Context, id string) (string, error)
}

// AskSignals is the request body of POST /api/ask.
type AskSignals struct {
	Question        string `json:"question"`
	ConversationID  string `json:"conversation_id"`
	ParentCellID    string `json:"parent_cell_id"`
	NewConversation bool   `json:"new_conversation"`
}

// EditSignals is the request body of POST /api/cells/{id}/sql.
type EditSignals struct {
	SQL string `json:"sql"`
}

// Handlers provides HTTP handlers for the ask feature.
type Handlers struct {
	pipeline      Pipeline
	conversations Conversations
	sessionStore  sessions.Store
	notifier      *notifier.Notifier
	logger        *slog.Logger
	guard         *inFlight
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(pipeline Pipeline, conversations Conversations, sessionStore sessions.Store, notify *notifier.Notifier, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{
		pipeline:      pipeline,
		conversations: conversations,
		sessionStore:  sessionStore,
		notifier:      notify,
		logger:        logger,
		guard:         newInFlight(),
	}
}

// Ask answers a question and streams the run.
func (h *Handlers) Ask(w http.ResponseWriter, r *http.Request) {
	var signals AskSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		common.WriteError(w, core.Errorf(core.CodeValidationError, "invalid request: %v", err))
		return
	}
	if strings.TrimSpace(signals.Question) == "" {
		common.WriteError(w, core.Errorf(core.CodeValidationError, "question is empty"))
		return
	}

	session, _ := h.sessionStore.Get(r, SessionName)

	conv := signals.ConversationID
	if conv == "" && !signals.NewConversation {
		conv, _ = session.Values[conversationKey].(string)
	}
	if signals.ParentCellID != "" {
		parentConv, err := h.conversations.ConversationOf(r.Context(), signals.ParentCellID)
		if err != nil {
			writeCellError(w, signals.ParentCellID, err)
			return
		}
		conv = parentConv
	}
	if conv == "" {
		conv = cell.NewConversationID()
	}

	session.Values[conversationKey] = conv
	if err := session.Save(r, w); err != nil {
		h.logger.Warn("failed to save session", slog.String("error", err.Error()))
	}

	req := agent.AskRequest{Question: signals.Question, ConversationID: conv, ParentCellID: signals.ParentCellID}
	h.stream(w, r, conv, func(ctx context.Context, emit agent.Emitter) {
		h.pipeline.Ask(ctx, req, emit)
	})
}

// EditSQL re-runs a cell with user SQL and streams the run.
func (h *Handlers) EditSQL(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var signals EditSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		common.WriteError(w, core.Errorf(core.CodeValidationError, "invalid request: %v", err))
		return
	}
	if strings.TrimSpace(signals.SQL) == "" {
		common.WriteError(w, core.Errorf(core.CodeValidationError, "sql is empty"))
		return
	}

	conv, err := h.conversations.ConversationOf(r.Context(), id)
	if err != nil {
		writeCellError(w, id, err)
		return
	}

	req := agent.EditRequest{CellID: id, SQL: signals.SQL}
	h.stream(w, r, conv, func(ctx context.Context, emit agent.Emitter) {
		h.pipeline.RunEdited(ctx, req, emit)
	})
}

// stream runs fn for conversation conv and forwards its events as SSE.
// The run is detached from the request: a disconnecting client does not
// cancel it, so the cell is still persisted.
func (h *Handlers) stream(w http.ResponseWriter, r *http.Request, conv string, fn func(context.Context, agent.Emitter)) {
	if !h.guard.acquire(conv) {
		common.WriteError(w, core.Errorf(core.CodeInFlight, "a question is already running in conversation %s", conv).
			WithHint("Wait for the current answer before asking again"))
		return
	}

	clientGone := r.Context().Done()
	events := make(chan agent.Event, 8)
	go func() {
		defer close(events)
		defer h.guard.release(conv)
		defer h.notifier.Publish(notifier.TopicCells)
		fn(context.WithoutCancel(r.Context()), agent.EmitterFunc(func(e agent.Event) {
			select {
			case events <- e:
			case <-clientGone:
			}
		}))
	}()

	sse := datastar.NewSSE(w, r)
	_ = sse.MarshalAndPatchSignals(map[string]any{"conversation_id": conv})
	for e := range events {
		signals, err := eventSignals(e)
		if err != nil {
			h.logger.Error("failed to encode cell", slog.String("conversation", conv), slog.String("error", err.Error()))
			signals = map[string]any{"stage": "failed", "error": core.Errorf(core.CodeStoreError, "failed to encode cell: %v", err)}
		}
		if err := sse.MarshalAndPatchSignals(signals); err != nil {
			h.logger.Debug("client went away", slog.String("conversation", conv))
			return
		}
	}
}

// eventSignals is the signal patch sent for one pipeline event. A cell is
// sent in its canonical form, byte-identical to the stored record.
func eventSignals(e agent.Event) (map[string]any, error) {
	switch e.Type {
	case agent.EventCell:
		body, err := cell.Canonical(e.Cell)
		if err != nil {
			return nil, err
		}
		return map[string]any{"stage": "done", "cell": json.RawMessage(body)}, nil
	case agent.EventError:
		return map[string]any{"stage": "failed", "error": e.Error, "diagnostics": e.Diagnostics}, nil
	default:
		return map[string]any{"stage": e.Stage}, nil
	}
}

func writeCellError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, state.ErrCellNotFound) {
		common.CellNotFound(w, id)
		return
	}
	common.WriteError(w, core.Errorf(core.CodeStoreError, "failed to load cell %s: %v", id, err))
}
