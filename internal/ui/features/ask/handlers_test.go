package ask_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/lumen/internal/agent"
	"github.com/leapstack-labs/lumen/internal/cell"
	"github.com/leapstack-labs/lumen/internal/llm/llmtest"
	"github.com/leapstack-labs/lumen/internal/state"
	"github.com/leapstack-labs/lumen/internal/ui/features"
	"github.com/leapstack-labs/lumen/internal/ui/features/ask"
	"github.com/leapstack-labs/lumen/internal/ui/features/common"
	"github.com/leapstack-labs/lumen/internal/ui/notifier"
	"github.com/leapstack-labs/lumen/pkg/core"
)

func regionChart() map[string]any {
	return map[string]any{
		"mark": "bar",
		"encoding": map[string]any{
			"x": map[string]any{"field": "region", "type": "nominal"},
			"y": map[string]any{"field": "customers", "type": "quantitative"},
		},
	}
}

func answerSteps() []llmtest.Step {
	return []llmtest.Step{
		llmtest.Plan(features.RegionSQL, regionChart()),
		llmtest.Narrate("AMER has 2 customers.", llmtest.Ref("r1", "2", "customers")),
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) common.ErrorBody {
	t.Helper()
	var body common.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAsk_StreamsStagesAndCell(t *testing.T) {
	f := features.SetupTestFixture(t, answerSteps()...)
	updates := f.Notifier.Subscribe()
	defer f.Notifier.Unsubscribe(updates)

	rec := f.Do(http.MethodPost, "/api/ask", `{"question":"How many customers per region?","conversation_id":"conv_test"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")
	body := rec.Body.String()
	assert.Contains(t, body, `"conversation_id":"conv_test"`)
	assert.Contains(t, body, `"stage":"thinking"`)
	assert.Contains(t, body, `"stage":"executing"`)
	assert.Contains(t, body, `"stage":"done"`)
	assert.NotContains(t, body, `"stage":"failed"`)

	cells, err := f.Store.LatestForConversation(context.Background(), "conv_test", 0)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, features.RegionSQL, cells[0].SQL.Query)
	assert.Equal(t, 2, cells[0].Result.RowCount)

	stored, err := cell.Canonical(cells[0])
	require.NoError(t, err)
	assert.Contains(t, body, `"cell":`+string(stored), "streamed cell is the stored canonical record")

	assert.Equal(t, notifier.TopicCells, <-updates)
}

func TestAsk_ClientDisconnectStillPersistsCell(t *testing.T) {
	f := features.SetupTestFixture(t, answerSteps()...)
	updates := f.Notifier.Subscribe()
	defer f.Notifier.Unsubscribe(updates)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/ask",
		strings.NewReader(`{"question":"How many customers per region?","conversation_id":"conv_gone"}`)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	f.Router.ServeHTTP(httptest.NewRecorder(), req)

	select {
	case topic := <-updates:
		assert.Equal(t, notifier.TopicCells, topic)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not finish after the client went away")
	}

	cells, err := f.Store.LatestForConversation(context.Background(), "conv_gone", 0)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, features.RegionSQL, cells[0].SQL.Query)
	assert.Equal(t, 2, cells[0].Result.RowCount)
	require.NotNil(t, cells[0].Narrative)
	assert.NotEmpty(t, cells[0].Narrative.Text)
}

func TestAsk_FailureIsStreamed(t *testing.T) {
	f := features.SetupTestFixture(t, llmtest.Plan("DELETE FROM orders", regionChart()))

	rec := f.Do(http.MethodPost, "/api/ask", `{"question":"Remove all orders","conversation_id":"conv_bad"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"stage":"failed"`)
	assert.Contains(t, body, core.CodeValidationError)

	cells, err := f.Store.LatestForConversation(context.Background(), "conv_bad", 0)
	require.NoError(t, err)
	assert.Empty(t, cells)
}

func TestAsk_RequestErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"empty question", `{"question":"  "}`, http.StatusBadRequest, core.CodeValidationError},
		{"malformed body", `{"question":`, http.StatusBadRequest, core.CodeValidationError},
		{"unknown parent", `{"question":"and by month?","parent_cell_id":"cell_missing"}`, http.StatusNotFound, core.CodeValidationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := features.SetupTestFixture(t)
			rec := f.Do(http.MethodPost, "/api/ask", tt.body)

			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			require.NotEmpty(t, body.Diagnostics)
			assert.Equal(t, tt.code, body.Diagnostics[0].Code)
			assert.Empty(t, f.LLM.Requests(), "no model call for a rejected request")
		})
	}
}

func TestAsk_RefinementJoinsParentConversation(t *testing.T) {
	steps := append(answerSteps(), answerSteps()...)
	f := features.SetupTestFixture(t, steps...)

	first := f.Do(http.MethodPost, "/api/ask", `{"question":"Customers per region?","conversation_id":"conv_parent"}`)
	require.Equal(t, http.StatusOK, first.Code)
	cells, err := f.Store.LatestForConversation(context.Background(), "conv_parent", 0)
	require.NoError(t, err)
	require.Len(t, cells, 1)

	rec := f.Do(http.MethodPost, "/api/ask", `{"question":"Only AMER","parent_cell_id":"`+cells[0].ID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"conversation_id":"conv_parent"`)

	cells, err = f.Store.LatestForConversation(context.Background(), "conv_parent", 0)
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, cells[0].ID, cells[1].Context.ParentCellID)
}

func TestAsk_SessionRemembersConversation(t *testing.T) {
	f := features.SetupTestFixture(t, append(answerSteps(), answerSteps()...)...)

	first := httptest.NewRecorder()
	f.Router.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/ask",
		strings.NewReader(`{"question":"Customers per region?"}`)))
	require.Equal(t, http.StatusOK, first.Code)
	cookies := first.Result().Cookies()
	require.NotEmpty(t, cookies)

	convs, err := f.Store.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"Again please"}`))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	second := httptest.NewRecorder()
	f.Router.ServeHTTP(second, req)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), `"conversation_id":"`+convs[0].ID+`"`)
}

func TestEditSQL(t *testing.T) {
	f := features.SetupTestFixture(t, append(answerSteps(), llmtest.Narrate("There are three customers."))...)
	require.Equal(t, http.StatusOK, f.Do(http.MethodPost, "/api/ask", `{"question":"Customers per region?","conversation_id":"conv_edit"}`).Code)
	cells, err := f.Store.LatestForConversation(context.Background(), "conv_edit", 0)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	original := cells[0]

	t.Run("runs user sql", func(t *testing.T) {
		rec := f.Do(http.MethodPost, "/api/cells/"+original.ID+"/sql", `{"sql":"SELECT name FROM customers ORDER BY name"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"stage":"done"`)

		cells, err := f.Store.LatestForConversation(context.Background(), "conv_edit", 0)
		require.NoError(t, err)
		require.Len(t, cells, 2)
		edited := cells[1]
		assert.Equal(t, cell.GeneratedByUser, edited.SQL.GeneratedBy)
		assert.Equal(t, original.ID, edited.Context.ParentCellID)
		assert.Equal(t, 3, edited.Result.RowCount)
	})

	t.Run("empty sql", func(t *testing.T) {
		rec := f.Do(http.MethodPost, "/api/cells/"+original.ID+"/sql", `{"sql":""}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown cell", func(t *testing.T) {
		rec := f.Do(http.MethodPost, "/api/cells/cell_missing/sql", `{"sql":"SELECT 1"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

// blockingPipeline holds every run open until release is closed.
type blockingPipeline struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *blockingPipeline) Ask(_ context.Context, _ agent.AskRequest, emit agent.Emitter) core.Result[*cell.Cell] {
	emit.Emit(agent.Event{Type: agent.EventStage, Stage: agent.StageThinking})
	p.once.Do(func() { close(p.started) })
	<-p.release
	d := core.Errorf(core.CodeLLMError, "cancelled")
	emit.Emit(agent.Event{Type: agent.EventError, Error: &d, Diagnostics: []core.Diagnostic{d}})
	return core.Fail[*cell.Cell](d)
}

func (p *blockingPipeline) RunEdited(ctx context.Context, _ agent.EditRequest, emit agent.Emitter) core.Result[*cell.Cell] {
	return p.Ask(ctx, agent.AskRequest{}, emit)
}

type noConversations struct{}

func (noConversations) ConversationOf(context.Context, string) (string, error) {
	return "", state.ErrCellNotFound
}

func TestAsk_OneRunPerConversation(t *testing.T) {
	pipeline := &blockingPipeline{started: make(chan struct{}), release: make(chan struct{})}
	h := ask.NewHandlers(pipeline, noConversations{}, features.NewTestSessionStore(), notifier.New(), nil)

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.Ask(rec, httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(body)))
		return rec
	}

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- post(`{"question":"slow","conversation_id":"conv_busy"}`) }()
	<-pipeline.started

	busy := post(`{"question":"again","conversation_id":"conv_busy"}`)
	assert.Equal(t, http.StatusConflict, busy.Code)
	assert.Equal(t, core.CodeInFlight, decodeError(t, busy).Diagnostics[0].Code)

	close(pipeline.release)
	first := <-done
	assert.Contains(t, first.Body.String(), `"stage":"failed"`)

	// A different conversation, and the same one after release, are admitted.
	assert.Equal(t, http.StatusOK, post(`{"question":"other","conversation_id":"conv_other"}`).Code)
	assert.Equal(t, http.StatusOK, post(`{"question":"again","conversation_id":"conv_busy"}`).Code)
}
