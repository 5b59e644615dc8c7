package cells_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/lumen/internal/cell"
	"github.com/leapstack-labs/lumen/internal/state"
	"github.com/leapstack-labs/lumen/internal/ui/features"
	"github.com/leapstack-labs/lumen/internal/ui/notifier"
)

func seedCells(t *testing.T, f *features.TestFixture) {
	t.Helper()
	ctx := context.Background()
	for _, c := range []struct {
		conv, id, question string
	}{
		{"conv_a", "cell_a1", "Revenue by month?"},
		{"conv_a", "cell_a2", "Only 2024"},
		{"conv_b", "cell_b1", "Top customers?"},
	} {
		require.NoError(t, f.Store.Append(ctx, c.conv, &cell.Cell{
			ID:        c.id,
			CreatedAt: "2026-03-01T12:00:00Z",
			Question:  c.question,
			SQL:       &cell.SQL{Query: "SELECT 1", GeneratedBy: cell.GeneratedByLLM},
		}))
	}
}

func TestList(t *testing.T) {
	f := features.SetupTestFixture(t)
	seedCells(t, f)

	t.Run("conversations", func(t *testing.T) {
		rec := f.Do(http.MethodGet, "/api/cells", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Conversations []state.Conversation `json:"conversations"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Conversations, 2)
		counts := map[string]int{}
		for _, c := range body.Conversations {
			counts[c.ID] = c.CellCount
		}
		assert.Equal(t, map[string]int{"conv_a": 2, "conv_b": 1}, counts)
	})

	t.Run("cells of a conversation", func(t *testing.T) {
		rec := f.Do(http.MethodGet, "/api/cells?conversation=conv_a", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			ConversationID string       `json:"conversation_id"`
			Cells          []*cell.Cell `json:"cells"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "conv_a", body.ConversationID)
		require.Len(t, body.Cells, 2)
		assert.Equal(t, "cell_a1", body.Cells[0].ID)
		assert.Equal(t, "cell_a2", body.Cells[1].ID)
	})

	t.Run("empty store", func(t *testing.T) {
		empty := features.SetupTestFixture(t)
		rec := empty.Do(http.MethodGet, "/api/cells", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"conversations":[]}`, rec.Body.String())
	})
}

func TestGet(t *testing.T) {
	f := features.SetupTestFixture(t)
	seedCells(t, f)

	rec := f.Do(http.MethodGet, "/api/cells/cell_b1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var c cell.Cell
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Equal(t, "Top customers?", c.Question)

	assert.Equal(t, http.StatusNotFound, f.Do(http.MethodGet, "/api/cells/cell_missing", "").Code)
}

func TestDelete(t *testing.T) {
	f := features.SetupTestFixture(t)
	seedCells(t, f)
	updates := f.Notifier.Subscribe()
	defer f.Notifier.Unsubscribe(updates)

	rec := f.Do(http.MethodDelete, "/api/cells/cell_a2", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, notifier.TopicCells, <-updates)

	_, err := f.Store.Get(context.Background(), "cell_a2")
	assert.ErrorIs(t, err, state.ErrCellNotFound)

	assert.Equal(t, http.StatusNotFound, f.Do(http.MethodDelete, "/api/cells/cell_a2", "").Code)
}

func TestPatch(t *testing.T) {
	f := features.SetupTestFixture(t)
	seedCells(t, f)

	tests := []struct {
		name   string
		id     string
		body   string
		status int
	}{
		{"sets title", "cell_a1", `{"title":"  Monthly revenue "}`, http.StatusOK},
		{"missing title", "cell_a1", `{}`, http.StatusBadRequest},
		{"blank title", "cell_a1", `{"title":"   "}`, http.StatusBadRequest},
		{"malformed", "cell_a1", `{"title":`, http.StatusBadRequest},
		{"unknown cell", "cell_missing", `{"title":"x"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.Do(http.MethodPatch, "/api/cells/"+tt.id, tt.body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	stored, err := f.Store.Get(context.Background(), "cell_a1")
	require.NoError(t, err)
	assert.Equal(t, "Monthly revenue", stored.Title)
}

func TestUpdates_PatchesTopic(t *testing.T) {
	f := features.SetupTestFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/updates", nil)
	req = features.RequestWithTimeout(req, 300*time.Millisecond)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		f.Router.ServeHTTP(rec, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return f.Notifier.Listeners() == 1 }, time.Second, 5*time.Millisecond)
	f.Notifier.Publish(notifier.TopicSchema)
	<-done

	body := rec.Body.String()
	assert.Equal(t, 1, strings.Count(body, "event:"))
	assert.Contains(t, body, `"updated":"schema"`)
}

func TestUpdates_NoInitialEvent(t *testing.T) {
	f := features.SetupTestFixture(t)

	req := features.RequestWithTimeout(httptest.NewRequest(http.MethodGet, "/api/updates", nil), 50*time.Millisecond)
	rec := httptest.NewRecorder()
	f.Router.ServeHTTP(rec, req)

	assert.NotContains(t, rec.Body.String(), "event:")
}
