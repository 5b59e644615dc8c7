package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/lumen/internal/cell"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), ".lumen", "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testCell(id, question, parent string) *cell.Cell {
	return cell.Assemble(cell.Input{
		ID:        id,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Question:  question,
		ParentID:  parent,
		SQL:       "SELECT 1 AS n",
		Result: &cell.Result{
			Columns:     []string{"n"},
			ColumnTypes: []string{"INTEGER"},
			RowCount:    1,
			Rows:        []map[string]any{{"n": 1}},
		},
		ChartSpec: map[string]any{"mark": "text"},
		Model:     "scripted",
	})
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)

	v, err := store.MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	for _, table := range []string{"conversations", "cells", "suggestions"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, table)
		_ = rows.Close()
	}

	// Re-running is a no-op.
	require.NoError(t, store.Migrate())
}

func TestSQLiteStore_InMemory(t *testing.T) {
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Append(context.Background(), "conv", testCell("cell_00000001", "q", "")))
	got, err := store.Get(context.Background(), "cell_00000001")
	require.NoError(t, err)
	assert.Equal(t, "q", got.Question)
}

func TestSQLiteStore_AppendAndGet(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	c := testCell("cell_aaaaaaaa", "top customers?", "")
	require.NoError(t, store.Append(ctx, "conv_1", c))

	got, err := store.Get(ctx, c.ID)
	require.NoError(t, err)

	want, err := cell.Canonical(c)
	require.NoError(t, err)
	gotJSON, err := cell.Canonical(got)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(gotJSON))

	conv, err := store.ConversationOf(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "conv_1", conv)

	assert.Error(t, store.Append(ctx, "conv_1", c), "duplicate id")
	assert.Error(t, store.Append(ctx, "conv_1", nil))
}

func TestSQLiteStore_Positions(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	next, err := store.NextPosition(ctx, "conv_1")
	require.NoError(t, err)
	assert.Equal(t, 1, next)

	ids := []string{"cell_00000001", "cell_00000002", "cell_00000003", "cell_00000004"}
	for i, id := range ids {
		c := testCell(id, "q"+id, "")
		if i%2 == 0 {
			c.Context.Position, err = store.NextPosition(ctx, "conv_1")
			require.NoError(t, err)
		}
		require.NoError(t, store.Append(ctx, "conv_1", c))
	}
	require.NoError(t, store.Append(ctx, "conv_2", testCell("cell_00000009", "other", "")))

	next, err = store.NextPosition(ctx, "conv_1")
	require.NoError(t, err)
	assert.Equal(t, 5, next)

	all, err := store.LatestForConversation(ctx, "conv_1", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, c := range all {
		assert.Equal(t, ids[i], c.ID)
	}

	last, err := store.LatestForConversation(ctx, "conv_1", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "cell_00000003", last[0].ID)
	assert.Equal(t, "cell_00000004", last[1].ID)

	none, err := store.LatestForConversation(ctx, "missing", 5)
	require.NoError(t, err)
	assert.Empty(t, none)

	t.Run("append after delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "cell_00000001"))

		next, err := store.NextPosition(ctx, "conv_1")
		require.NoError(t, err)
		assert.Equal(t, 5, next)

		c := testCell("cell_00000005", "after delete", "")
		c.Context.Position = next
		require.NoError(t, store.Append(ctx, "conv_1", c))

		all, err := store.LatestForConversation(ctx, "conv_1", 0)
		require.NoError(t, err)
		got := make([]string, 0, len(all))
		for _, c := range all {
			got = append(got, c.ID)
		}
		assert.Equal(t, []string{"cell_00000002", "cell_00000003", "cell_00000004", "cell_00000005"}, got)
	})

	t.Run("duplicate position rejected", func(t *testing.T) {
		c := testCell("cell_00000006", "dup", "")
		c.Context.Position = 5
		assert.Error(t, store.Append(ctx, "conv_1", c))
	})
}

func TestSQLiteStore_Update(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	require.NoError(t, store.Append(ctx, "conv_1", testCell("cell_aaaaaaaa", "revenue by month", "")))

	title := "  Monthly revenue "
	updated, err := store.Update(ctx, "cell_aaaaaaaa", Patch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Monthly revenue", updated.Title)

	got, err := store.Get(ctx, "cell_aaaaaaaa")
	require.NoError(t, err)
	assert.Equal(t, "Monthly revenue", got.Title)
	assert.Equal(t, "revenue by month", got.Question)

	unchanged, err := store.Update(ctx, "cell_aaaaaaaa", Patch{})
	require.NoError(t, err)
	assert.Equal(t, "Monthly revenue", unchanged.Title)

	_, err = store.Update(ctx, "cell_missing", Patch{Title: &title})
	assert.ErrorIs(t, err, ErrCellNotFound)
}

func TestSQLiteStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	require.NoError(t, store.Append(ctx, "conv_1", testCell("cell_aaaaaaaa", "q", "")))

	require.NoError(t, store.Delete(ctx, "cell_aaaaaaaa"))
	_, err := store.Get(ctx, "cell_aaaaaaaa")
	assert.ErrorIs(t, err, ErrCellNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "cell_aaaaaaaa"), ErrCellNotFound)
	_, err = store.ConversationOf(ctx, "cell_aaaaaaaa")
	assert.ErrorIs(t, err, ErrCellNotFound)
}

func TestSQLiteStore_ListConversations(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	clock := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	require.NoError(t, store.Append(ctx, "conv_a", testCell("cell_00000001", "first question", "")))
	require.NoError(t, store.Append(ctx, "conv_b", testCell("cell_00000002", "second question", "")))
	require.NoError(t, store.Append(ctx, "conv_a", testCell("cell_00000003", "follow up", "cell_00000001")))

	convs, err := store.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "conv_a", convs[0].ID)
	assert.Equal(t, 2, convs[0].CellCount)
	assert.Equal(t, "First Question", convs[0].Title)
	assert.Equal(t, "conv_b", convs[1].ID)
}

func TestSQLiteStore_Suggestions(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	_, ok, err := store.Suggestions(ctx, "sha256:abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SaveSuggestions(ctx, "sha256:abc", []string{"a?", "b?"}))
	require.NoError(t, store.SaveSuggestions(ctx, "sha256:abc", []string{"c?"}))

	qs, ok, err := store.Suggestions(ctx, "sha256:abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"c?"}, qs)
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore()
	ctx := context.Background()

	assert.Error(t, store.Append(ctx, "c", testCell("cell_00000001", "q", "")))
	_, err := store.Get(ctx, "x")
	assert.Error(t, err)
	assert.Error(t, store.Migrate())
	assert.NoError(t, store.Close())
}
